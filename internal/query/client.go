// Package query implements a minimal A2S_INFO client for Source-engine
// compatible game servers (Arma, DayZ, etc.). One call performs exactly one
// UDP request/response exchange; retry policy belongs to the caller.
package query

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrTimeout means the server sent nothing back before the deadline.
	ErrTimeout = errors.New("query timed out")
	// ErrUnreachable means the exchange failed at the transport level
	// (resolution, dial, write, or ICMP port-unreachable on read).
	ErrUnreachable = errors.New("server unreachable")
	// ErrMalformed means bytes came back but could not be parsed as an
	// A2S_INFO response.
	ErrMalformed = errors.New("malformed query response")
)

// Info is the subset of the A2S_INFO response the bot displays.
type Info struct {
	Name       string
	Map        string
	Players    int
	MaxPlayers int
}

// A2S_INFO request: 0xFFFFFFFF prefix, 'T' header, fixed payload string.
var infoRequest = []byte("\xff\xff\xff\xffTSource Engine Query\x00")

const (
	headerInfo      = 0x49 // 'I'
	headerChallenge = 0x41 // 'A'

	maxDatagram = 1400
)

// Client queries game servers with a fixed per-query timeout.
type Client struct {
	timeout time.Duration
}

// NewClient creates a query client. The timeout bounds the whole exchange
// and should be shorter than the poll interval.
func NewClient(timeout time.Duration) *Client {
	return &Client{timeout: timeout}
}

// Query sends a single A2S_INFO request to address (host:port) and parses
// the response. Failures are classified via ErrTimeout, ErrUnreachable and
// ErrMalformed; use errors.Is to distinguish them.
func (c *Client) Query(ctx context.Context, address string) (*Info, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if _, err := conn.Write(infoRequest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	buf := make([]byte, maxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: no response within %s", ErrTimeout, c.timeout)
		}
		// Connected UDP sockets surface ICMP port-unreachable as a read error.
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return parseInfo(buf[:n])
}

// parseInfo decodes an A2S_INFO response datagram up to the max-players
// field; the trailing fields (bots, server type, VAC, ...) are ignored.
func parseInfo(data []byte) (*Info, error) {
	r := payloadReader{data: data}

	for i := 0; i < 4; i++ {
		b, err := r.byte()
		if err != nil || b != 0xff {
			return nil, fmt.Errorf("%w: missing packet prefix", ErrMalformed)
		}
	}

	header, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	switch header {
	case headerInfo:
	case headerChallenge:
		// Challenge negotiation would need a second exchange; out of scope.
		return nil, fmt.Errorf("%w: server requires challenge handshake", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unexpected header 0x%02x", ErrMalformed, header)
	}

	// Protocol version, unused.
	if _, err := r.byte(); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrMalformed)
	}

	name, err := r.cstring()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated server name", ErrMalformed)
	}
	mapName, err := r.cstring()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated map name", ErrMalformed)
	}
	// Folder and game name, unused.
	if _, err := r.cstring(); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrMalformed)
	}
	if _, err := r.cstring(); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrMalformed)
	}
	// Steam app id, unused.
	if err := r.skip(2); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrMalformed)
	}

	players, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated player count", ErrMalformed)
	}
	maxPlayers, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated max player count", ErrMalformed)
	}

	return &Info{
		Name:       name,
		Map:        mapName,
		Players:    int(players),
		MaxPlayers: int(maxPlayers),
	}, nil
}

// payloadReader is a cursor over a single response datagram.
type payloadReader struct {
	data []byte
	off  int
}

var errShortPayload = errors.New("short payload")

func (r *payloadReader) byte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, errShortPayload
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *payloadReader) skip(n int) error {
	if r.off+n > len(r.data) {
		return errShortPayload
	}
	r.off += n
	return nil
}

func (r *payloadReader) cstring() (string, error) {
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			s := string(r.data[start:r.off])
			r.off++
			return s, nil
		}
		r.off++
	}
	return "", errShortPayload
}
