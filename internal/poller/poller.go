// Package poller drives the status synchronization loop: on a fixed cadence
// it snapshots all subscriptions, queries each followed server in turn and
// edits the channel's status message in place.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/paavohuhtala/gorillabot/internal/query"
	"github.com/paavohuhtala/gorillabot/internal/render"
	"github.com/paavohuhtala/gorillabot/internal/storage"
)

// Store is the subscription snapshot source. Command handlers may mutate
// the underlying store concurrently; each cycle works off one ListAll call.
type Store interface {
	ListAll() ([]*storage.Subscription, error)
}

// Querier fetches the live status of one game server.
type Querier interface {
	Query(ctx context.Context, address string) (*query.Info, error)
}

// Editor edits a previously posted status message. *discordgo.Session
// satisfies this directly.
type Editor interface {
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord allows roughly 5 requests per 5s per channel; stay well under it
// across all subscriptions.
const (
	editsPerSecond = 2
	editBurst      = 4
)

// Poller periodically refreshes the status message of every subscription
type Poller struct {
	store    Store
	querier  Querier
	editor   Editor
	interval time.Duration
	limiter  *rate.Limiter

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Poller
func New(store Store, querier Querier, editor Editor, intervalSeconds int) *Poller {
	return &Poller{
		store:    store,
		querier:  querier,
		editor:   editor,
		interval: time.Duration(intervalSeconds) * time.Second,
		limiter:  rate.NewLimiter(rate.Limit(editsPerSecond), editBurst),
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop. The ticker measures the cadence from cycle
// start to cycle start: a cycle that overruns the interval leaves a tick
// pending, so the next cycle starts immediately instead of being skipped.
func (p *Poller) Start(ctx context.Context) {
	slog.Info("Starting poller", "interval", p.interval)

	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped (context cancelled)")
			return
		case <-p.stopChan:
			slog.Info("Poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop signals the poller to stop and waits for the in-flight cycle step
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// poll runs one cycle over a snapshot of all subscriptions. A snapshot
// failure skips the whole cycle; the loop self-heals at the next tick.
func (p *Poller) poll(ctx context.Context) {
	subs, err := p.store.ListAll()
	if err != nil {
		slog.Error("Failed to list subscriptions, skipping cycle", "error", err)
		return
	}

	if len(subs) == 0 {
		slog.Debug("No subscriptions to poll")
		return
	}

	slog.Debug("Polling servers", "count", len(subs))

	// Strictly sequential: bounds network fan-out and keeps one slow or
	// dead server from interleaving with the rest of the cycle.
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return
		default:
			p.updateSubscription(ctx, sub)
		}
	}
}

// updateSubscription refreshes one status message. Every failure here is
// isolated to this subscription: query failures are rendered as a status,
// edit failures are logged and retried next cycle. A subscription is only
// ever removed by an explicit unfollow, never because its server or its
// message is gone.
func (p *Poller) updateSubscription(ctx context.Context, sub *storage.Subscription) {
	info, err := p.querier.Query(ctx, sub.ServerHostname)
	if err != nil {
		slog.Warn("Server query failed", "server", sub.ServerHostname, "error", err)
	} else {
		slog.Debug("Server queried", "server", sub.ServerHostname, "map", info.Map, "players", info.Players)
	}

	embed := render.Status(sub.ServerHostname, info, err)

	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	if _, err := p.editor.ChannelMessageEditEmbed(sub.ChannelID, sub.MessageID, embed); err != nil {
		slog.Warn("Failed to edit status message, will retry next cycle",
			"channel", sub.ChannelID, "message", sub.MessageID, "error", err)
	}
}
