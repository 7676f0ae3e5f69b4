package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/paavohuhtala/gorillabot/internal/render"
	"github.com/paavohuhtala/gorillabot/internal/storage"
)

const commandPrefix = "!"

// handleMessage routes text commands. Commands only work in guild channels
// and are gated on the configured admin role.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(m.Content, commandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, commandPrefix))
	if len(fields) == 0 {
		return
	}

	command := fields[0]
	switch command {
	case "follow_server", "unfollow_server", "list_servers":
	default:
		return
	}

	if !b.memberHasAdminRole(s, m) {
		slog.Debug("Ignoring command from member without admin role",
			"command", command, "user", m.Author.ID)
		return
	}

	slog.Info("Received command", "command", command, "channel", m.ChannelID)

	switch command {
	case "follow_server":
		b.handleFollow(s, m, fields[1:])
	case "unfollow_server":
		b.handleUnfollow(s, m)
	case "list_servers":
		b.handleList(s, m)
	}
}

// handleFollow handles !follow_server <host>:<port>
func (b *Bot) handleFollow(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) != 1 {
		b.reply(s, m, "Expected a server address as `host:port`")
		return
	}
	address := args[0]

	host, err := validateAddress(address)
	if err != nil {
		b.reply(s, m, fmt.Sprintf("Invalid server address: %s", err.Error()))
		return
	}

	if _, err := net.LookupHost(host); err != nil {
		slog.Warn("Failed to resolve server address", "address", address, "error", err)
		b.reply(s, m, "Failed to resolve server address")
		return
	}

	// Post the status message first; the subscription stores its id and the
	// sync loop edits it from the next cycle on.
	message, err := s.ChannelMessageSendEmbed(m.ChannelID, render.Status(address, nil, nil))
	if err != nil {
		slog.Error("Failed to post status message", "channel", m.ChannelID, "error", err)
		b.reply(s, m, "Failed to post the status message")
		return
	}

	sub := &storage.Subscription{
		GuildID:        m.GuildID,
		ChannelID:      m.ChannelID,
		MessageID:      message.ID,
		ServerHostname: address,
	}

	if err := b.repo.Insert(sub); err != nil {
		// Don't leave the orphan status message behind
		if derr := s.ChannelMessageDelete(m.ChannelID, message.ID); derr != nil {
			slog.Warn("Failed to delete orphan status message", "message", message.ID, "error", derr)
		}

		if errors.Is(err, storage.ErrDuplicate) {
			b.reply(s, m, fmt.Sprintf("This channel already follows `%s`", address))
			return
		}
		slog.Error("Failed to save subscription", "error", err)
		b.reply(s, m, "Failed to save the subscription. Please try again.")
		return
	}

	slog.Info("Subscription created", "channel", m.ChannelID, "server", address)

	if err := s.MessageReactionAdd(m.ChannelID, m.ID, "👍"); err != nil {
		slog.Warn("Failed to add reaction", "error", err)
	}
}

// handleUnfollow handles !unfollow_server: drops every subscription in the
// invoking channel, regardless of server.
func (b *Bot) handleUnfollow(s *discordgo.Session, m *discordgo.MessageCreate) {
	count, err := b.repo.DeleteByChannel(m.ChannelID)
	if err != nil {
		slog.Error("Failed to delete subscriptions", "channel", m.ChannelID, "error", err)
		b.reply(s, m, "Failed to unfollow. Please try again.")
		return
	}

	if count == 0 {
		b.reply(s, m, "This channel follows no servers")
		return
	}

	slog.Info("Subscriptions removed", "channel", m.ChannelID, "count", count)
	b.reply(s, m, fmt.Sprintf("Unfollowed %d server(s) :(", count))
}

// handleList handles !list_servers
func (b *Bot) handleList(s *discordgo.Session, m *discordgo.MessageCreate) {
	subs, err := b.repo.ListByChannel(m.ChannelID)
	if err != nil {
		slog.Error("Failed to list subscriptions", "channel", m.ChannelID, "error", err)
		b.reply(s, m, "Failed to list followed servers")
		return
	}

	if len(subs) == 0 {
		b.reply(s, m, "This channel follows no servers. Use `!follow_server <host>:<port>` to add one.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Followed servers:**\n")
	for i, sub := range subs {
		sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, sub.ServerHostname))
	}
	b.reply(s, m, sb.String())
}

// memberHasAdminRole reports whether the message author carries the
// configured admin role.
func (b *Bot) memberHasAdminRole(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.Member == nil {
		return false
	}
	for _, roleID := range m.Member.Roles {
		role, err := s.State.Role(m.GuildID, roleID)
		if err != nil {
			continue
		}
		if role.Name == b.config.AdminRole {
			return true
		}
	}
	return false
}

// validateAddress checks the host:port shape without touching the network
// and returns the host part.
func validateAddress(address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("address must be `host:port`")
	}
	if host == "" {
		return "", fmt.Errorf("address must include a host")
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("port must be a number between 1 and 65535")
	}
	return host, nil
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		slog.Error("Failed to send reply", "channel", m.ChannelID, "error", err)
	}
}
