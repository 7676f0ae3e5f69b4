package storage

import "time"

// Subscription links a Discord channel to a followed game server.
// MessageID identifies the status message the bot edits in place;
// it is set once when the subscription is created and never changes.
type Subscription struct {
	ID             int64
	GuildID        string
	ChannelID      string
	MessageID      string
	ServerHostname string // resolved host:port queried every cycle
	CreatedAt      time.Time
}
