// Package render turns query outcomes into Discord embeds. Rendering is
// pure: the same address and outcome always produce an identical embed, so
// an unchanged server status results in an identical edit payload.
package render

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/paavohuhtala/gorillabot/internal/query"
)

const unknownField = "Unknown"

// Status renders the status embed for a server. info and err come from a
// query attempt; both nil means the first query has not happened yet (the
// initial post made by follow_server). There is no failure path: any input
// renders a best-effort embed.
func Status(address string, info *query.Info, err error) *discordgo.MessageEmbed {
	if info == nil {
		return &discordgo.MessageEmbed{
			Fields: []*discordgo.MessageEmbedField{
				field("Server name", unknownField),
				field("Server address", address),
				field("Map", unknownField),
				field("Players", unknownField),
				field("Status", statusText(err)),
			},
		}
	}

	return &discordgo.MessageEmbed{
		Fields: []*discordgo.MessageEmbedField{
			field("Server name", info.Name),
			field("Server address", address),
			field("Map", info.Map),
			field("Players", fmt.Sprintf("%d / %d", info.Players, info.MaxPlayers)),
			field("Status", "Online"),
		},
	}
}

func statusText(err error) string {
	switch {
	case err == nil:
		return "Awaiting first query"
	case errors.Is(err, query.ErrTimeout):
		return "No response (timeout)"
	case errors.Is(err, query.ErrMalformed):
		return "Bad response from server"
	default:
		return "Unreachable"
	}
}

func field(name, value string) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: false}
}
