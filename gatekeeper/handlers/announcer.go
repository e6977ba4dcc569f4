package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/gate"
)

const (
	successColor = 0x57F287
	neutralColor = 0x5865F2
)

// GiveawayAnnouncer posts giveaway resolutions to the configured channel.
type GiveawayAnnouncer struct {
	client    bot.Client
	channelID snowflake.ID
}

func NewGiveawayAnnouncer(client bot.Client, channelID snowflake.ID) *GiveawayAnnouncer {
	return &GiveawayAnnouncer{client: client, channelID: channelID}
}

func (a *GiveawayAnnouncer) AnnounceWinners(g models.Giveaway, winners []models.GiveawayWinner) {
	mentions := make([]string, len(winners))
	for i, w := range winners {
		mentions[i] = fmt.Sprintf("<@%s> (%d entries)", w.UserID, w.Entries)
	}

	embed := discord.Embed{
		Title:       fmt.Sprintf("🎉 Giveaway #%d has ended!", g.GiveawayID),
		Description: fmt.Sprintf("**Prize:** %s\n**Winners:**\n%s", g.Item.Name, strings.Join(mentions, "\n")),
		Color:       successColor,
	}
	if g.Item.ImageURL != "" {
		embed.Thumbnail = &discord.EmbedResource{URL: g.Item.ImageURL}
	}

	if _, err := a.client.Rest().CreateMessage(a.channelID, discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	}); err != nil {
		slog.Error("Failed to announce giveaway winners",
			slog.Int("giveaway_id", g.GiveawayID),
			slog.Any("error", err))
	}
}

func (a *GiveawayAnnouncer) AnnounceNoWinners(g models.Giveaway) {
	if _, err := a.client.Rest().CreateMessage(a.channelID, discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       fmt.Sprintf("Giveaway #%d has ended", g.GiveawayID),
			Description: fmt.Sprintf("**Prize:** %s\nNo entries, no winners this time.", g.Item.Name),
			Color:       neutralColor,
		}},
	}); err != nil {
		slog.Error("Failed to announce empty giveaway",
			slog.Int("giveaway_id", g.GiveawayID),
			slog.Any("error", err))
	}
}

// DropNotifier renders a resolved token drop into the channel the window
// opened in.
func DropNotifier(client bot.Client) func(channelID string, result gate.DropResult) {
	return func(channelID string, result gate.DropResult) {
		id, err := snowflake.Parse(channelID)
		if err != nil {
			return
		}

		lines := make([]string, 0, len(result.Winners)+1)
		for _, w := range result.Winners {
			lines = append(lines, fmt.Sprintf("<@%s> caught **%d** tokens", w.UserID, w.Tokens))
		}
		if result.SpecialLabel != "" {
			lines = append(lines, fmt.Sprintf("✨ %s!", result.SpecialLabel))
		}

		if _, err := client.Rest().CreateMessage(id, discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "🪙 Token drop!",
				Description: strings.Join(lines, "\n"),
				Color:       successColor,
				Footer:      &discord.EmbedFooter{Text: fmt.Sprintf("%d participants", result.Participants)},
			}},
		}); err != nil {
			slog.Error("Failed to announce token drop",
				slog.String("channel_id", channelID),
				slog.Any("error", err))
		}
	}
}
