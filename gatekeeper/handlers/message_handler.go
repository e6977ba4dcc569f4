package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/mimsguild/gatekeeper/gatekeeper"
	"github.com/mimsguild/gatekeeper/gatekeeper/ingest"
)

const ingestTimeout = 15 * time.Second

// MessageHandler feeds upstream bot messages into the claim pipeline and
// records drop-window participants. The summon announcement arrives as a
// fresh message; the claim arrives as an edit of that same embed, so both
// events funnel into the same path.
func MessageHandler(b *gatekeeper.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageCreate) {
		handleMessage(b, e.Message, nil, e.GuildID)
	})
}

// MessageUpdateHandler covers the edit delivery. The cached pre-edit message
// carries the summon title the claim gate keys on.
func MessageUpdateHandler(b *gatekeeper.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageUpdate) {
		handleMessage(b, e.Message, &e.OldMessage, e.GuildID)
	})
}

func handleMessage(b *gatekeeper.Bot, msg discord.Message, old *discord.Message, guildID *snowflake.ID) {
	if guildID == nil {
		return
	}

	gid := guildID.String()

	// Any human message in the gate guild counts toward an open drop window.
	if !msg.Author.Bot && gid == b.Cfg.Gate.GuildID {
		b.Drops.RecordParticipant(msg.ChannelID.String(), msg.Author.ID.String())
	}

	upstream := toUpstream(msg, old, gid)

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	b.Orchestrator.HandleMessage(ctx, upstream)

	// A summon embed from the upstream bot opens the token-drop window in
	// the gate guild.
	if gid == b.Cfg.Gate.GuildID && msg.Author.ID.String() == b.Cfg.Ingest.UpstreamBotID &&
		strings.Contains(upstream.SummonTitle, ingest.TitleAutoSummon) {
		b.Drops.OpenWindow(gid, msg.ChannelID.String())
	}
}

func toUpstream(msg discord.Message, old *discord.Message, guildID string) ingest.UpstreamMessage {
	upstream := ingest.UpstreamMessage{
		AuthorID:  msg.Author.ID.String(),
		GuildID:   guildID,
		Content:   msg.Content,
		Timestamp: msg.ID.Time(),
	}
	if len(msg.Embeds) > 0 {
		embed := msg.Embeds[0]
		upstream.Title = embed.Title
		if embed.Timestamp != nil {
			upstream.Timestamp = *embed.Timestamp
		}
		for _, f := range embed.Fields {
			upstream.Fields = append(upstream.Fields, ingest.EmbedField{Name: f.Name, Value: f.Value})
		}
		if embed.Image != nil {
			upstream.ImageURL = embed.Image.URL
		}
	}
	// The summon kind is read off the pre-edit embed. A cache miss leaves
	// OldMessage empty; fall back to the current title so a create delivery
	// (where both are the same) still matches.
	upstream.SummonTitle = upstream.Title
	if old != nil && len(old.Embeds) > 0 && old.Embeds[0].Title != "" {
		upstream.SummonTitle = old.Embeds[0].Title
	}
	return upstream
}
