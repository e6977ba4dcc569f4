package handlers

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func cardEditMessage() discord.Message {
	return discord.Message{
		ID:      snowflake.New(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)),
		Author:  discord.User{ID: snowflake.ID(1001)},
		Content: "Claimed and added to inventory!",
		Embeds: []discord.Embed{{
			Title: "<:SRT:1> Moonlight Haze *#3*",
			Fields: []discord.EmbedField{
				{Name: "Claimed by dresden", Value: "Card made by hazelnut"},
			},
			Image: &discord.EmbedResource{URL: "https://cdn.example.com/cards/card-9912/image.png"},
		}},
	}
}

func TestToUpstreamSummonTitleFromPreEditEmbed(t *testing.T) {
	msg := cardEditMessage()
	old := discord.Message{Embeds: []discord.Embed{{Title: "Automatic Summon!"}}}

	upstream := toUpstream(msg, &old, "srv")

	assert.Equal(t, "Automatic Summon!", upstream.SummonTitle)
	assert.Equal(t, "<:SRT:1> Moonlight Haze *#3*", upstream.Title)
	assert.Equal(t, "https://cdn.example.com/cards/card-9912/image.png", upstream.ImageURL)
}

func TestToUpstreamCacheMissFallsBackToCurrentTitle(t *testing.T) {
	msg := cardEditMessage()
	old := discord.Message{} // pre-edit message was not cached

	upstream := toUpstream(msg, &old, "srv")

	assert.Equal(t, msg.Embeds[0].Title, upstream.SummonTitle)
}

func TestToUpstreamCreateDelivery(t *testing.T) {
	msg := discord.Message{
		ID:     snowflake.New(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)),
		Author: discord.User{ID: snowflake.ID(1001)},
		Embeds: []discord.Embed{{Title: "Automatic Summon!"}},
	}

	upstream := toUpstream(msg, nil, "srv")

	assert.Equal(t, "Automatic Summon!", upstream.SummonTitle)
	assert.Equal(t, "Automatic Summon!", upstream.Title)
}

func TestToUpstreamPrefersEmbedTimestamp(t *testing.T) {
	msg := cardEditMessage()
	reported := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	msg.Embeds[0].Timestamp = &reported

	upstream := toUpstream(msg, nil, "srv")

	assert.Equal(t, reported, upstream.Timestamp)
}

func TestToUpstreamTimestampFallsBackToMessageID(t *testing.T) {
	msg := cardEditMessage()

	upstream := toUpstream(msg, nil, "srv")

	assert.Equal(t, msg.ID.Time(), upstream.Timestamp)
}
