package ingest

import (
	"context"

	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// UserResolver maps an upstream display name to a Discord user id. An empty
// id with a nil error means no member matched anywhere.
type UserResolver interface {
	ResolveUsername(ctx context.Context, username string) (string, error)
}

// guildResolver searches every guild the bot can see for an exact username
// match. First match wins; no guild is authoritative.
type guildResolver struct {
	client bot.Client
}

func NewGuildResolver(client bot.Client) UserResolver {
	return &guildResolver{client: client}
}

func (r *guildResolver) ResolveUsername(ctx context.Context, username string) (string, error) {
	var guildIDs []snowflake.ID
	r.client.Caches().GuildsForEach(func(guild discord.Guild) {
		guildIDs = append(guildIDs, guild.ID)
	})

	for _, guildID := range guildIDs {
		members, err := r.client.Rest().SearchMembers(guildID, username, 10)
		if err != nil {
			slog.Warn("Member search failed",
				slog.String("type", "sys"),
				slog.String("guild_id", guildID.String()),
				slog.Any("error", err))
			continue
		}
		for _, member := range members {
			if member.User.Username == username {
				return member.User.ID.String(), nil
			}
		}
	}
	return "", nil
}
