package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/mimsguild/gatekeeper/gatekeeper"
)

const wishesPerPage = 10

var Wishlist = discord.SlashCommandCreate{
	Name:        "wishlist",
	Description: "⭐ Card wishlists",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "toggle",
			Description: "Add or remove a card from your wishlist",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "card",
					Description: "Card id",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "Show a wishlist, most wished cards first",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Show another user's wishlist",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "search",
			Description: "Fuzzy-search your wishlist by card name",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "query",
					Description: "Part of a card name",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "wishers",
			Description: "Who wishes for a card",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "card",
					Description: "Card id",
					Required:    true,
				},
			},
		},
	},
}

func WishlistHandler(b *gatekeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		switch *data.SubCommandName {
		case "toggle":
			wished, err := b.Wishlist.Toggle(ctx, e.User().ID.String(), data.String("card"))
			if err != nil {
				return errorMessage(e, "Wishlist update failed. Please try again later.")
			}
			if wished {
				return successMessage(e, "⭐ Wished", fmt.Sprintf("Added `%s` to your wishlist.", data.String("card")))
			}
			return successMessage(e, "Removed", fmt.Sprintf("Removed `%s` from your wishlist.", data.String("card")))

		case "list":
			target := e.User()
			if user, ok := data.OptUser("user"); ok {
				target = user
			}
			entries, err := b.Wishlist.List(ctx, target.ID.String())
			if err != nil {
				return errorMessage(e, "Failed to load the wishlist. Please try again later.")
			}
			if len(entries) == 0 {
				return errorMessage(e, fmt.Sprintf("%s's wishlist is empty.", target.Username))
			}

			totalPages := int(math.Ceil(float64(len(entries)) / float64(wishesPerPage)))
			return b.Paginator.Create(e.Respond, paginator.Pages{
				ID:      e.ID().String(),
				Creator: e.User().ID,
				PageFunc: func(page int, embed *discord.EmbedBuilder) {
					start := page * wishesPerPage
					end := min(start+wishesPerPage, len(entries))

					var description strings.Builder
					for _, entry := range entries[start:end] {
						description.WriteString(fmt.Sprintf("`%s` · %d wishers\n", entry.CardID, entry.Count))
					}

					embed.
						SetTitle(fmt.Sprintf("⭐ %s's Wishlist", target.Username)).
						SetDescription(description.String()).
						SetColor(InfoColor).
						SetFooterText(fmt.Sprintf("Page %d/%d • %d cards", page+1, totalPages, len(entries)))
				},
				Pages:      totalPages,
				ExpireMode: paginator.ExpireModeAfterLastUsage,
			}, false)

		case "search":
			entries, err := b.Wishlist.Search(ctx, e.User().ID.String(), data.String("query"))
			if err != nil {
				return errorMessage(e, "Search failed. Please try again later.")
			}
			if len(entries) == 0 {
				return errorMessage(e, "No wishlist cards match that query.")
			}

			var description strings.Builder
			for _, entry := range entries {
				description.WriteString(fmt.Sprintf("`%s` · %d wishers\n", entry.CardID, entry.Count))
			}
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "🔍 Wishlist Search",
					Description: description.String(),
					Color:       InfoColor,
				}},
			})

		case "wishers":
			users, err := b.Wishlist.Wishers(ctx, data.String("card"))
			if err != nil {
				return errorMessage(e, "Failed to load wishers. Please try again later.")
			}
			if len(users) == 0 {
				return errorMessage(e, "Nobody wishes for that card yet.")
			}

			mentions := make([]string, len(users))
			for i, id := range users {
				mentions[i] = fmt.Sprintf("<@%s>", id)
			}
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       fmt.Sprintf("⭐ Wishers of `%s`", data.String("card")),
					Description: strings.Join(mentions, "\n"),
					Color:       InfoColor,
				}},
			})

		default:
			return errorMessage(e, "Unknown subcommand")
		}
	}
}
