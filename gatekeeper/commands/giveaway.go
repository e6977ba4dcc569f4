package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/mimsguild/gatekeeper/gatekeeper"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
	"github.com/mimsguild/gatekeeper/gatekeeper/giveaway"
)

const giveawaysPerPage = 5

var GiveawayAdmin = discord.SlashCommandCreate{
	Name:        "giveaway",
	Description: "🎉 Ticket giveaways",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set",
			Description: "Start a giveaway (lead only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "level",
					Description: "Prize type",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceInt{
						{Name: "Catalog card", Value: models.GiveawayLevelCard},
						{Name: "Custom prize", Value: models.GiveawayLevelCustom},
						{Name: "Multiple prizes", Value: models.GiveawayLevelMultiple},
					},
				},
				discord.ApplicationCommandOptionString{
					Name:        "prize",
					Description: "Card id, prize name, or comma-separated prize list",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "hours",
					Description: "How long the giveaway runs",
					Required:    true,
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "winners",
					Description: "Winner count (multiple-prize giveaways)",
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionString{
					Name:        "message",
					Description: "Prize description",
				},
				discord.ApplicationCommandOptionString{
					Name:        "image",
					Description: "Prize image URL",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "join",
			Description: "Enter a giveaway with one ticket",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "id",
					Description: "Giveaway id",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List giveaways",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "active",
					Description: "Only active giveaways",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "check",
			Description: "Inspect one giveaway",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "id",
					Description: "Giveaway id",
					Required:    true,
				},
			},
		},
	},
}

func GiveawayHandler(b *gatekeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		switch *data.SubCommandName {
		case "set":
			return giveawaySet(ctx, b, e)
		case "join":
			return giveawayJoin(ctx, b, e)
		case "list":
			return giveawayList(ctx, b, e)
		case "check":
			return giveawayCheck(ctx, b, e)
		default:
			return errorMessage(e, "Unknown subcommand")
		}
	}
}

func giveawaySet(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	if !b.GateService.IsLead(e.User().ID.String()) {
		return errorMessage(e, "Only gate leads can start giveaways.")
	}

	data := e.SlashCommandInteractionData()
	level := data.Int("level")
	amount := 1
	if winners, ok := data.OptInt("winners"); ok {
		amount = winners
	}
	message, _ := data.OptString("message")
	image, _ := data.OptString("image")

	g, err := b.GiveawayManager.Create(ctx,
		e.User().ID.String(),
		level,
		data.String("prize"),
		message,
		image,
		amount,
		time.Duration(data.Int("hours"))*time.Hour,
	)
	if err != nil {
		if errors.Is(err, giveaway.ErrNotEnoughPrizes) {
			return errorMessage(e, "Not enough prizes for that many winners.")
		}
		return errorMessage(e, "Failed to create the giveaway: "+err.Error())
	}

	return successMessage(e, "🎉 Giveaway started",
		fmt.Sprintf("**#%d — %s**\nEnds <t:%d:R>. Enter with `/giveaway join id:%d`.",
			g.GiveawayID, g.Item.Name, g.EndTimestamp, g.GiveawayID))
}

func giveawayJoin(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	id := data.Int("id")

	free, err := b.GiveawayManager.Join(ctx, id, e.User().ID.String())
	switch {
	case errors.Is(err, repositories.ErrGiveawayNotFound):
		return errorMessage(e, fmt.Sprintf("Giveaway #%d does not exist.", id))
	case errors.Is(err, giveaway.ErrGiveawayInactive):
		return errorMessage(e, fmt.Sprintf("Giveaway #%d has already ended.", id))
	case errors.Is(err, repositories.ErrInsufficientTickets):
		return errorMessage(e, "You need a ticket to enter. Buy one with `/gate buy item:ticket`.")
	case err != nil:
		return errorMessage(e, "Entry failed. Please try again later.")
	}

	if free {
		return successMessage(e, "🎟️ Entered", fmt.Sprintf("Your first entry to giveaway #%d is free!", id))
	}
	return successMessage(e, "🎟️ Entered", fmt.Sprintf("One ticket spent on giveaway #%d. Good luck!", id))
}

func giveawayList(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	var filter *bool
	if active, ok := data.OptBool("active"); ok {
		filter = &active
	}

	giveaways, err := b.GiveawayRepository.List(ctx, filter)
	if err != nil {
		return errorMessage(e, "Failed to list giveaways. Please try again later.")
	}
	if len(giveaways) == 0 {
		return errorMessage(e, "No giveaways found.")
	}

	totalPages := int(math.Ceil(float64(len(giveaways)) / float64(giveawaysPerPage)))

	return b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * giveawaysPerPage
			end := min(start+giveawaysPerPage, len(giveaways))

			var description strings.Builder
			for _, g := range giveaways[start:end] {
				state := "ended"
				if g.Active {
					state = fmt.Sprintf("ends <t:%d:R>", g.EndTimestamp)
				}
				description.WriteString(fmt.Sprintf("**#%d — %s**\n%s · %d entries\n\n",
					g.GiveawayID, g.Item.Name, state, len(g.Entries)))
			}

			embed.
				SetTitle("🎉 Giveaways").
				SetDescription(description.String()).
				SetColor(InfoColor).
				SetFooterText(fmt.Sprintf("Page %d/%d", page+1, totalPages))
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func giveawayCheck(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	id := data.Int("id")

	g, err := b.GiveawayRepository.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGiveawayNotFound) {
			return errorMessage(e, fmt.Sprintf("Giveaway #%d does not exist.", id))
		}
		return errorMessage(e, "Failed to load the giveaway. Please try again later.")
	}

	var description strings.Builder
	description.WriteString(fmt.Sprintf("**Prize:** %s\n", g.Item.Name))
	if g.Item.Description != "" {
		description.WriteString(fmt.Sprintf("%s\n", g.Item.Description))
	}
	if g.Active {
		description.WriteString(fmt.Sprintf("**Ends:** <t:%d:R>\n", g.EndTimestamp))
	} else {
		description.WriteString("**Status:** ended\n")
	}
	description.WriteString(fmt.Sprintf("**Entries:** %d (yours: %d)\n",
		len(g.Entries), g.UserEntries(e.User().ID.String())))

	if len(g.Winners) > 0 {
		mentions := make([]string, len(g.Winners))
		for i, w := range g.Winners {
			mentions[i] = fmt.Sprintf("<@%s>", w.UserID)
		}
		description.WriteString("**Winners:** " + strings.Join(mentions, ", "))
	}

	embed := discord.Embed{
		Title:       fmt.Sprintf("🎉 Giveaway #%d", g.GiveawayID),
		Description: description.String(),
		Color:       InfoColor,
	}
	if g.Item.ImageURL != "" {
		embed.Thumbnail = &discord.EmbedResource{URL: g.Item.ImageURL}
	}

	return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})
}
