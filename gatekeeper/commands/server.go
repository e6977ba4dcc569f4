package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/mimsguild/gatekeeper/gatekeeper"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

var ServerSettings = discord.SlashCommandCreate{
	Name:        "server",
	Description: "⚙️ Server claim tracking",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "register",
			Description: "Register this server for claim tracking",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "toggle",
			Description: "Flip a claim-tracking handler for this server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "handler",
					Description: "Which handler to flip",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Claim", Value: "claim"},
						{Name: "Summon", Value: "summon"},
						{Name: "Manual claim", Value: "manualClaim"},
						{Name: "Manual summon", Value: "manualSummon"},
					},
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "stats",
			Description: "Claim counts for this server",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "audit",
			Description: "Recent commands run in this server",
		},
	},
}

func ServerHandler(b *gatekeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return errorMessage(e, "This command only works in a server.")
		}
		serverID := e.GuildID().String()
		data := e.SlashCommandInteractionData()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch *data.SubCommandName {
		case "register":
			if _, err := b.ServerRepository.CreateServerSettings(ctx, serverID); err != nil {
				return errorMessage(e, "Registration failed. Please try again later.")
			}
			if err := b.ServerRepository.ToggleRegister(ctx, serverID); err != nil {
				return errorMessage(e, "Registration failed. Please try again later.")
			}
			return successMessage(e, "Server registered", "Claim tracking is now set up for this server.")

		case "toggle":
			handlerType := data.String("handler")
			state, err := b.ServerRepository.ToggleHandler(ctx, serverID, handlerType)
			if err != nil {
				if errors.Is(err, repositories.ErrInvalidHandlerType) {
					return errorMessage(e, "Unknown handler type.")
				}
				return errorMessage(e, "Toggle failed. Please try again later.")
			}
			stateText := "disabled"
			if state {
				stateText = "enabled"
			}
			return successMessage(e, "Handler toggled",
				fmt.Sprintf("`%s` is now **%s** for this server.", handlerType, stateText))

		case "stats":
			return serverStats(ctx, b, e, serverID)

		case "audit":
			return serverAudit(ctx, b, e, serverID)

		default:
			return errorMessage(e, "Unknown subcommand")
		}
	}
}

func serverStats(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent, serverID string) error {
	server, err := b.ServerRepository.GetServerData(ctx, serverID)
	if err != nil {
		return errorMessage(e, "Failed to load server stats. Please try again later.")
	}
	if server == nil {
		return errorMessage(e, "No claims recorded for this server yet.")
	}

	var description strings.Builder
	total := 0
	for _, tier := range models.Tiers {
		idx := tier.Index()
		if idx < 0 || idx >= len(server.Counts) {
			continue
		}
		count := server.Counts[idx]
		total += count
		description.WriteString(fmt.Sprintf("**%s:** %d\n", tier, count))
	}
	description.WriteString(fmt.Sprintf("\n**Total:** %d claims", total))

	now := time.Now()
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "📊 Server Claim Stats",
			Description: description.String(),
			Color:       InfoColor,
			Timestamp:   &now,
		}},
	})
}

func serverAudit(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent, serverID string) error {
	logs, err := b.CommandLogRepository.Recent(ctx, serverID, 15)
	if err != nil {
		return errorMessage(e, "Failed to load the audit log. Please try again later.")
	}
	if len(logs) == 0 {
		return errorMessage(e, "No commands recorded for this server yet.")
	}

	var description strings.Builder
	for _, entry := range logs {
		description.WriteString(fmt.Sprintf("<t:%d:R> — <@%s> ran `%s`\n",
			entry.Timestamp.Unix(), entry.UserID, entry.Command))
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "📜 Recent Commands",
			Description: description.String(),
			Color:       InfoColor,
		}},
	})
}
