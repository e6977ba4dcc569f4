package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/mimsguild/gatekeeper/gatekeeper"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
	"github.com/mimsguild/gatekeeper/gatekeeper/gate"
)

var Gate = discord.SlashCommandCreate{
	Name:        "gate",
	Description: "🎫 Token gate economy",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "balance",
			Description: "View your tokens and tickets",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "View another user's balance",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "buy",
			Description: "Spend tokens on a ticket or premium",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "item",
					Description: "What to buy",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: fmt.Sprintf("Ticket (%d tokens)", gate.TicketCost), Value: "ticket"},
						{Name: fmt.Sprintf("Premium, 7 days (%d tokens)", gate.PremiumCost), Value: "premium"},
					},
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "gift",
			Description: fmt.Sprintf("Gift a ticket to another user (%d tokens)", gate.GiftTicketCost),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Recipient",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "give",
			Description: "Grant currency to a user (lead only)",
			Options:     adminAmountOptions("Grant"),
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "take",
			Description: "Remove currency from a user (lead only)",
			Options:     adminAmountOptions("Remove"),
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "toggle",
			Description: "Flip an economy switch for this server (lead only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "switch",
					Description: "Which switch to flip",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Economy", Value: "economy"},
						{Name: "Claim tracking", Value: "tracking"},
					},
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "nuke",
			Description: "Reset a user's account to zero (lead only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Account to reset",
					Required:    true,
				},
			},
		},
	},
}

func adminAmountOptions(verb string) []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "Target user",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "currency",
			Description: verb + " tokens or tickets",
			Required:    true,
			Choices: []discord.ApplicationCommandOptionChoiceString{
				{Name: "Tokens", Value: "tokens"},
				{Name: "Tickets", Value: "tickets"},
			},
		},
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "Amount",
			Required:    true,
			MinValue:    intPtr(1),
		},
	}
}

func intPtr(v int) *int { return &v }

// confirmOutcome classifies a confirm-button click. Pressing Cancel and
// letting the prompt outlive the confirm window both resolve to a no-op;
// balances are only touched on an accept inside the window.
type confirmOutcome int

const (
	confirmExpired confirmOutcome = iota
	confirmCancelled
	confirmAccepted
)

func resolveConfirm(action string, promptCreated, now time.Time) confirmOutcome {
	if now.Sub(promptCreated) > gate.ConfirmTimeout {
		return confirmExpired
	}
	if action != "confirm" {
		return confirmCancelled
	}
	return confirmAccepted
}

func GateHandler(b *gatekeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch *data.SubCommandName {
		case "balance":
			return gateBalance(ctx, b, e)
		case "buy":
			return gateBuy(ctx, b, e)
		case "gift":
			return gateGift(ctx, b, e)
		case "give":
			return gateGiveTake(ctx, b, e, true)
		case "take":
			return gateGiveTake(ctx, b, e, false)
		case "toggle":
			return gateToggle(ctx, b, e)
		case "nuke":
			return gateNuke(b, e)
		default:
			return errorMessage(e, "Unknown subcommand")
		}
	}
}

func gateBalance(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	target := e.User()
	if user, ok := data.OptUser("user"); ok {
		target = user
	}

	balance, err := b.GateService.Balance(ctx, target.ID.String())
	if err != nil {
		return errorMessage(e, "Failed to fetch the balance. Please try again later.")
	}

	premium := "—"
	if balance.PremiumActive && balance.PremiumExpires != nil {
		premium = fmt.Sprintf("active until <t:%d:R>", balance.PremiumExpires.Unix())
	}

	now := time.Now()
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title: "🎫 Gate Balance",
			Description: fmt.Sprintf("**Tokens:** %d / %d\n**Tickets:** %d / %d\n**Premium:** %s",
				balance.Tokens, models.MaxTokens, balance.Tickets, models.MaxTickets, premium),
			Color:     InfoColor,
			Footer:    &discord.EmbedFooter{Text: fmt.Sprintf("Account: %s", target.Username)},
			Timestamp: &now,
		}},
	})
}

func gateBuy(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	userID := e.User().ID.String()

	switch data.String("item") {
	case "ticket":
		// Cost and ceiling are checked up front so the confirm prompt is
		// never an offer the user cannot take; the debit itself re-checks
		// atomically on the button press.
		balance, err := b.GateService.Balance(ctx, userID)
		if err != nil {
			return errorMessage(e, "Purchase failed. Please try again later.")
		}
		if balance.Tickets >= models.MaxTickets {
			return errorMessage(e, fmt.Sprintf("You already hold the maximum number of tickets (%d).", models.MaxTickets))
		}
		if balance.Tokens < gate.TicketCost {
			return errorMessage(e, fmt.Sprintf("A ticket costs %d tokens and you only have %d.", gate.TicketCost, balance.Tokens))
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "Confirm ticket purchase",
				Description: fmt.Sprintf("Spend **%d tokens** on one ticket?", gate.TicketCost),
				Color:       WarnColor,
			}},
			Components: []discord.ContainerComponent{
				discord.NewActionRow(
					discord.NewPrimaryButton("Confirm", fmt.Sprintf("/gate-ticket/%s/confirm", userID)),
					discord.NewSecondaryButton("Cancel", fmt.Sprintf("/gate-ticket/%s/cancel", userID)),
				),
			},
		})

	case "premium":
		// Premium is non-refundable; ask before charging.
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "Confirm premium purchase",
				Description: fmt.Sprintf("Spend **%d tokens** on 7 days of premium? This cannot be undone.",
					gate.PremiumCost),
				Color: WarnColor,
			}},
			Components: []discord.ContainerComponent{
				discord.NewActionRow(
					discord.NewPrimaryButton("Confirm", fmt.Sprintf("/gate-premium/%s/confirm", userID)),
					discord.NewSecondaryButton("Cancel", fmt.Sprintf("/gate-premium/%s/cancel", userID)),
				),
			},
		})

	default:
		return errorMessage(e, "Unknown item")
	}
}

// GateTicketComponent completes or cancels the ticket confirm flow. Only the
// original buyer may press the buttons, and the offer lapses after the
// confirm window with no debit.
func GateTicketComponent(b *gatekeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		userID := e.Vars["user"]

		if e.User().ID.String() != userID {
			return e.CreateMessage(discord.MessageCreate{
				Content: "This confirmation belongs to someone else.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		switch resolveConfirm(e.Vars["action"], e.Message.CreatedAt, time.Now()) {
		case confirmExpired:
			return e.UpdateMessage(expiredUpdate("Purchase offer expired."))
		case confirmCancelled:
			return e.UpdateMessage(expiredUpdate("Purchase cancelled."))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := b.GateService.BuyTicket(ctx, userID)
		switch {
		case errors.Is(err, repositories.ErrInsufficientBalance):
			return e.UpdateMessage(expiredUpdate(shortfallMessage(ctx, b, userID, gate.TicketCost)))
		case errors.Is(err, repositories.ErrTicketCeiling):
			return e.UpdateMessage(expiredUpdate("You already hold the maximum number of tickets."))
		case err != nil:
			return e.UpdateMessage(expiredUpdate("Purchase failed. Please try again later."))
		}

		return e.UpdateMessage(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "🎟️ Ticket purchased",
				Description: fmt.Sprintf("Spent %d tokens on one ticket.", gate.TicketCost),
				Color:       SuccessColor,
			}},
			Components: &[]discord.ContainerComponent{},
		})
	}
}

// GatePremiumComponent completes or cancels the premium confirm flow. Only
// the original buyer may press the buttons, and the offer lapses after the
// confirm window.
func GatePremiumComponent(b *gatekeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		userID := e.Vars["user"]

		if e.User().ID.String() != userID {
			return e.CreateMessage(discord.MessageCreate{
				Content: "This confirmation belongs to someone else.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		switch resolveConfirm(e.Vars["action"], e.Message.CreatedAt, time.Now()) {
		case confirmExpired:
			return e.UpdateMessage(expiredUpdate("Purchase offer expired."))
		case confirmCancelled:
			return e.UpdateMessage(expiredUpdate("Purchase cancelled."))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		expiresAt, err := b.GateService.BuyPremium(ctx, userID)
		switch {
		case errors.Is(err, repositories.ErrInsufficientBalance):
			return e.UpdateMessage(expiredUpdate(shortfallMessage(ctx, b, userID, gate.PremiumCost)))
		case errors.Is(err, repositories.ErrPremiumActive):
			return e.UpdateMessage(expiredUpdate("Your premium is already active."))
		case err != nil:
			return e.UpdateMessage(expiredUpdate("Purchase failed. Please try again later."))
		}

		return e.UpdateMessage(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "⭐ Premium activated",
				Description: fmt.Sprintf("Active until <t:%d:f>.", expiresAt.Unix()),
				Color:       SuccessColor,
			}},
			Components: &[]discord.ContainerComponent{},
		})
	}
}

func gateGift(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	recipient := data.User("user")
	senderID := e.User().ID.String()

	if recipient.ID.String() == senderID {
		return errorMessage(e, "You cannot gift a ticket to yourself.")
	}
	if recipient.Bot {
		return errorMessage(e, "Bots have no use for tickets.")
	}

	balance, err := b.GateService.Balance(ctx, senderID)
	if err != nil {
		return errorMessage(e, "Gift failed. Please try again later.")
	}
	if balance.Tokens < gate.GiftTicketCost {
		return errorMessage(e, fmt.Sprintf("Gifting costs %d tokens and you only have %d.", gate.GiftTicketCost, balance.Tokens))
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title: "Confirm ticket gift",
			Description: fmt.Sprintf("Spend **%d tokens** to gift one ticket to %s?",
				gate.GiftTicketCost, recipient.Mention()),
			Color: WarnColor,
		}},
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewPrimaryButton("Confirm", fmt.Sprintf("/gate-gift/%s/%s/confirm", senderID, recipient.ID)),
				discord.NewSecondaryButton("Cancel", fmt.Sprintf("/gate-gift/%s/%s/cancel", senderID, recipient.ID)),
			),
		},
	})
}

// GateGiftComponent completes or cancels the gift confirm flow. The sender's
// debit and the recipient's credit only happen on an accept inside the
// confirm window.
func GateGiftComponent(b *gatekeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		senderID := e.Vars["user"]
		recipientID := e.Vars["recipient"]

		if e.User().ID.String() != senderID {
			return e.CreateMessage(discord.MessageCreate{
				Content: "This confirmation belongs to someone else.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		switch resolveConfirm(e.Vars["action"], e.Message.CreatedAt, time.Now()) {
		case confirmExpired:
			return e.UpdateMessage(expiredUpdate("Gift offer expired."))
		case confirmCancelled:
			return e.UpdateMessage(expiredUpdate("Gift cancelled."))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := b.GateService.GiftTicket(ctx, senderID, recipientID)
		switch {
		case errors.Is(err, repositories.ErrInsufficientBalance):
			return e.UpdateMessage(expiredUpdate(shortfallMessage(ctx, b, senderID, gate.GiftTicketCost)))
		case errors.Is(err, repositories.ErrTicketCeiling):
			return e.UpdateMessage(expiredUpdate("The recipient already holds the maximum number of tickets."))
		case err != nil:
			return e.UpdateMessage(expiredUpdate("Gift failed. Please try again later."))
		}

		return e.UpdateMessage(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "🎁 Ticket gifted",
				Description: fmt.Sprintf("Spent %d tokens to gift one ticket to <@%s>.", gate.GiftTicketCost, recipientID),
				Color:       SuccessColor,
			}},
			Components: &[]discord.ContainerComponent{},
		})
	}
}

func gateGiveTake(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent, give bool) error {
	data := e.SlashCommandInteractionData()
	target := data.User("user")
	tickets := data.String("currency") == "tickets"
	amount := data.Int("amount")
	actorID := e.User().ID.String()

	var err error
	if give {
		err = b.GateService.Give(ctx, actorID, target.ID.String(), tickets, amount)
	} else {
		err = b.GateService.Take(ctx, actorID, target.ID.String(), tickets, amount)
	}

	switch {
	case errors.Is(err, gate.ErrNotAuthorized):
		return errorMessage(e, "Only gate leads can do that.")
	case errors.Is(err, repositories.ErrCeilingExceeded), errors.Is(err, repositories.ErrTicketCeiling):
		return errorMessage(e, "That would push the balance past its ceiling.")
	case errors.Is(err, repositories.ErrInsufficientBalance), errors.Is(err, repositories.ErrInsufficientTickets):
		return errorMessage(e, "The target balance is too low for that.")
	case err != nil:
		return errorMessage(e, "Operation failed. Please try again later.")
	}

	verb := "Granted"
	if !give {
		verb = "Removed"
	}
	return successMessage(e, "Balance updated",
		fmt.Sprintf("%s %d %s %s %s.", verb, amount, data.String("currency"),
			map[bool]string{true: "to", false: "from"}[give], target.Mention()))
}

func gateToggle(ctx context.Context, b *gatekeeper.Bot, e *handler.CommandEvent) error {
	if !b.GateService.IsLead(e.User().ID.String()) {
		return errorMessage(e, "Only gate leads can do that.")
	}
	if e.GuildID() == nil {
		return errorMessage(e, "This command only works in a server.")
	}

	data := e.SlashCommandInteractionData()
	serverID := e.GuildID().String()

	var (
		state bool
		err   error
		label string
	)
	switch data.String("switch") {
	case "economy":
		state, err = b.GateRepository.ToggleEconomy(ctx, serverID)
		label = "Economy"
	case "tracking":
		state, err = b.GateRepository.ToggleTracking(ctx, serverID)
		label = "Claim tracking"
	default:
		return errorMessage(e, "Unknown switch")
	}
	if err != nil {
		return errorMessage(e, "Toggle failed. Please try again later.")
	}

	stateText := "disabled"
	if state {
		stateText = "enabled"
	}
	return successMessage(e, "Switch flipped", fmt.Sprintf("%s is now **%s**.", label, stateText))
}

func gateNuke(b *gatekeeper.Bot, e *handler.CommandEvent) error {
	if !b.GateService.IsLead(e.User().ID.String()) {
		return errorMessage(e, "Only gate leads can do that.")
	}

	data := e.SlashCommandInteractionData()
	target := data.User("user")

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "Confirm account reset",
			Description: fmt.Sprintf("Reset **%s**'s tokens, tickets and premium to zero?", target.Username),
			Color:       WarnColor,
		}},
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewDangerButton("Reset", fmt.Sprintf("/gate-nuke/%s/confirm", target.ID)),
				discord.NewSecondaryButton("Cancel", fmt.Sprintf("/gate-nuke/%s/cancel", target.ID)),
			),
		},
	})
}

// GateNukeComponent completes the reset confirm flow. The lead check runs
// again on the click; a button outliving a lead's tenure grants nothing.
func GateNukeComponent(b *gatekeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		if !b.GateService.IsLead(e.User().ID.String()) {
			return e.CreateMessage(discord.MessageCreate{
				Content: "Only gate leads can do that.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		switch resolveConfirm(e.Vars["action"], e.Message.CreatedAt, time.Now()) {
		case confirmExpired:
			return e.UpdateMessage(expiredUpdate("Confirmation expired."))
		case confirmCancelled:
			return e.UpdateMessage(expiredUpdate("Reset cancelled."))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := b.GateService.Nuke(ctx, e.User().ID.String(), e.Vars["target"]); err != nil {
			return e.UpdateMessage(expiredUpdate("Reset failed. Please try again later."))
		}

		return e.UpdateMessage(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "💥 Account reset",
				Description: fmt.Sprintf("<@%s> is back to zero.", e.Vars["target"]),
				Color:       SuccessColor,
			}},
			Components: &[]discord.ContainerComponent{},
		})
	}
}

// shortfallMessage spells out an insufficient-balance rejection with the
// user's current token count. The extra read is best-effort; the rejection
// stands without it.
func shortfallMessage(ctx context.Context, b *gatekeeper.Bot, userID string, cost int) string {
	if balance, err := b.GateService.Balance(ctx, userID); err == nil {
		return fmt.Sprintf("That costs %d tokens and you only have %d.", cost, balance.Tokens)
	}
	return fmt.Sprintf("That costs %d tokens and you don't have enough.", cost)
}

func errorMessage(e *handler.CommandEvent, msg string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "Error",
			Description: msg,
			Color:       ErrorColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

func successMessage(e *handler.CommandEvent, title, msg string) error {
	now := time.Now()
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       title,
			Description: msg,
			Color:       SuccessColor,
			Timestamp:   &now,
		}},
	})
}

func expiredUpdate(msg string) discord.MessageUpdate {
	return discord.MessageUpdate{
		Embeds: &[]discord.Embed{{
			Description: msg,
			Color:       ErrorColor,
		}},
		Components: &[]discord.ContainerComponent{},
	}
}
