package giveaway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"log/slog"

	"github.com/mimsguild/gatekeeper/gatekeeper/catalog"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

var (
	ErrGiveawayInactive = errors.New("giveaway is no longer active")
	ErrNotEnoughPrizes  = errors.New("fewer prizes than winners")
)

// Notifier renders resolution outcomes. Winner embeds and channel routing
// stay behind this boundary; the manager only decides who won.
type Notifier interface {
	AnnounceWinners(giveaway models.Giveaway, winners []models.GiveawayWinner)
	AnnounceNoWinners(giveaway models.Giveaway)
}

// NopNotifier discards announcements.
type NopNotifier struct{}

func (NopNotifier) AnnounceWinners(models.Giveaway, []models.GiveawayWinner) {}
func (NopNotifier) AnnounceNoWinners(models.Giveaway)                       {}

// Manager owns giveaway lifecycle: creation, ticket-gated entry with the
// free-entry rule, and terminal resolution.
type Manager struct {
	repo           repositories.GiveawayRepository
	gate           repositories.GateRepository
	cards          *catalog.Client
	notifier       Notifier
	rand           *rand.Rand
	now            func() time.Time
	firstEntryFree bool
}

func NewManager(repo repositories.GiveawayRepository, gateRepo repositories.GateRepository, cards *catalog.Client, notifier Notifier, firstEntryFree bool) *Manager {
	return &Manager{
		repo:           repo,
		gate:           gateRepo,
		cards:          cards,
		notifier:       notifier,
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		now:            time.Now,
		firstEntryFree: firstEntryFree,
	}
}

// SetRand and SetClock pin randomness and time for tests.
func (m *Manager) SetRand(rng *rand.Rand)        { m.rand = rng }
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Create validates the level-specific prize shape and stores the giveaway.
// Level 0 resolves the prize through the card catalog; level 2 requires at
// least one prize per winner.
func (m *Manager) Create(ctx context.Context, userID string, level int, prize, message, imageURL string, amount int, duration time.Duration) (*models.Giveaway, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	endTimestamp := m.now().Add(duration).Unix()

	var item models.GiveawayItem
	switch level {
	case models.GiveawayLevelCard:
		card, err := m.cards.InventoryItem(ctx, prize)
		if err != nil {
			return nil, err
		}
		desc := message
		if desc == "" {
			desc = fmt.Sprintf("%s #%d\n%s", card.Name, card.Version, card.Series)
		}
		item = models.GiveawayItem{Name: card.Name, Description: desc, ImageURL: card.ImageURL}
	case models.GiveawayLevelCustom:
		item = models.GiveawayItem{Name: prize, Description: message, ImageURL: imageURL}
	case models.GiveawayLevelMultiple:
		prizes := splitPrizes(prize)
		if len(prizes) < amount {
			return nil, fmt.Errorf("%w: %d winners, %d prizes", ErrNotEnoughPrizes, amount, len(prizes))
		}
		item = models.GiveawayItem{Name: strings.Join(prizes, " | "), Description: message}
	default:
		return nil, fmt.Errorf("unknown giveaway level %d", level)
	}

	return m.repo.Create(ctx, userID, item, level, amount, endTimestamp)
}

// Join enters the user. The first entry is free when the global toggle is
// on; every other entry costs exactly one ticket, debited with its
// precondition in the filter before the entry is appended. A giveaway that
// resolved between the read and the append refuses the entry, and a paid
// ticket is refunded.
func (m *Manager) Join(ctx context.Context, giveawayID int, userID string) (free bool, err error) {
	if _, err := m.gate.EnsureUser(ctx, userID); err != nil {
		return false, err
	}

	g, err := m.repo.Get(ctx, giveawayID)
	if err != nil {
		return false, err
	}
	if !g.Active {
		return false, ErrGiveawayInactive
	}

	free = m.firstEntryFree && g.UserEntries(userID) == 0
	if !free {
		if err := m.gate.DebitTickets(ctx, userID, 1); err != nil {
			return false, err
		}
	}

	tickets := 1
	if free {
		tickets = 0
	}
	now := m.now()
	added, err := m.repo.AddEntry(ctx, giveawayID,
		models.GiveawayEntry{UserID: userID, Timestamp: now},
		models.GiveawayLog{UserID: userID, Timestamp: now, Tickets: tickets, FreeEntry: free},
	)
	if err == nil && !added {
		err = ErrGiveawayInactive
	}
	if err != nil && !free {
		if refundErr := m.gate.CreditTickets(ctx, userID, 1); refundErr != nil {
			slog.Error("Failed to refund giveaway ticket",
				slog.String("type", "db"),
				slog.String("user_id", userID),
				slog.Any("error", refundErr))
		}
	}
	if err != nil {
		return false, err
	}
	return free, nil
}

// Sweep resolves every active giveaway whose end has passed. Resolution is
// terminal and idempotent: MarkResolved only transitions an active
// giveaway, so a concurrent sweep rolls winners at most once, and
// announcements fire only for the sweep that won the transition.
func (m *Manager) Sweep(ctx context.Context) error {
	ended, err := m.repo.ListEnded(ctx, m.now())
	if err != nil {
		return err
	}

	for _, g := range ended {
		winners := SelectWinners(g, m.rand)

		resolved, err := m.repo.MarkResolved(ctx, g.GiveawayID, winners)
		if err != nil {
			slog.Error("Failed to resolve giveaway",
				slog.String("type", "db"),
				slog.Int("giveaway_id", g.GiveawayID),
				slog.Any("error", err))
			continue
		}
		if !resolved {
			continue
		}

		g.Active = false
		g.Winners = winners
		if len(winners) == 0 {
			m.notifier.AnnounceNoWinners(g)
			continue
		}
		m.notifier.AnnounceWinners(g, winners)
	}
	return nil
}

func splitPrizes(raw string) []string {
	parts := strings.Split(raw, ",")
	prizes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			prizes = append(prizes, trimmed)
		}
	}
	return prizes
}
