package gate

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"log/slog"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

// Token-drop tuning. A summon in the gate guild opens a short window; users
// chatting inside it are entered into a small random token drop.
const (
	DropWindow     = 19 * time.Second
	maxDropWinners = 4
)

// Special reward tiers, checked in order against one percentage roll.
const (
	incredibleLuckChance = 0.001
	rareDropChance       = 0.01
	luckyDrawChance      = 0.5

	incredibleLuckTokens = 100
	rareDropTokens       = 50
	luckyDrawTokens      = 25
)

// RoleChecker reports the bonus roles of a participant; the Discord-backed
// implementation lives at the edge.
type RoleChecker interface {
	HasBoosterRole(userID string) bool
	HasClanRole(userID string) bool
}

// DropAward is one winner's payout after bonuses and ceiling handling.
type DropAward struct {
	UserID string
	Tokens int
}

// DropResult is handed to the notifier for rendering.
type DropResult struct {
	Winners      []DropAward
	SpecialLabel string
	BoosterBonus bool
	ClanBonus    bool
	Participants int
}

type dropWindow struct {
	participants map[string]struct{}
	timer        *time.Timer
}

// Drops runs the summon-event token drop for the gate guild. Windows are
// keyed by channel so overlapping summons in different channels stay
// independent.
type Drops struct {
	repo        repositories.GateRepository
	roles       RoleChecker
	gateGuildID string
	rand        *rand.Rand
	notify      func(channelID string, result DropResult)

	mu      sync.Mutex
	windows map[string]*dropWindow
}

func NewDrops(repo repositories.GateRepository, roles RoleChecker, gateGuildID string, rng *rand.Rand, notify func(channelID string, result DropResult)) *Drops {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Drops{
		repo:        repo,
		roles:       roles,
		gateGuildID: gateGuildID,
		rand:        rng,
		notify:      notify,
		windows:     make(map[string]*dropWindow),
	}
}

// OpenWindow starts a drop window for the channel; a summon landing while a
// window is already open extends nothing and collects into the same pool.
func (d *Drops) OpenWindow(guildID, channelID string) {
	if guildID != d.gateGuildID {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, open := d.windows[channelID]; open {
		return
	}
	w := &dropWindow{participants: make(map[string]struct{})}
	w.timer = time.AfterFunc(DropWindow, func() { d.closeWindow(channelID) })
	d.windows[channelID] = w
}

// RecordParticipant enters a chatter into the open window, if any.
func (d *Drops) RecordParticipant(channelID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, open := d.windows[channelID]; open {
		w.participants[userID] = struct{}{}
	}
}

func (d *Drops) closeWindow(channelID string) {
	d.mu.Lock()
	w, open := d.windows[channelID]
	delete(d.windows, channelID)
	d.mu.Unlock()
	if !open || len(w.participants) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	server, err := d.repo.GetServer(ctx, d.gateGuildID)
	if err != nil {
		slog.Error("Failed to load gate server for drop",
			slog.String("type", "db"),
			slog.Any("error", err))
		return
	}
	if server == nil || !server.EconomyEnabled {
		return
	}

	participants := make([]string, 0, len(w.participants))
	for id := range w.participants {
		participants = append(participants, id)
	}

	result := d.resolve(ctx, participants)
	if d.notify != nil && len(result.Winners) > 0 {
		d.notify(channelID, result)
	}
}

// resolve picks 1..maxDropWinners distinct winners and credits their
// rewards. A credit that would cross the token ceiling is retried with the
// remaining headroom instead of failing the drop.
func (d *Drops) resolve(ctx context.Context, participants []string) DropResult {
	winnerCount := d.rand.Intn(maxDropWinners) + 1
	if winnerCount > len(participants) {
		winnerCount = len(participants)
	}

	pool := append([]string(nil), participants...)
	winners := make([]string, 0, winnerCount)
	for i := 0; i < winnerCount; i++ {
		idx := d.rand.Intn(len(pool))
		winners = append(winners, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	result := DropResult{Participants: len(participants)}

	specialTokens := 0
	roll := d.rand.Float64() * 100
	switch {
	case roll < incredibleLuckChance:
		specialTokens, result.SpecialLabel = incredibleLuckTokens, "Incredible Luck"
	case roll < rareDropChance:
		specialTokens, result.SpecialLabel = rareDropTokens, "Rare Drop"
	case roll < luckyDrawChance:
		specialTokens, result.SpecialLabel = luckyDrawTokens, "Lucky Draw"
	}

	for _, winnerID := range winners {
		if d.roles.HasBoosterRole(winnerID) {
			result.BoosterBonus = true
		}
		if d.roles.HasClanRole(winnerID) {
			result.ClanBonus = true
		}
	}

	for i, winnerID := range winners {
		tokens := d.rand.Intn(3)
		if i == 0 && specialTokens > 0 {
			tokens = specialTokens
		}
		if result.BoosterBonus {
			tokens = tokens * 3 / 2
		} else if result.ClanBonus {
			tokens = tokens * 5 / 4
		}
		if tokens == 0 {
			continue
		}
		awarded := d.credit(ctx, winnerID, tokens)
		if awarded > 0 {
			result.Winners = append(result.Winners, DropAward{UserID: winnerID, Tokens: awarded})
		}
	}
	return result
}

func (d *Drops) credit(ctx context.Context, userID string, tokens int) int {
	user, err := d.repo.EnsureUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to ensure drop winner",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return 0
	}

	err = d.repo.CreditTokens(ctx, userID, tokens)
	if errors.Is(err, repositories.ErrCeilingExceeded) {
		// Award the remaining headroom instead of dropping the reward.
		headroom := models.MaxTokens - user.Tokens()
		if headroom <= 0 {
			return 0
		}
		tokens = headroom
		err = d.repo.CreditTokens(ctx, userID, tokens)
	}
	if err != nil {
		slog.Error("Failed to credit drop reward",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return 0
	}
	return tokens
}
