package giveaway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

type memGiveawayRepo struct {
	giveaways map[int]*models.Giveaway
	nextID    int
}

func newMemGiveawayRepo() *memGiveawayRepo {
	return &memGiveawayRepo{giveaways: map[int]*models.Giveaway{}, nextID: 1}
}

func (r *memGiveawayRepo) Create(_ context.Context, userID string, item models.GiveawayItem, level, amount int, endTimestamp int64) (*models.Giveaway, error) {
	g := &models.Giveaway{
		GiveawayID:   r.nextID,
		UserID:       userID,
		Item:         item,
		Level:        level,
		Amount:       amount,
		EndTimestamp: endTimestamp,
		Active:       true,
	}
	r.giveaways[r.nextID] = g
	r.nextID++
	return g, nil
}

func (r *memGiveawayRepo) Get(_ context.Context, giveawayID int) (*models.Giveaway, error) {
	g, ok := r.giveaways[giveawayID]
	if !ok {
		return nil, repositories.ErrGiveawayNotFound
	}
	copied := *g
	return &copied, nil
}

func (r *memGiveawayRepo) List(context.Context, *bool) ([]models.Giveaway, error) {
	var out []models.Giveaway
	for _, g := range r.giveaways {
		out = append(out, *g)
	}
	return out, nil
}

func (r *memGiveawayRepo) ListEnded(_ context.Context, now time.Time) ([]models.Giveaway, error) {
	var out []models.Giveaway
	for _, g := range r.giveaways {
		if g.Active && g.EndTimestamp < now.Unix() {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *memGiveawayRepo) AddEntry(_ context.Context, giveawayID int, entry models.GiveawayEntry, log models.GiveawayLog) (bool, error) {
	g, ok := r.giveaways[giveawayID]
	if !ok || !g.Active {
		return false, nil
	}
	g.Entries = append(g.Entries, entry)
	g.Logs = append(g.Logs, log)
	return true, nil
}

func (r *memGiveawayRepo) MarkResolved(_ context.Context, giveawayID int, winners []models.GiveawayWinner) (bool, error) {
	g, ok := r.giveaways[giveawayID]
	if !ok || !g.Active {
		return false, nil
	}
	g.Active = false
	g.Winners = winners
	return true, nil
}

func (r *memGiveawayRepo) UpdateEndTimestamp(_ context.Context, giveawayID int, endTimestamp int64) error {
	r.giveaways[giveawayID].EndTimestamp = endTimestamp
	return nil
}

type memTickets struct {
	tickets map[string]int
}

func newMemTickets() *memTickets { return &memTickets{tickets: map[string]int{}} }

func (r *memTickets) EnsureUser(_ context.Context, userID string) (*models.GateUser, error) {
	u := models.NewGateUser(userID)
	u.Currency[models.CurrencyTickets] = r.tickets[userID]
	return &u, nil
}

func (r *memTickets) GetUser(ctx context.Context, userID string) (*models.GateUser, error) {
	return r.EnsureUser(ctx, userID)
}

func (r *memTickets) EnsureServer(context.Context, string) (*models.GateServer, error) {
	return nil, nil
}

func (r *memTickets) GetServer(context.Context, string) (*models.GateServer, error) {
	return nil, nil
}

func (r *memTickets) ToggleEconomy(context.Context, string) (bool, error)  { return false, nil }
func (r *memTickets) ToggleTracking(context.Context, string) (bool, error) { return false, nil }

func (r *memTickets) CreditTokens(context.Context, string, int) error { return nil }
func (r *memTickets) DebitTokens(context.Context, string, int) error  { return nil }

func (r *memTickets) CreditTickets(_ context.Context, userID string, amount int) error {
	r.tickets[userID] += amount
	return nil
}

func (r *memTickets) DebitTickets(_ context.Context, userID string, amount int) error {
	if r.tickets[userID] < amount {
		return repositories.ErrInsufficientTickets
	}
	r.tickets[userID] -= amount
	return nil
}

func (r *memTickets) BuyTicket(context.Context, string, int) error { return nil }

func (r *memTickets) ActivatePremium(context.Context, string, int, time.Time) error { return nil }

func (r *memTickets) ExpirePremiumIfDue(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (r *memTickets) ResetUser(context.Context, string) error { return nil }

type recordingNotifier struct {
	winners  []models.Giveaway
	empty    []models.Giveaway
	lastWins []models.GiveawayWinner
}

func (n *recordingNotifier) AnnounceWinners(g models.Giveaway, winners []models.GiveawayWinner) {
	n.winners = append(n.winners, g)
	n.lastWins = winners
}

func (n *recordingNotifier) AnnounceNoWinners(g models.Giveaway) {
	n.empty = append(n.empty, g)
}

func newTestManager(repo *memGiveawayRepo, tickets *memTickets, notifier Notifier, freeEntry bool) *Manager {
	m := NewManager(repo, tickets, nil, notifier, freeEntry)
	m.SetClock(func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) })
	return m
}

func activeGiveaway(repo *memGiveawayRepo, endOffset time.Duration) *models.Giveaway {
	end := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC).Add(endOffset)
	g, _ := repo.Create(context.Background(), "host",
		models.GiveawayItem{Name: "Prize"}, models.GiveawayLevelCustom, 1, end.Unix())
	return g
}

func TestJoinCostsOneTicket(t *testing.T) {
	repo := newMemGiveawayRepo()
	tickets := newMemTickets()
	tickets.tickets["u1"] = 2
	m := newTestManager(repo, tickets, NopNotifier{}, false)

	g := activeGiveaway(repo, time.Hour)

	free, err := m.Join(context.Background(), g.GiveawayID, "u1")
	require.NoError(t, err)
	assert.False(t, free)
	assert.Equal(t, 1, tickets.tickets["u1"])
	assert.Equal(t, 1, repo.giveaways[g.GiveawayID].UserEntries("u1"))
}

func TestJoinWithoutTicket(t *testing.T) {
	repo := newMemGiveawayRepo()
	tickets := newMemTickets()
	m := newTestManager(repo, tickets, NopNotifier{}, false)

	g := activeGiveaway(repo, time.Hour)

	_, err := m.Join(context.Background(), g.GiveawayID, "broke")
	assert.ErrorIs(t, err, repositories.ErrInsufficientTickets)
	assert.Zero(t, repo.giveaways[g.GiveawayID].UserEntries("broke"))
}

func TestJoinFirstEntryFree(t *testing.T) {
	repo := newMemGiveawayRepo()
	tickets := newMemTickets()
	tickets.tickets["u1"] = 1
	m := newTestManager(repo, tickets, NopNotifier{}, true)

	g := activeGiveaway(repo, time.Hour)
	ctx := context.Background()

	free, err := m.Join(ctx, g.GiveawayID, "u1")
	require.NoError(t, err)
	assert.True(t, free, "first entry rides free")
	assert.Equal(t, 1, tickets.tickets["u1"], "no ticket spent")

	free, err = m.Join(ctx, g.GiveawayID, "u1")
	require.NoError(t, err)
	assert.False(t, free, "second entry pays")
	assert.Equal(t, 0, tickets.tickets["u1"])

	logs := repo.giveaways[g.GiveawayID].Logs
	require.Len(t, logs, 2)
	assert.True(t, logs[0].FreeEntry)
	assert.Equal(t, 0, logs[0].Tickets)
	assert.False(t, logs[1].FreeEntry)
	assert.Equal(t, 1, logs[1].Tickets)
}

func TestJoinInactiveGiveaway(t *testing.T) {
	repo := newMemGiveawayRepo()
	tickets := newMemTickets()
	tickets.tickets["u1"] = 1
	m := newTestManager(repo, tickets, NopNotifier{}, false)

	g := activeGiveaway(repo, time.Hour)
	repo.giveaways[g.GiveawayID].Active = false

	_, err := m.Join(context.Background(), g.GiveawayID, "u1")
	assert.ErrorIs(t, err, ErrGiveawayInactive)
	assert.Equal(t, 1, tickets.tickets["u1"], "nothing charged for a dead giveaway")
}

func TestJoinUnknownGiveaway(t *testing.T) {
	m := newTestManager(newMemGiveawayRepo(), newMemTickets(), NopNotifier{}, false)
	_, err := m.Join(context.Background(), 99, "u1")
	assert.ErrorIs(t, err, repositories.ErrGiveawayNotFound)
}

func TestSweepResolvesEndedGiveaway(t *testing.T) {
	repo := newMemGiveawayRepo()
	tickets := newMemTickets()
	tickets.tickets["u1"] = 1
	notifier := &recordingNotifier{}
	m := newTestManager(repo, tickets, notifier, false)

	g := activeGiveaway(repo, time.Hour)
	_, err := m.Join(context.Background(), g.GiveawayID, "u1")
	require.NoError(t, err)

	// Move past the end and sweep.
	m.SetClock(func() time.Time { return time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC) })
	require.NoError(t, m.Sweep(context.Background()))

	require.Len(t, notifier.winners, 1)
	require.Len(t, notifier.lastWins, 1)
	assert.Equal(t, "u1", notifier.lastWins[0].UserID)
	assert.False(t, repo.giveaways[g.GiveawayID].Active)

	// A second sweep finds nothing to transition and stays quiet.
	require.NoError(t, m.Sweep(context.Background()))
	assert.Len(t, notifier.winners, 1, "resolution is terminal")
}

func TestSweepNoEntries(t *testing.T) {
	repo := newMemGiveawayRepo()
	notifier := &recordingNotifier{}
	m := newTestManager(repo, newMemTickets(), notifier, false)

	g := activeGiveaway(repo, time.Hour)

	m.SetClock(func() time.Time { return time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC) })
	require.NoError(t, m.Sweep(context.Background()))

	require.Len(t, notifier.empty, 1)
	assert.Empty(t, notifier.winners)
	assert.False(t, repo.giveaways[g.GiveawayID].Active)
	assert.Empty(t, repo.giveaways[g.GiveawayID].Winners)
}

func TestSweepLeavesRunningGiveawaysAlone(t *testing.T) {
	repo := newMemGiveawayRepo()
	notifier := &recordingNotifier{}
	m := newTestManager(repo, newMemTickets(), notifier, false)

	g := activeGiveaway(repo, time.Hour)
	require.NoError(t, m.Sweep(context.Background()))

	assert.True(t, repo.giveaways[g.GiveawayID].Active)
	assert.Empty(t, notifier.winners)
	assert.Empty(t, notifier.empty)
}

func TestSplitPrizes(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitPrizes("a, b ,c"))
	assert.Equal(t, []string{"solo"}, splitPrizes("solo"))
	assert.Empty(t, splitPrizes(" , ,"))
}
