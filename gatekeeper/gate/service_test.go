package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

// memGateRepo mimics the ledger's conditional-write semantics in memory:
// every mutation checks its precondition and rejects instead of clamping.
type memGateRepo struct {
	users   map[string]*models.GateUser
	servers map[string]*models.GateServer
}

func newMemGateRepo() *memGateRepo {
	return &memGateRepo{
		users:   map[string]*models.GateUser{},
		servers: map[string]*models.GateServer{},
	}
}

func (r *memGateRepo) EnsureUser(_ context.Context, userID string) (*models.GateUser, error) {
	if u, ok := r.users[userID]; ok {
		return u, nil
	}
	u := models.NewGateUser(userID)
	r.users[userID] = &u
	return &u, nil
}

func (r *memGateRepo) GetUser(_ context.Context, userID string) (*models.GateUser, error) {
	return r.users[userID], nil
}

func (r *memGateRepo) EnsureServer(_ context.Context, serverID string) (*models.GateServer, error) {
	if s, ok := r.servers[serverID]; ok {
		return s, nil
	}
	s := models.NewGateServer(serverID)
	r.servers[serverID] = &s
	return &s, nil
}

func (r *memGateRepo) GetServer(_ context.Context, serverID string) (*models.GateServer, error) {
	return r.servers[serverID], nil
}

func (r *memGateRepo) ToggleEconomy(ctx context.Context, serverID string) (bool, error) {
	s, _ := r.EnsureServer(ctx, serverID)
	s.EconomyEnabled = !s.EconomyEnabled
	return s.EconomyEnabled, nil
}

func (r *memGateRepo) ToggleTracking(ctx context.Context, serverID string) (bool, error) {
	s, _ := r.EnsureServer(ctx, serverID)
	s.CardTrackingEnabled = !s.CardTrackingEnabled
	return s.CardTrackingEnabled, nil
}

func (r *memGateRepo) CreditTokens(ctx context.Context, userID string, amount int) error {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Currency[models.CurrencyTokens]+amount > models.MaxTokens {
		return repositories.ErrCeilingExceeded
	}
	u.Currency[models.CurrencyTokens] += amount
	return nil
}

func (r *memGateRepo) DebitTokens(ctx context.Context, userID string, amount int) error {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Currency[models.CurrencyTokens] < amount {
		return repositories.ErrInsufficientBalance
	}
	u.Currency[models.CurrencyTokens] -= amount
	return nil
}

func (r *memGateRepo) CreditTickets(ctx context.Context, userID string, amount int) error {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Currency[models.CurrencyTickets]+amount > models.MaxTickets {
		return repositories.ErrTicketCeiling
	}
	u.Currency[models.CurrencyTickets] += amount
	return nil
}

func (r *memGateRepo) DebitTickets(ctx context.Context, userID string, amount int) error {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Currency[models.CurrencyTickets] < amount {
		return repositories.ErrInsufficientTickets
	}
	u.Currency[models.CurrencyTickets] -= amount
	return nil
}

func (r *memGateRepo) BuyTicket(ctx context.Context, userID string, cost int) error {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Currency[models.CurrencyTokens] < cost {
		return repositories.ErrInsufficientBalance
	}
	if u.Currency[models.CurrencyTickets] >= models.MaxTickets {
		return repositories.ErrTicketCeiling
	}
	u.Currency[models.CurrencyTokens] -= cost
	u.Currency[models.CurrencyTickets]++
	return nil
}

func (r *memGateRepo) ActivatePremium(ctx context.Context, userID string, cost int, expiresAt time.Time) error {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Premium != nil && u.Premium.Active {
		return repositories.ErrPremiumActive
	}
	if u.Currency[models.CurrencyTokens] < cost {
		return repositories.ErrInsufficientBalance
	}
	u.Currency[models.CurrencyTokens] -= cost
	u.Premium = &models.Premium{Active: true, ExpiresAt: &expiresAt}
	return nil
}

func (r *memGateRepo) ExpirePremiumIfDue(ctx context.Context, userID string, now time.Time) (bool, error) {
	u, _ := r.EnsureUser(ctx, userID)
	if u.Premium != nil && u.Premium.Active && u.Premium.ExpiresAt != nil && u.Premium.ExpiresAt.Before(now) {
		u.Premium = &models.Premium{}
		return true, nil
	}
	return false, nil
}

func (r *memGateRepo) ResetUser(ctx context.Context, userID string) error {
	u := models.NewGateUser(userID)
	r.users[userID] = &u
	return nil
}

type recordingRoles struct {
	granted []string
	revoked []string
}

func (r *recordingRoles) GrantPremium(_ context.Context, userID string) error {
	r.granted = append(r.granted, userID)
	return nil
}

func (r *recordingRoles) RevokePremium(_ context.Context, userID string) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

func newTestService(repo repositories.GateRepository, roles RoleManager) *Service {
	return NewService(repo, roles, []string{"lead"})
}

func TestGiveRequiresLead(t *testing.T) {
	s := newTestService(newMemGateRepo(), NopRoleManager{})
	err := s.Give(context.Background(), "rando", "target", false, 100)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestGiveRejectsCeilingInsteadOfClamping(t *testing.T) {
	repo := newMemGateRepo()
	s := newTestService(repo, NopRoleManager{})
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "target", false, models.MaxTokens))
	err := s.Give(ctx, "lead", "target", false, 1)

	assert.ErrorIs(t, err, repositories.ErrCeilingExceeded)
	assert.Equal(t, models.MaxTokens, repo.users["target"].Tokens(), "balance must be untouched")
}

func TestTakeRejectsOverdraft(t *testing.T) {
	repo := newMemGateRepo()
	s := newTestService(repo, NopRoleManager{})
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "target", false, 50))
	err := s.Take(ctx, "lead", "target", false, 51)

	assert.ErrorIs(t, err, repositories.ErrInsufficientBalance)
	assert.Equal(t, 50, repo.users["target"].Tokens())
}

func TestBuyTicketSpendsTokens(t *testing.T) {
	repo := newMemGateRepo()
	s := newTestService(repo, NopRoleManager{})
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "buyer", false, TicketCost))
	require.NoError(t, s.BuyTicket(ctx, "buyer"))

	assert.Equal(t, 0, repo.users["buyer"].Tokens())
	assert.Equal(t, 1, repo.users["buyer"].Tickets())
}

func TestBuyPremiumGrantsRole(t *testing.T) {
	repo := newMemGateRepo()
	roles := &recordingRoles{}
	s := newTestService(repo, roles)
	s.SetClock(func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "buyer", false, PremiumCost))
	expiresAt, err := s.BuyPremium(ctx, "buyer")

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC), expiresAt)
	assert.Equal(t, []string{"buyer"}, roles.granted)

	_, err = s.BuyPremium(ctx, "buyer")
	assert.ErrorIs(t, err, repositories.ErrPremiumActive)
}

func TestBalanceLazyPremiumExpiry(t *testing.T) {
	repo := newMemGateRepo()
	roles := &recordingRoles{}
	s := newTestService(repo, roles)

	current := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return current })
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "buyer", false, PremiumCost))
	_, err := s.BuyPremium(ctx, "buyer")
	require.NoError(t, err)

	// Before expiry the subscription reads active.
	b, err := s.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.True(t, b.PremiumActive)
	assert.Empty(t, roles.revoked)

	// The first read past expiry flips the flag and revokes the role.
	current = current.Add(PremiumDuration + time.Hour)
	b, err = s.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.False(t, b.PremiumActive)
	assert.Equal(t, []string{"buyer"}, roles.revoked)
}

func TestGiftTicketMovesValue(t *testing.T) {
	repo := newMemGateRepo()
	s := newTestService(repo, NopRoleManager{})
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "sender", false, GiftTicketCost))
	require.NoError(t, s.GiftTicket(ctx, "sender", "friend"))

	assert.Equal(t, 0, repo.users["sender"].Tokens())
	assert.Equal(t, 1, repo.users["friend"].Tickets())
}

func TestGiftTicketRefundsWhenRecipientFull(t *testing.T) {
	repo := newMemGateRepo()
	s := newTestService(repo, NopRoleManager{})
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "sender", false, GiftTicketCost))
	require.NoError(t, s.Give(ctx, "lead", "friend", true, models.MaxTickets))

	err := s.GiftTicket(ctx, "sender", "friend")

	assert.ErrorIs(t, err, repositories.ErrTicketCeiling)
	assert.Equal(t, GiftTicketCost, repo.users["sender"].Tokens(), "debit must be refunded")
	assert.Equal(t, models.MaxTickets, repo.users["friend"].Tickets())
}

func TestNuke(t *testing.T) {
	repo := newMemGateRepo()
	s := newTestService(repo, NopRoleManager{})
	ctx := context.Background()

	require.NoError(t, s.Give(ctx, "lead", "target", false, 500))
	require.NoError(t, s.Give(ctx, "lead", "target", true, 2))

	assert.ErrorIs(t, s.Nuke(ctx, "rando", "target"), ErrNotAuthorized)
	require.NoError(t, s.Nuke(ctx, "lead", "target"))

	assert.Equal(t, 0, repo.users["target"].Tokens())
	assert.Equal(t, 0, repo.users["target"].Tickets())
}
