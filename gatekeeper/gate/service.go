package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

var ErrNotAuthorized = errors.New("not authorized")

// RoleManager grants and revokes the Discord role tied to a premium
// subscription. The Discord-backed implementation lives at the edge; the
// service only needs the capability.
type RoleManager interface {
	GrantPremium(ctx context.Context, userID string) error
	RevokePremium(ctx context.Context, userID string) error
}

// NopRoleManager satisfies RoleManager where no role is wired (tests, or a
// deployment without a premium role).
type NopRoleManager struct{}

func (NopRoleManager) GrantPremium(context.Context, string) error  { return nil }
func (NopRoleManager) RevokePremium(context.Context, string) error { return nil }

// Balance is the read model for one account.
type Balance struct {
	Tokens         int
	Tickets        int
	PremiumActive  bool
	PremiumExpires *time.Time
}

// Service is the gate economy: token and ticket movements, purchases and
// premium state. Authorization for the admin paths consults a principal
// set from configuration, never id literals in handlers.
type Service struct {
	repo  repositories.GateRepository
	roles RoleManager
	leads map[string]struct{}
	now   func() time.Time
}

func NewService(repo repositories.GateRepository, roles RoleManager, leads []string) *Service {
	set := make(map[string]struct{}, len(leads))
	for _, id := range leads {
		set[id] = struct{}{}
	}
	return &Service{repo: repo, roles: roles, leads: set, now: time.Now}
}

// SetClock overrides the clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// IsLead reports whether the principal may use the admin paths.
func (s *Service) IsLead(userID string) bool {
	_, ok := s.leads[userID]
	return ok
}

// Balance reads the account, lazily expiring a premium subscription whose
// time has passed: the expiry flag flips and the role is revoked as a side
// effect of this read, there is no background sweep.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	user, err := s.repo.EnsureUser(ctx, userID)
	if err != nil {
		return Balance{}, err
	}

	if user.Premium != nil && user.Premium.Active && user.Premium.ExpiresAt != nil && user.Premium.ExpiresAt.Before(s.now()) {
		expired, err := s.repo.ExpirePremiumIfDue(ctx, userID, s.now())
		if err != nil {
			return Balance{}, err
		}
		if expired {
			user.Premium = &models.Premium{}
			if err := s.roles.RevokePremium(ctx, userID); err != nil {
				slog.Error("Failed to revoke premium role",
					slog.String("type", "sys"),
					slog.String("user_id", userID),
					slog.Any("error", err))
			}
		}
	}

	b := Balance{Tokens: user.Tokens(), Tickets: user.Tickets()}
	if user.Premium != nil {
		b.PremiumActive = user.Premium.Active
		b.PremiumExpires = user.Premium.ExpiresAt
	}
	return b, nil
}

// Give credits tokens or tickets on the admin path. The ceiling still
// applies: an amount that would cross it is rejected, not clamped.
func (s *Service) Give(ctx context.Context, actorID, targetID string, tickets bool, amount int) error {
	if !s.IsLead(actorID) {
		return ErrNotAuthorized
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	if _, err := s.repo.EnsureUser(ctx, targetID); err != nil {
		return err
	}
	if tickets {
		return s.repo.CreditTickets(ctx, targetID, amount)
	}
	return s.repo.CreditTokens(ctx, targetID, amount)
}

// Take debits tokens or tickets on the admin path; a balance that would go
// negative rejects the whole operation.
func (s *Service) Take(ctx context.Context, actorID, targetID string, tickets bool, amount int) error {
	if !s.IsLead(actorID) {
		return ErrNotAuthorized
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	if _, err := s.repo.EnsureUser(ctx, targetID); err != nil {
		return err
	}
	if tickets {
		return s.repo.DebitTickets(ctx, targetID, amount)
	}
	return s.repo.DebitTokens(ctx, targetID, amount)
}

// BuyTicket exchanges tokens for one ticket in a single conditional
// operation. The interactive confirmation happens before this call; expiry
// of the confirmation leaves balances untouched because nothing has been
// written yet.
func (s *Service) BuyTicket(ctx context.Context, userID string) error {
	if _, err := s.repo.EnsureUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.BuyTicket(ctx, userID, TicketCost)
}

// BuyPremium activates a one-week subscription and grants the role.
func (s *Service) BuyPremium(ctx context.Context, userID string) (time.Time, error) {
	if _, err := s.repo.EnsureUser(ctx, userID); err != nil {
		return time.Time{}, err
	}
	expiresAt := s.now().Add(PremiumDuration)
	if err := s.repo.ActivatePremium(ctx, userID, PremiumCost, expiresAt); err != nil {
		return time.Time{}, err
	}
	if err := s.roles.GrantPremium(ctx, userID); err != nil {
		slog.Error("Failed to grant premium role",
			slog.String("type", "sys"),
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
	return expiresAt, nil
}

// GiftTicket debits the sender and credits the recipient one ticket. The
// two documents cannot change in one operation, so the recipient credit is
// compensated by a refund when it fails; the refund ignores the ceiling
// check because the debit just made room.
func (s *Service) GiftTicket(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("cannot gift a ticket to yourself")
	}
	if _, err := s.repo.EnsureUser(ctx, fromID); err != nil {
		return err
	}
	if _, err := s.repo.EnsureUser(ctx, toID); err != nil {
		return err
	}

	if err := s.repo.DebitTokens(ctx, fromID, GiftTicketCost); err != nil {
		return err
	}
	if err := s.repo.CreditTickets(ctx, toID, 1); err != nil {
		if refundErr := s.repo.CreditTokens(ctx, fromID, GiftTicketCost); refundErr != nil {
			slog.Error("Failed to refund gift",
				slog.String("type", "db"),
				slog.String("user_id", fromID),
				slog.Any("error", refundErr))
		}
		return err
	}
	return nil
}

// Nuke zeroes an account. Admin path, confirmation handled at the edge.
func (s *Service) Nuke(ctx context.Context, actorID, targetID string) error {
	if !s.IsLead(actorID) {
		return ErrNotAuthorized
	}
	return s.repo.ResetUser(ctx, targetID)
}
