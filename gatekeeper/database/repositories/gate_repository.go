package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInsufficientTickets = errors.New("insufficient tickets")
	ErrCeilingExceeded     = errors.New("balance ceiling exceeded")
	ErrTicketCeiling       = errors.New("ticket ceiling reached")
	ErrPremiumActive       = errors.New("premium already active")
)

// GateRepository is the economy ledger. Every balance change is a single
// conditional update carrying its precondition in the filter, so a
// concurrent operation can never observe a stale balance and still apply.
type GateRepository interface {
	EnsureUser(ctx context.Context, userID string) (*models.GateUser, error)
	GetUser(ctx context.Context, userID string) (*models.GateUser, error)
	EnsureServer(ctx context.Context, serverID string) (*models.GateServer, error)
	GetServer(ctx context.Context, serverID string) (*models.GateServer, error)
	ToggleEconomy(ctx context.Context, serverID string) (bool, error)
	ToggleTracking(ctx context.Context, serverID string) (bool, error)

	CreditTokens(ctx context.Context, userID string, amount int) error
	DebitTokens(ctx context.Context, userID string, amount int) error
	CreditTickets(ctx context.Context, userID string, amount int) error
	DebitTickets(ctx context.Context, userID string, amount int) error

	BuyTicket(ctx context.Context, userID string, cost int) error
	ActivatePremium(ctx context.Context, userID string, cost int, expiresAt time.Time) error
	ExpirePremiumIfDue(ctx context.Context, userID string, now time.Time) (bool, error)
	ResetUser(ctx context.Context, userID string) error
}

type gateRepository struct {
	db *database.DB
}

func NewGateRepository(db *database.DB) GateRepository {
	return &gateRepository{db: db}
}

// EnsureUser is get-or-create with schema backfill: accounts created before
// the premium rollout get the sub-object patched in place.
func (r *gateRepository) EnsureUser(ctx context.Context, userID string) (*models.GateUser, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		fresh := models.NewGateUser(userID)
		_, err := r.db.GateUsers.InsertOne(ctx, fresh)
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to create gate user %s: %w", userID, err)
		}
		return r.GetUser(ctx, userID)
	}
	if user.Premium == nil {
		if _, err := r.db.GateUsers.UpdateOne(ctx,
			bson.M{"userID": userID, "premium": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"premium": models.Premium{}}},
		); err != nil {
			return nil, fmt.Errorf("failed to backfill premium for %s: %w", userID, err)
		}
		user.Premium = &models.Premium{}
	}
	return user, nil
}

func (r *gateRepository) GetUser(ctx context.Context, userID string) (*models.GateUser, error) {
	var user models.GateUser
	err := r.db.GateUsers.FindOne(ctx, bson.M{"userID": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gate user %s: %w", userID, err)
	}
	return &user, nil
}

// GetServer returns nil when the gate server document has never been
// created; ingestion treats that as tracking-enabled.
func (r *gateRepository) GetServer(ctx context.Context, serverID string) (*models.GateServer, error) {
	var server models.GateServer
	err := r.db.GateServers.FindOne(ctx, bson.M{"serverID": serverID}).Decode(&server)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gate server %s: %w", serverID, err)
	}
	return &server, nil
}

func (r *gateRepository) EnsureServer(ctx context.Context, serverID string) (*models.GateServer, error) {
	var server models.GateServer
	err := r.db.GateServers.FindOne(ctx, bson.M{"serverID": serverID}).Decode(&server)
	if err == nil {
		return &server, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to load gate server %s: %w", serverID, err)
	}
	fresh := models.NewGateServer(serverID)
	_, err = r.db.GateServers.InsertOne(ctx, fresh)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to create gate server %s: %w", serverID, err)
	}
	err = r.db.GateServers.FindOne(ctx, bson.M{"serverID": serverID}).Decode(&server)
	if err != nil {
		return nil, fmt.Errorf("failed to load gate server %s: %w", serverID, err)
	}
	return &server, nil
}

// ToggleEconomy flips the economy switch in one pipeline update and returns
// the new state.
func (r *gateRepository) ToggleEconomy(ctx context.Context, serverID string) (bool, error) {
	return r.flipServerFlag(ctx, serverID, "economyEnabled")
}

// ToggleTracking flips the claim-tracking switch and returns the new state.
func (r *gateRepository) ToggleTracking(ctx context.Context, serverID string) (bool, error) {
	return r.flipServerFlag(ctx, serverID, "cardTrackingEnabled")
}

func (r *gateRepository) flipServerFlag(ctx context.Context, serverID, field string) (bool, error) {
	if _, err := r.EnsureServer(ctx, serverID); err != nil {
		return false, err
	}
	pipeline := bson.A{bson.M{"$set": bson.M{field: bson.M{"$not": "$" + field}}}}
	var server models.GateServer
	err := r.db.GateServers.FindOneAndUpdate(ctx,
		bson.M{"serverID": serverID},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&server)
	if err != nil {
		return false, fmt.Errorf("failed to toggle %s for %s: %w", field, serverID, err)
	}
	switch field {
	case "economyEnabled":
		return server.EconomyEnabled, nil
	default:
		return server.CardTrackingEnabled, nil
	}
}

func tokenField() string {
	return fmt.Sprintf("currency.%d", models.CurrencyTokens)
}

func ticketField() string {
	return fmt.Sprintf("currency.%d", models.CurrencyTickets)
}

// CreditTokens rejects any credit that would cross the token ceiling. The
// precondition sits in the update filter, so the check and the increment
// are one atomic operation.
func (r *gateRepository) CreditTokens(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{"userID": userID, tokenField(): bson.M{"$lte": models.MaxTokens - amount}},
		bson.M{"$inc": bson.M{tokenField(): amount}},
	)
	if err != nil {
		return fmt.Errorf("failed to credit tokens for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrCeilingExceeded
	}
	return nil
}

func (r *gateRepository) DebitTokens(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{"userID": userID, tokenField(): bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{tokenField(): -amount}},
	)
	if err != nil {
		return fmt.Errorf("failed to debit tokens for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *gateRepository) CreditTickets(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{"userID": userID, ticketField(): bson.M{"$lte": models.MaxTickets - amount}},
		bson.M{"$inc": bson.M{ticketField(): amount}},
	)
	if err != nil {
		return fmt.Errorf("failed to credit tickets for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrTicketCeiling
	}
	return nil
}

func (r *gateRepository) DebitTickets(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{"userID": userID, ticketField(): bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{ticketField(): -amount}},
	)
	if err != nil {
		return fmt.Errorf("failed to debit tickets for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientTickets
	}
	return nil
}

// BuyTicket debits the token cost and credits one ticket in a single
// operation; both preconditions must hold or nothing happens.
func (r *gateRepository) BuyTicket(ctx context.Context, userID string, cost int) error {
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{
			"userID":      userID,
			tokenField():  bson.M{"$gte": cost},
			ticketField(): bson.M{"$lt": models.MaxTickets},
		},
		bson.M{"$inc": bson.M{tokenField(): -cost, ticketField(): 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to buy ticket for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		// Disambiguate for the user-facing message.
		user, err := r.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user != nil && user.Tickets() >= models.MaxTickets {
			return ErrTicketCeiling
		}
		return ErrInsufficientBalance
	}
	return nil
}

// ActivatePremium debits the cost and sets the subscription in one
// operation, refusing when a subscription is already active.
func (r *gateRepository) ActivatePremium(ctx context.Context, userID string, cost int, expiresAt time.Time) error {
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{
			"userID":         userID,
			tokenField():     bson.M{"$gte": cost},
			"premium.active": bson.M{"$ne": true},
		},
		bson.M{
			"$inc": bson.M{tokenField(): -cost},
			"$set": bson.M{"premium.active": true, "premium.expiresAt": expiresAt},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to activate premium for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		user, err := r.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user != nil && user.Premium != nil && user.Premium.Active {
			return ErrPremiumActive
		}
		return ErrInsufficientBalance
	}
	return nil
}

// ExpirePremiumIfDue implements lazy expiry: it flips the subscription off
// iff it is active and past its expiry, and reports whether it fired so the
// caller can revoke the associated role. Already-expired accounts match
// nothing, keeping the read path idempotent.
func (r *gateRepository) ExpirePremiumIfDue(ctx context.Context, userID string, now time.Time) (bool, error) {
	res, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{
			"userID":            userID,
			"premium.active":    true,
			"premium.expiresAt": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{"premium.active": false, "premium.expiresAt": nil}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire premium for %s: %w", userID, err)
	}
	return res.ModifiedCount > 0, nil
}

// ResetUser zeroes an account, admin path only.
func (r *gateRepository) ResetUser(ctx context.Context, userID string) error {
	_, err := r.db.GateUsers.UpdateOne(ctx,
		bson.M{"userID": userID},
		bson.M{"$set": bson.M{
			"currency": make([]int, models.CurrencySlots),
			"premium":  models.Premium{},
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to reset gate user %s: %w", userID, err)
	}
	return nil
}
