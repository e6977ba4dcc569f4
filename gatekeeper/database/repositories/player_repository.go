package repositories

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

var ErrUnknownTier = errors.New("unknown tier")

// PlayerRepository is the user-scoped side of the claim ledger. AddClaim and
// AddManualClaim are idempotent: the dedup condition and the counts
// increment live in the same single document operation, so a duplicate can
// never bump the counter and a counted claim can never be missing its list
// entry, whatever the interleaving.
type PlayerRepository interface {
	CreatePlayer(ctx context.Context, userID, serverID string) error
	AddClaim(ctx context.Context, serverID, userID string, claim models.Claim) (bool, error)
	AddManualClaim(ctx context.Context, serverID, userID string, claim models.Claim) (bool, error)
	GetPlayerData(ctx context.Context, userID, serverID string) (*models.ServerStats, error)
}

type playerRepository struct {
	db *database.DB
}

func NewPlayerRepository(db *database.DB) PlayerRepository {
	return &playerRepository{db: db}
}

// CreatePlayer is create-if-missing at both levels: the user document and
// its per-server slice. Creation racing with creation resolves to a silent
// no-op, never an overwrite of existing state.
func (r *playerRepository) CreatePlayer(ctx context.Context, userID, serverID string) error {
	serverKey := fmt.Sprintf("servers.%s", serverID)

	res, err := r.db.Players.UpdateOne(ctx,
		bson.M{"userID": userID, serverKey: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{serverKey: models.NewServerStats()}},
	)
	if err != nil {
		return fmt.Errorf("failed to add server data for player %s: %w", userID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Either the document is absent or the server slice already exists.
	_, err = r.db.Players.InsertOne(ctx, models.Player{
		UserID:  userID,
		Servers: map[string]models.ServerStats{serverID: models.NewServerStats()},
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create player %s: %w", userID, err)
	}
	return nil
}

// AddClaim appends the claim to the bounded per-tier window and increments
// the matching counts slot, unless an element with the same
// (claimedID, cardID, timestamp) is already present. Returns false for the
// duplicate case, which callers treat as success.
func (r *playerRepository) AddClaim(ctx context.Context, serverID, userID string, claim models.Claim) (bool, error) {
	idx := claim.Tier.Index()
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownTier, claim.Tier)
	}
	listKey := fmt.Sprintf("servers.%s.claims.%s", serverID, claim.Tier)
	countKey := fmt.Sprintf("servers.%s.counts.%d", serverID, idx)

	return r.pushClaim(ctx, userID, listKey, countKey, models.AutoClaimWindow, claim)
}

// AddManualClaim is the manual-summon variant: one shared 48-entry window
// not partitioned by tier, but the same counts vector.
func (r *playerRepository) AddManualClaim(ctx context.Context, serverID, userID string, claim models.Claim) (bool, error) {
	idx := claim.Tier.Index()
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownTier, claim.Tier)
	}
	listKey := fmt.Sprintf("servers.%s.manualClaims", serverID)
	countKey := fmt.Sprintf("servers.%s.counts.%d", serverID, idx)

	return r.pushClaim(ctx, userID, listKey, countKey, models.ManualClaimWindow, claim)
}

func (r *playerRepository) pushClaim(ctx context.Context, userID, listKey, countKey string, window int, claim models.Claim) (bool, error) {
	res, err := r.db.Players.UpdateOne(ctx,
		bson.M{
			"userID": userID,
			listKey: bson.M{"$not": bson.M{"$elemMatch": bson.M{
				"claimedID": claim.ClaimedID,
				"cardID":    claim.CardID,
				"timestamp": claim.Timestamp,
			}}},
		},
		bson.M{
			"$push": bson.M{listKey: bson.M{"$each": []models.Claim{claim}, "$slice": -window}},
			"$inc":  bson.M{countKey: 1},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to record claim for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		slog.Debug("Skipping duplicate claim",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.String("claimed_id", claim.ClaimedID))
		return false, nil
	}
	return true, nil
}

// GetPlayerData returns nil when the player or its server slice has never
// been created; callers treat nil as "no data yet".
func (r *playerRepository) GetPlayerData(ctx context.Context, userID, serverID string) (*models.ServerStats, error) {
	var player models.Player
	err := r.db.Players.FindOne(ctx, bson.M{"userID": userID}).Decode(&player)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player %s: %w", userID, err)
	}
	stats, ok := player.Servers[serverID]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}
