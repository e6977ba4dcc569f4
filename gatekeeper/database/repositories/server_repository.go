package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

var (
	ErrSettingsNotFound   = errors.New("server settings not found")
	ErrInvalidHandlerType = errors.New("invalid handler type")
)

// ServerRepository is the server-scoped side of the claim ledger plus the
// per-server settings store.
type ServerRepository interface {
	CreateServer(ctx context.Context, serverID string) error
	GetServerData(ctx context.Context, serverID string) (*models.Server, error)
	AddServerClaim(ctx context.Context, serverID string, claim models.Claim) (bool, error)

	GetServerSettings(ctx context.Context, serverID string) (*models.ServerSettings, error)
	CreateServerSettings(ctx context.Context, serverID string) (*models.ServerSettings, error)
	ToggleRegister(ctx context.Context, serverID string) error
	ToggleAllowRolePing(ctx context.Context, serverID string) (bool, error)
	ToggleAllowCooldownPing(ctx context.Context, serverID string) (bool, error)
	ToggleHandler(ctx context.Context, serverID, handlerType string) (bool, error)
}

type serverRepository struct {
	db *database.DB
}

func NewServerRepository(db *database.DB) ServerRepository {
	return &serverRepository{db: db}
}

func (r *serverRepository) CreateServer(ctx context.Context, serverID string) error {
	_, err := r.db.Servers.InsertOne(ctx, models.NewServer(serverID))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create server %s: %w", serverID, err)
	}
	return nil
}

func (r *serverRepository) GetServerData(ctx context.Context, serverID string) (*models.Server, error) {
	var server models.Server
	err := r.db.Servers.FindOne(ctx, bson.M{"serverID": serverID}).Decode(&server)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load server %s: %w", serverID, err)
	}
	return &server, nil
}

// AddServerClaim mirrors PlayerRepository.AddClaim at guild scope with a
// 100-entry window per tier. Same single-operation dedup + increment
// coupling.
func (r *serverRepository) AddServerClaim(ctx context.Context, serverID string, claim models.Claim) (bool, error) {
	idx := claim.Tier.Index()
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownTier, claim.Tier)
	}
	listKey := fmt.Sprintf("claims.%s", claim.Tier)

	res, err := r.db.Servers.UpdateOne(ctx,
		bson.M{
			"serverID": serverID,
			listKey: bson.M{"$not": bson.M{"$elemMatch": bson.M{
				"claimedID": claim.ClaimedID,
				"cardID":    claim.CardID,
				"timestamp": claim.Timestamp,
			}}},
		},
		bson.M{
			"$push": bson.M{listKey: bson.M{"$each": []models.Claim{claim}, "$slice": -models.ServerClaimWindow}},
			"$inc":  bson.M{fmt.Sprintf("counts.%d", idx): 1},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to record server claim for %s: %w", serverID, err)
	}
	return res.MatchedCount > 0, nil
}

// GetServerSettings returns a fully-populated settings value, upgrading old
// documents in place when a sub-field is missing. Nil means the settings
// have never been created.
func (r *serverRepository) GetServerSettings(ctx context.Context, serverID string) (*models.ServerSettings, error) {
	var settings models.ServerSettings
	err := r.db.ServerSettings.FindOne(ctx, bson.M{"serverID": serverID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for %s: %w", serverID, err)
	}
	if settings.Normalize() {
		if _, err := r.db.ServerSettings.UpdateOne(ctx,
			bson.M{"serverID": serverID},
			bson.M{"$set": bson.M{"settings": settings.Settings, "userPing": settings.UserPing}},
		); err != nil {
			return nil, fmt.Errorf("failed to upgrade settings for %s: %w", serverID, err)
		}
	}
	return &settings, nil
}

// CreateServerSettings creates the default settings document, or upgrades
// an existing one without disturbing its current toggle values.
func (r *serverRepository) CreateServerSettings(ctx context.Context, serverID string) (*models.ServerSettings, error) {
	existing, err := r.GetServerSettings(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	defaults := models.DefaultServerSettings(serverID)
	_, err = r.db.ServerSettings.InsertOne(ctx, defaults)
	if mongo.IsDuplicateKeyError(err) {
		return r.GetServerSettings(ctx, serverID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create settings for %s: %w", serverID, err)
	}
	return &defaults, nil
}

func (r *serverRepository) ToggleRegister(ctx context.Context, serverID string) error {
	res, err := r.db.ServerSettings.UpdateOne(ctx,
		bson.M{"serverID": serverID},
		bson.M{"$set": bson.M{"register": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to set register for %s: %w", serverID, err)
	}
	if res.MatchedCount == 0 {
		return ErrSettingsNotFound
	}
	return nil
}

func (r *serverRepository) ToggleAllowRolePing(ctx context.Context, serverID string) (bool, error) {
	return r.flip(ctx, serverID, "settings.allowRolePing", func(s *models.ServerSettings) bool {
		return s.Settings.AllowRolePing
	})
}

func (r *serverRepository) ToggleAllowCooldownPing(ctx context.Context, serverID string) (bool, error) {
	return r.flip(ctx, serverID, "settings.allowCooldownPing", func(s *models.ServerSettings) bool {
		return s.Settings.AllowCooldownPing
	})
}

// ToggleHandler flips one of the four ingestion/presentation gates.
// Authorization is the caller's concern; this layer only validates the
// handler name.
func (r *serverRepository) ToggleHandler(ctx context.Context, serverID, handlerType string) (bool, error) {
	switch handlerType {
	case "claim", "summon", "manualClaim", "manualSummon":
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidHandlerType, handlerType)
	}
	return r.flip(ctx, serverID, "settings.handlers."+handlerType, func(s *models.ServerSettings) bool {
		switch handlerType {
		case "claim":
			return s.Settings.Handlers.Claim
		case "summon":
			return s.Settings.Handlers.Summon
		case "manualClaim":
			return s.Settings.Handlers.ManualClaim
		default:
			return s.Settings.Handlers.ManualSummon
		}
	})
}

func (r *serverRepository) flip(ctx context.Context, serverID, field string, current func(*models.ServerSettings) bool) (bool, error) {
	settings, err := r.CreateServerSettings(ctx, serverID)
	if err != nil {
		return false, err
	}
	next := !current(settings)
	if _, err := r.db.ServerSettings.UpdateOne(ctx,
		bson.M{"serverID": serverID},
		bson.M{"$set": bson.M{field: next}},
	); err != nil {
		return false, fmt.Errorf("failed to toggle %s for %s: %w", field, serverID, err)
	}
	return next, nil
}
