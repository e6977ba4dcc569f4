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

var ErrGiveawayNotFound = errors.New("giveaway not found")

const createAttempts = 3

// GiveawayRepository is the giveaway ledger. Resolution is terminal: the
// active filter on MarkResolved and AddEntry freezes entries and winners
// once a giveaway has been resolved.
type GiveawayRepository interface {
	Create(ctx context.Context, userID string, item models.GiveawayItem, level, amount int, endTimestamp int64) (*models.Giveaway, error)
	Get(ctx context.Context, giveawayID int) (*models.Giveaway, error)
	List(ctx context.Context, active *bool) ([]models.Giveaway, error)
	ListEnded(ctx context.Context, now time.Time) ([]models.Giveaway, error)
	AddEntry(ctx context.Context, giveawayID int, entry models.GiveawayEntry, log models.GiveawayLog) (bool, error)
	MarkResolved(ctx context.Context, giveawayID int, winners []models.GiveawayWinner) (bool, error)
	UpdateEndTimestamp(ctx context.Context, giveawayID int, endTimestamp int64) error
}

type giveawayRepository struct {
	db  *database.DB
	now func() time.Time
}

func NewGiveawayRepository(db *database.DB) GiveawayRepository {
	return &giveawayRepository{db: db, now: time.Now}
}

// Create assigns giveawayID = max existing id + 1. The sequence is not
// gap-free; a concurrent create loses the race on the unique index and
// retries with a fresh id.
func (r *giveawayRepository) Create(ctx context.Context, userID string, item models.GiveawayItem, level, amount int, endTimestamp int64) (*models.Giveaway, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		id := 0
		var last models.Giveaway
		err := r.db.Giveaways.FindOne(ctx, bson.M{},
			options.FindOne().SetSort(bson.M{"giveawayID": -1}),
		).Decode(&last)
		if err == nil {
			id = last.GiveawayID + 1
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to find last giveaway: %w", err)
		}

		giveaway := models.Giveaway{
			GiveawayID:   id,
			UserID:       userID,
			Item:         item,
			CreatedAt:    r.now(),
			EndTimestamp: endTimestamp,
			Level:        level,
			Amount:       amount,
			Active:       true,
			Entries:      []models.GiveawayEntry{},
			Logs:         []models.GiveawayLog{},
			Winners:      []models.GiveawayWinner{},
		}
		_, err = r.db.Giveaways.InsertOne(ctx, giveaway)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create giveaway: %w", err)
		}
		return &giveaway, nil
	}
	return nil, fmt.Errorf("failed to allocate giveaway id after %d attempts", createAttempts)
}

func (r *giveawayRepository) Get(ctx context.Context, giveawayID int) (*models.Giveaway, error) {
	var giveaway models.Giveaway
	err := r.db.Giveaways.FindOne(ctx, bson.M{"giveawayID": giveawayID}).Decode(&giveaway)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrGiveawayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load giveaway %d: %w", giveawayID, err)
	}
	return &giveaway, nil
}

func (r *giveawayRepository) List(ctx context.Context, active *bool) ([]models.Giveaway, error) {
	filter := bson.M{}
	if active != nil {
		filter["active"] = *active
	}
	cursor, err := r.db.Giveaways.Find(ctx, filter,
		options.Find().SetSort(bson.M{"endTimestamp": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list giveaways: %w", err)
	}
	var giveaways []models.Giveaway
	if err := cursor.All(ctx, &giveaways); err != nil {
		return nil, fmt.Errorf("failed to decode giveaways: %w", err)
	}
	return giveaways, nil
}

func (r *giveawayRepository) ListEnded(ctx context.Context, now time.Time) ([]models.Giveaway, error) {
	cursor, err := r.db.Giveaways.Find(ctx, bson.M{
		"active":       true,
		"endTimestamp": bson.M{"$lt": now.Unix()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ended giveaways: %w", err)
	}
	var giveaways []models.Giveaway
	if err := cursor.All(ctx, &giveaways); err != nil {
		return nil, fmt.Errorf("failed to decode ended giveaways: %w", err)
	}
	return giveaways, nil
}

// AddEntry appends the entry and its audit log in one push. An inactive
// giveaway matches nothing and the entry is refused.
func (r *giveawayRepository) AddEntry(ctx context.Context, giveawayID int, entry models.GiveawayEntry, log models.GiveawayLog) (bool, error) {
	res, err := r.db.Giveaways.UpdateOne(ctx,
		bson.M{"giveawayID": giveawayID, "active": true},
		bson.M{"$push": bson.M{"entries": entry, "logs": log}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to add entry to giveaway %d: %w", giveawayID, err)
	}
	return res.MatchedCount > 0, nil
}

// MarkResolved is the idempotency gate for resolution: only an active
// giveaway can transition, so a sweep racing with itself rolls winners at
// most once.
func (r *giveawayRepository) MarkResolved(ctx context.Context, giveawayID int, winners []models.GiveawayWinner) (bool, error) {
	if winners == nil {
		winners = []models.GiveawayWinner{}
	}
	res, err := r.db.Giveaways.UpdateOne(ctx,
		bson.M{"giveawayID": giveawayID, "active": true},
		bson.M{"$set": bson.M{"active": false, "winners": winners}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve giveaway %d: %w", giveawayID, err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *giveawayRepository) UpdateEndTimestamp(ctx context.Context, giveawayID int, endTimestamp int64) error {
	res, err := r.db.Giveaways.UpdateOne(ctx,
		bson.M{"giveawayID": giveawayID},
		bson.M{"$set": bson.M{"endTimestamp": endTimestamp}},
	)
	if err != nil {
		return fmt.Errorf("failed to update giveaway %d: %w", giveawayID, err)
	}
	if res.MatchedCount == 0 {
		return ErrGiveawayNotFound
	}
	return nil
}
