package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

type CommandLogRepository interface {
	Log(ctx context.Context, entry models.CommandLog) error
	Recent(ctx context.Context, serverID string, limit int64) ([]models.CommandLog, error)
}

type commandLogRepository struct {
	db  *database.DB
	now func() time.Time
}

func NewCommandLogRepository(db *database.DB) CommandLogRepository {
	return &commandLogRepository{db: db, now: time.Now}
}

func (r *commandLogRepository) Log(ctx context.Context, entry models.CommandLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if _, err := r.db.CommandLogs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to log command: %w", err)
	}
	return nil
}

func (r *commandLogRepository) Recent(ctx context.Context, serverID string, limit int64) ([]models.CommandLog, error) {
	cursor, err := r.db.CommandLogs.Find(ctx,
		bson.M{"serverID": serverID},
		options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load command logs: %w", err)
	}
	var logs []models.CommandLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode command logs: %w", err)
	}
	return logs, nil
}
