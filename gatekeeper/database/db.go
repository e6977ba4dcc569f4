package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

const (
	defaultConnTimeout   = 10 * time.Second
	defaultSocketTimeout = 45 * time.Second
	defaultMinPoolSize   = 5
	defaultMaxPoolSize   = 50
	heartbeatInterval    = 15 * time.Second
	reconnectDelay       = 5 * time.Second
)

type DBConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// DB owns the mongo client and hands out collection handles. Reconnection
// after heartbeat loss happens under a fixed-delay backoff; individual
// operations are not retried here, a failed write surfaces to the caller.
type DB struct {
	client    *mongo.Client
	db        *mongo.Database
	connected atomic.Bool

	Servers        *mongo.Collection
	Players        *mongo.Collection
	ServerSettings *mongo.Collection
	GateUsers      *mongo.Collection
	GateServers    *mongo.Collection
	Giveaways      *mongo.Collection
	CardWishlists  *mongo.Collection
	UserWishlists  *mongo.Collection
	CommandLogs    *mongo.Collection
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(defaultConnTimeout).
		SetSocketTimeout(defaultSocketTimeout).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxPoolSize(defaultMaxPoolSize).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb unreachable: %w", err)
	}

	name := cfg.Database
	if name == "" {
		name = "MainDB"
	}
	mdb := client.Database(name)

	db := &DB{
		client:         client,
		db:             mdb,
		Servers:        mdb.Collection("mServerDB"),
		Players:        mdb.Collection("mUserDB"),
		ServerSettings: mdb.Collection("mServerSettingsDB"),
		GateUsers:      mdb.Collection("mGateDB"),
		GateServers:    mdb.Collection("mGateServerDB"),
		Giveaways:      mdb.Collection("mGiveawayDB"),
		CardWishlists:  mdb.Collection("mCardWishlistDB"),
		UserWishlists:  mdb.Collection("mUserWishlistDB"),
		CommandLogs:    mdb.Collection("mCommandLogsDB"),
	}
	db.connected.Store(true)

	if err := db.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return db, nil
}

// EnsureIndexes creates the uniqueness constraints on every collection key
// plus the secondary indexes the leaderboard aggregation relies on.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	uniqueIndexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{db.Servers, bson.D{{Key: "serverID", Value: 1}}},
		{db.Players, bson.D{{Key: "userID", Value: 1}}},
		{db.ServerSettings, bson.D{{Key: "serverID", Value: 1}}},
		{db.GateUsers, bson.D{{Key: "userID", Value: 1}}},
		{db.GateServers, bson.D{{Key: "serverID", Value: 1}}},
		{db.Giveaways, bson.D{{Key: "giveawayID", Value: 1}}},
		{db.CardWishlists, bson.D{{Key: "cardId", Value: 1}}},
		{db.UserWishlists, bson.D{{Key: "userId", Value: 1}}},
	}
	for _, idx := range uniqueIndexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys, Options: unique}); err != nil {
			return fmt.Errorf("index on %s: %w", idx.coll.Name(), err)
		}
	}

	secondary := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{db.Giveaways, bson.D{{Key: "endTimestamp", Value: 1}}},
		{db.Giveaways, bson.D{{Key: "active", Value: 1}}},
		{db.CardWishlists, bson.D{{Key: "count", Value: 1}}},
		{db.UserWishlists, bson.D{{Key: "count", Value: 1}}},
		{db.CardWishlists, bson.D{{Key: "userWishes", Value: 1}}},
		{db.UserWishlists, bson.D{{Key: "cardIds", Value: 1}}},
		{db.CommandLogs, bson.D{{Key: "serverID", Value: 1}}},
		{db.CommandLogs, bson.D{{Key: "timestamp", Value: 1}}},
	}
	// Player documents nest their claim lists under servers.<serverID>, a
	// dynamic path no fixed index can cover; only the server mirror gets the
	// per-tier indexes.
	for _, tier := range models.Tiers {
		secondary = append(secondary, struct {
			coll *mongo.Collection
			keys bson.D
		}{db.Servers, bson.D{
			{Key: fmt.Sprintf("claims.%s.claimedID", tier), Value: 1},
			{Key: fmt.Sprintf("claims.%s.cardID", tier), Value: 1},
			{Key: fmt.Sprintf("claims.%s.timestamp", tier), Value: 1},
		}})
	}
	for _, idx := range secondary {
		if _, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys}); err != nil {
			return fmt.Errorf("index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Connected reports the last known heartbeat state.
func (db *DB) Connected() bool {
	return db.connected.Load()
}

// StartHeartbeat pings the server on an interval and reconnects with a fixed
// delay when the ping fails. It returns immediately; the monitor stops when
// ctx is cancelled.
func (db *DB) StartHeartbeat(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
				err := db.client.Ping(pingCtx, nil)
				cancel()
				if err == nil {
					db.connected.Store(true)
					continue
				}
				db.connected.Store(false)
				slog.Error("Database heartbeat failed",
					slog.String("type", "db"),
					slog.Any("error", err))
				db.reconnect(ctx)
			}
		}
	}()
}

func (db *DB) reconnect(ctx context.Context) {
	policy := backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx)
	err := backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
		defer cancel()
		return db.client.Ping(pingCtx, nil)
	}, policy)
	if err != nil {
		slog.Error("Database reconnect abandoned",
			slog.String("type", "db"),
			slog.Any("error", err))
		return
	}
	db.connected.Store(true)
	slog.Info("Database reconnected", slog.String("type", "db"))
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}
