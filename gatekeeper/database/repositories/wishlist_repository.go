package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

// WishlistRepository maintains the two-sided wishlist index: one document
// per card and one per user. Membership changes gate the count increment on
// the current membership state so repeated adds or removes cannot skew the
// counters.
type WishlistRepository interface {
	Add(ctx context.Context, userID, cardID string) (bool, error)
	Remove(ctx context.Context, userID, cardID string) (bool, error)
	Has(ctx context.Context, userID, cardID string) (bool, error)
	CardCount(ctx context.Context, cardID string) (int, error)
	CardCounts(ctx context.Context, cardIDs []string) (map[string]int, error)
	UserCards(ctx context.Context, userID string) ([]string, error)
	CardWishers(ctx context.Context, cardID string) ([]string, error)
}

type wishlistRepository struct {
	db *database.DB
}

func NewWishlistRepository(db *database.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) Add(ctx context.Context, userID, cardID string) (bool, error) {
	wishKey := fmt.Sprintf("userWishes.%s", userID)

	res, err := r.db.CardWishlists.UpdateOne(ctx,
		bson.M{"cardId": cardID, wishKey: bson.M{"$ne": true}},
		bson.M{"$set": bson.M{wishKey: true}, "$inc": bson.M{"count": 1}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to add card wish: %w", err)
	}
	if err == nil && res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return false, nil // already wished
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil // lost an upsert race to an existing membership
	}

	if _, err := r.db.UserWishlists.UpdateOne(ctx,
		bson.M{"userId": userID, "cardIds": bson.M{"$ne": cardID}},
		bson.M{"$addToSet": bson.M{"cardIds": cardID}, "$inc": bson.M{"count": 1}},
		options.Update().SetUpsert(true),
	); err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to add user wish: %w", err)
	}
	return true, nil
}

func (r *wishlistRepository) Remove(ctx context.Context, userID, cardID string) (bool, error) {
	wishKey := fmt.Sprintf("userWishes.%s", userID)

	res, err := r.db.CardWishlists.UpdateOne(ctx,
		bson.M{"cardId": cardID, wishKey: true},
		bson.M{"$set": bson.M{wishKey: false}, "$inc": bson.M{"count": -1}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove card wish: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}

	if _, err := r.db.UserWishlists.UpdateOne(ctx,
		bson.M{"userId": userID, "cardIds": cardID},
		bson.M{"$pull": bson.M{"cardIds": cardID}, "$inc": bson.M{"count": -1}},
	); err != nil {
		return false, fmt.Errorf("failed to remove user wish: %w", err)
	}

	// Drop empty documents so the collections stay bounded by live wishes.
	if _, err := r.db.CardWishlists.DeleteOne(ctx, bson.M{"cardId": cardID, "count": bson.M{"$lte": 0}}); err != nil {
		return false, fmt.Errorf("failed to prune card wishlist: %w", err)
	}
	if _, err := r.db.UserWishlists.DeleteOne(ctx, bson.M{"userId": userID, "count": bson.M{"$lte": 0}}); err != nil {
		return false, fmt.Errorf("failed to prune user wishlist: %w", err)
	}
	return true, nil
}

func (r *wishlistRepository) Has(ctx context.Context, userID, cardID string) (bool, error) {
	wishKey := fmt.Sprintf("userWishes.%s", userID)
	err := r.db.CardWishlists.FindOne(ctx, bson.M{"cardId": cardID, wishKey: true}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return true, nil
}

func (r *wishlistRepository) CardCount(ctx context.Context, cardID string) (int, error) {
	var doc models.CardWishlist
	err := r.db.CardWishlists.FindOne(ctx, bson.M{"cardId": cardID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load card wishlist: %w", err)
	}
	return doc.Count, nil
}

func (r *wishlistRepository) CardCounts(ctx context.Context, cardIDs []string) (map[string]int, error) {
	cursor, err := r.db.CardWishlists.Find(ctx, bson.M{"cardId": bson.M{"$in": cardIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to load card wishlists: %w", err)
	}
	var docs []models.CardWishlist
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode card wishlists: %w", err)
	}
	counts := make(map[string]int, len(cardIDs))
	for _, id := range cardIDs {
		counts[id] = 0
	}
	for _, doc := range docs {
		counts[doc.CardID] = doc.Count
	}
	return counts, nil
}

func (r *wishlistRepository) UserCards(ctx context.Context, userID string) ([]string, error) {
	var doc models.UserWishlist
	err := r.db.UserWishlists.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user wishlist: %w", err)
	}
	return doc.CardIDs, nil
}

func (r *wishlistRepository) CardWishers(ctx context.Context, cardID string) ([]string, error) {
	var doc models.CardWishlist
	err := r.db.CardWishlists.FindOne(ctx, bson.M{"cardId": cardID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load card wishlist: %w", err)
	}
	var users []string
	for userID, wished := range doc.UserWishes {
		if wished {
			users = append(users, userID)
		}
	}
	return users, nil
}
