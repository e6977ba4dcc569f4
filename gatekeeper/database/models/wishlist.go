package models

// CardWishlist is one document per card, holding every user wishing for it.
// UserWishes is a membership map keyed by user id.
type CardWishlist struct {
	CardID     string          `bson:"cardId"`
	Count      int             `bson:"count"`
	UserWishes map[string]bool `bson:"userWishes"`
}

// UserWishlist is the inverse index, one document per user.
type UserWishlist struct {
	UserID  string   `bson:"userId"`
	Count   int      `bson:"count"`
	CardIDs []string `bson:"cardIds"`
}
