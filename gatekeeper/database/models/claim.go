package models

import (
	"fmt"
	"time"
)

// Tier is the rarity classification of a card. The claim lists and the
// counts vector are both partitioned by tier.
type Tier string

const (
	TierCommon         Tier = "CT"
	TierRare           Tier = "RT"
	TierSuperRare      Tier = "SRT"
	TierSuperSuperRare Tier = "SSRT"
	TierUltra          Tier = "URT"
	TierExclusive      Tier = "EXT"
)

// Tiers lists every tier in counts-vector order.
var Tiers = []Tier{TierCommon, TierRare, TierSuperRare, TierSuperSuperRare, TierUltra, TierExclusive}

// Index returns the slot of the tier in the 6-slot counts vector, or -1 for
// an unknown tier.
func (t Tier) Index() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if t.Index() < 0 {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Claim is one card-acquisition event reported by the upstream bot. A claim
// is uniquely identified by (claimedID, cardID, timestamp); the triple must
// never appear twice in any claim list.
type Claim struct {
	ClaimedID string    `bson:"claimedID"`
	UserID    string    `bson:"userID"`
	ServerID  string    `bson:"serverID"`
	CardName  string    `bson:"cardName"`
	CardID    string    `bson:"cardID"`
	Owner     string    `bson:"owner"`
	Artist    string    `bson:"artist"`
	Print     int       `bson:"print"`
	Tier      Tier      `bson:"tier"`
	Timestamp time.Time `bson:"timestamp"`
}

// DedupKey is the composite identity used by the in-memory duplicate filter.
func (c Claim) DedupKey() string {
	return fmt.Sprintf("%s-%s-%s-%d", c.CardID, c.UserID, c.ServerID, c.Timestamp.UnixMilli())
}
