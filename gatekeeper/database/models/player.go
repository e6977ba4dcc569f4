package models

// ServerStats is the per-server slice of a player document: a 6-slot counts
// vector (one slot per tier), the bounded per-tier claim windows and the
// separate manual-claim window. The counts vector is the source of truth for
// totals; the lists are display windows and get trimmed independently.
type ServerStats struct {
	Counts       []int            `bson:"counts"`
	Claims       map[Tier][]Claim `bson:"claims"`
	ManualClaims []Claim          `bson:"manualClaims"`
}

// NewServerStats returns the zero state written on lazy creation.
func NewServerStats() ServerStats {
	claims := make(map[Tier][]Claim, len(Tiers))
	for _, t := range Tiers {
		claims[t] = []Claim{}
	}
	return ServerStats{
		Counts:       make([]int, len(Tiers)),
		Claims:       claims,
		ManualClaims: []Claim{},
	}
}

// Player is one document per Discord user, holding a ServerStats per server
// the user has claimed in.
type Player struct {
	UserID  string                 `bson:"userID"`
	Servers map[string]ServerStats `bson:"servers"`
}

// History bounds for the per-tier claim windows.
const (
	AutoClaimWindow   = 24
	ManualClaimWindow = 48
	ServerClaimWindow = 100
)
