package models

import "time"

// Giveaway levels.
const (
	GiveawayLevelCard     = 0 // single predefined catalog item
	GiveawayLevelCustom   = 1 // single custom prize
	GiveawayLevelMultiple = 2 // amount = desired winner count
)

// GiveawayItem is the prize description. For level 2 the name holds every
// prize joined with " | ".
type GiveawayItem struct {
	Name        string `bson:"name"`
	Description string `bson:"description"`
	ImageURL    string `bson:"imageUrl,omitempty"`
}

// GiveawayEntry is one ticket (or free) entry. Duplicates are allowed; a
// user holding more entries is proportionally more likely to win.
type GiveawayEntry struct {
	UserID    string    `bson:"userID"`
	Timestamp time.Time `bson:"timestamp"`
}

// GiveawayLog is the audit record written alongside each entry.
type GiveawayLog struct {
	UserID    string    `bson:"userID"`
	Timestamp time.Time `bson:"timestamp"`
	Tickets   int       `bson:"tickets"`
	FreeEntry bool      `bson:"freeEntry"`
}

// GiveawayWinner records one resolved winner and how many entries they held.
type GiveawayWinner struct {
	UserID  string `bson:"userID"`
	Entries int    `bson:"entries"`
}

// Giveaway ids are assigned max+1 at creation; the sequence is neither
// gap-free nor race-free, which is acceptable at this volume. Once Active
// flips to false the entries and winners are frozen.
type Giveaway struct {
	GiveawayID   int              `bson:"giveawayID"`
	UserID       string           `bson:"userID"`
	Item         GiveawayItem     `bson:"item"`
	CreatedAt    time.Time        `bson:"createdAt"`
	EndTimestamp int64            `bson:"endTimestamp"`
	Level        int              `bson:"level"`
	Amount       int              `bson:"amount"`
	Active       bool             `bson:"active"`
	Entries      []GiveawayEntry  `bson:"entries"`
	Logs         []GiveawayLog    `bson:"logs"`
	Winners      []GiveawayWinner `bson:"winners"`
}

// UserEntries counts how many entries the user holds.
func (g Giveaway) UserEntries(userID string) int {
	n := 0
	for _, e := range g.Entries {
		if e.UserID == userID {
			n++
		}
	}
	return n
}
