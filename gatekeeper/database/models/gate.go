package models

import "time"

// Currency vector slots. Slot 0 is the token balance, slot 5 the ticket
// balance; the slots between are reserved.
const (
	CurrencyTokens  = 0
	CurrencyTickets = 5
	CurrencySlots   = 6
)

// Hard ceilings on the currency vector. Operations that would cross them
// are rejected outright, never clamped.
const (
	MaxTokens  = 10000
	MaxTickets = 5
)

// Premium is the subscription state of a gate account. Expiry is checked
// lazily on balance read, not by a background sweep.
type Premium struct {
	Active    bool       `bson:"active"`
	ExpiresAt *time.Time `bson:"expiresAt"`
}

// GateUser is one virtual-economy account per Discord user.
type GateUser struct {
	UserID       string   `bson:"userID"`
	Currency     []int    `bson:"currency"`
	Mission      []string `bson:"mission"`
	Achievements []string `bson:"achievements"`
	Premium      *Premium `bson:"premium,omitempty"`
}

func NewGateUser(userID string) GateUser {
	return GateUser{
		UserID:       userID,
		Currency:     make([]int, CurrencySlots),
		Mission:      []string{},
		Achievements: []string{},
		Premium:      &Premium{},
	}
}

// Tokens returns the slot-0 balance, tolerating short vectors from old
// documents.
func (u GateUser) Tokens() int {
	if len(u.Currency) > CurrencyTokens {
		return u.Currency[CurrencyTokens]
	}
	return 0
}

func (u GateUser) Tickets() int {
	if len(u.Currency) > CurrencyTickets {
		return u.Currency[CurrencyTickets]
	}
	return 0
}

// GateServer holds the per-guild economy switches for the gate guild.
type GateServer struct {
	ServerID            string   `bson:"serverID"`
	EconomyEnabled      bool     `bson:"economyEnabled"`
	CardTrackingEnabled bool     `bson:"cardTrackingEnabled"`
	TotalTokens         int      `bson:"totalTokens"`
	Mods                []string `bson:"mods"`
}

func NewGateServer(serverID string) GateServer {
	return GateServer{
		ServerID:            serverID,
		CardTrackingEnabled: true,
		Mods:                []string{},
	}
}
