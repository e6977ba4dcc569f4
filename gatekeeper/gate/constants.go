package gate

import "time"

// Purchase costs in tokens.
const (
	TicketCost     = 50
	PremiumCost    = 250
	GiftTicketCost = 40
)

// PremiumDuration is one subscription period.
const PremiumDuration = 7 * 24 * time.Hour

// Confirmation windows for interactive flows. No click within the window is
// a cancellation with no side effects.
const (
	ConfirmTimeout = 30 * time.Second
	BrowseTimeout  = 5 * time.Minute
)
