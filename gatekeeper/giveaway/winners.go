package giveaway

import (
	"math/rand"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

// SelectWinners rolls the winners for an ended giveaway. Entries are not
// deduplicated first: a user holding more entries is proportionally more
// likely to win a single-winner giveaway by design.
//
// Level 2 picks min(amount, len(entries)) distinct users by repeatedly
// rolling an entry index, skipping indices already used and users who
// already won.
func SelectWinners(g models.Giveaway, rng *rand.Rand) []models.GiveawayWinner {
	total := len(g.Entries)
	if total == 0 {
		return []models.GiveawayWinner{}
	}

	if g.Level != models.GiveawayLevelMultiple {
		entry := g.Entries[rng.Intn(total)]
		return []models.GiveawayWinner{{
			UserID:  entry.UserID,
			Entries: g.UserEntries(entry.UserID),
		}}
	}

	target := g.Amount
	if target > total {
		target = total
	}
	// Distinct users may run out before distinct entries do.
	if unique := countUniqueUsers(g.Entries); target > unique {
		target = unique
	}

	winners := make([]models.GiveawayWinner, 0, target)
	usedIndex := make(map[int]bool, total)
	won := make(map[string]bool, target)

	for len(winners) < target {
		idx := rng.Intn(total)
		if usedIndex[idx] {
			continue
		}
		usedIndex[idx] = true

		entry := g.Entries[idx]
		if won[entry.UserID] {
			continue
		}
		won[entry.UserID] = true
		winners = append(winners, models.GiveawayWinner{
			UserID:  entry.UserID,
			Entries: g.UserEntries(entry.UserID),
		})
	}
	return winners
}

func countUniqueUsers(entries []models.GiveawayEntry) int {
	users := make(map[string]bool, len(entries))
	for _, e := range entries {
		users[e.UserID] = true
	}
	return len(users)
}
