package giveaway

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

func entries(userIDs ...string) []models.GiveawayEntry {
	out := make([]models.GiveawayEntry, len(userIDs))
	for i, id := range userIDs {
		out[i] = models.GiveawayEntry{UserID: id}
	}
	return out
}

func TestSelectWinnersNoEntries(t *testing.T) {
	g := models.Giveaway{Level: models.GiveawayLevelCard, Amount: 1}
	winners := SelectWinners(g, rand.New(rand.NewSource(1)))
	assert.Empty(t, winners)
}

func TestSelectWinnersSingleWinner(t *testing.T) {
	g := models.Giveaway{
		Level:   models.GiveawayLevelCard,
		Amount:  1,
		Entries: entries("a", "b", "b", "c"),
	}

	winners := SelectWinners(g, rand.New(rand.NewSource(7)))

	require.Len(t, winners, 1)
	assert.Contains(t, []string{"a", "b", "c"}, winners[0].UserID)
	assert.Equal(t, g.UserEntries(winners[0].UserID), winners[0].Entries)
}

func TestSelectWinnersProportionalOdds(t *testing.T) {
	// One user holds 9 of 10 entries; across many seeds they should win the
	// overwhelming majority of rolls.
	g := models.Giveaway{
		Level:   models.GiveawayLevelCustom,
		Amount:  1,
		Entries: entries("whale", "whale", "whale", "whale", "whale", "whale", "whale", "whale", "whale", "minnow"),
	}

	whaleWins := 0
	for seed := int64(0); seed < 100; seed++ {
		winners := SelectWinners(g, rand.New(rand.NewSource(seed)))
		require.Len(t, winners, 1)
		if winners[0].UserID == "whale" {
			whaleWins++
		}
	}
	assert.Greater(t, whaleWins, 75)
}

func TestSelectWinnersMultipleDistinct(t *testing.T) {
	g := models.Giveaway{
		Level:   models.GiveawayLevelMultiple,
		Amount:  3,
		Entries: entries("a", "a", "b", "c", "c", "d"),
	}

	winners := SelectWinners(g, rand.New(rand.NewSource(3)))

	require.Len(t, winners, 3)
	seen := map[string]bool{}
	for _, w := range winners {
		assert.False(t, seen[w.UserID], "winner %s drawn twice", w.UserID)
		seen[w.UserID] = true
	}
}

func TestSelectWinnersCappedByUniqueUsers(t *testing.T) {
	g := models.Giveaway{
		Level:   models.GiveawayLevelMultiple,
		Amount:  5,
		Entries: entries("a", "a", "a", "b"),
	}

	winners := SelectWinners(g, rand.New(rand.NewSource(11)))

	require.Len(t, winners, 2, "only two distinct users entered")
	userIDs := []string{winners[0].UserID, winners[1].UserID}
	assert.ElementsMatch(t, []string{"a", "b"}, userIDs)
}
