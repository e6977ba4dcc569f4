package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupFilterSeen(t *testing.T) {
	current := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	f := NewDedupFilterWithClock(func() time.Time { return current })

	assert.False(t, f.Seen("card-1-user-1"), "first sighting should pass")
	assert.True(t, f.Seen("card-1-user-1"), "immediate repeat should be suppressed")
	assert.False(t, f.Seen("card-2-user-1"), "different key should pass")

	// Still inside the TTL.
	current = current.Add(59 * time.Minute)
	assert.True(t, f.Seen("card-1-user-1"))

	// Past the TTL the key reads as fresh again.
	current = current.Add(2 * time.Minute)
	assert.False(t, f.Seen("card-1-user-1"))
}

func TestDedupFilterSweep(t *testing.T) {
	current := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	f := NewDedupFilterWithClock(func() time.Time { return current })

	f.Seen("old-1")
	f.Seen("old-2")
	current = current.Add(30 * time.Minute)
	f.Seen("young")

	current = current.Add(45 * time.Minute)
	purged := f.Sweep()

	assert.Equal(t, 2, purged)
	assert.Equal(t, 1, f.Len())
	assert.True(t, f.Seen("young"), "survivor must still suppress")
	assert.False(t, f.Seen("old-1"), "purged key reads as fresh")
}
