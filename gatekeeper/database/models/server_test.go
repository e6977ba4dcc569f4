package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBackfillsMissingSettings(t *testing.T) {
	s := ServerSettings{ServerID: "srv"}

	changed := s.Normalize()

	assert.True(t, changed)
	require.NotNil(t, s.Settings)
	require.NotNil(t, s.Settings.Handlers)
	assert.True(t, s.Settings.AllowShowStats)
	assert.True(t, s.Settings.Handlers.Claim)
	assert.True(t, s.Settings.Handlers.Summon)
	assert.False(t, s.Settings.Handlers.ManualClaim)
	assert.NotNil(t, s.UserPing)
}

func TestNormalizeBackfillsMissingHandlersOnly(t *testing.T) {
	s := ServerSettings{
		ServerID: "srv",
		Settings: &SettingsBody{AllowRolePing: true},
		UserPing: []string{"u1"},
	}

	changed := s.Normalize()

	assert.True(t, changed)
	assert.True(t, s.Settings.AllowRolePing, "existing values survive the backfill")
	require.NotNil(t, s.Settings.Handlers)
	assert.True(t, s.Settings.Handlers.Claim)
}

func TestNormalizePreservesExplicitToggles(t *testing.T) {
	s := ServerSettings{
		ServerID: "srv",
		Settings: &SettingsBody{
			Handlers: &HandlerToggles{}, // everything deliberately off
		},
		UserPing: []string{},
	}

	changed := s.Normalize()

	assert.False(t, changed, "fully-populated document needs no rewrite")
	assert.False(t, s.Settings.Handlers.Claim, "an all-off handlers object is not confused with an absent one")
}
