package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryItem(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/get-inventory-item-by-id/abc123":
			fmt.Fprint(w, `{"version":7,"card":{"name":"Moonlight Haze","series":"Dusk","tier":"SR","cardImageLink":"https://cdn.example.com/m.png"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	card, err := c.InventoryItem(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Moonlight Haze", card.Name)
	assert.Equal(t, "Dusk", card.Series)
	assert.Equal(t, 7, card.Version)
	assert.Equal(t, "https://cdn.example.com/m.png", card.ImageURL)

	// Second lookup is served from the cache.
	_, err = c.InventoryItem(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = c.InventoryItem(context.Background(), "missing")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable, "a 404 is not an outage")
}

func TestInventoryItemUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.InventoryItem(context.Background(), "abc123")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCardName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"version":1,"card":{"name":"Sunrise Boulevard"}}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	name, err := c.CardName(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Boulevard", name)
}
