package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// ErrUpstreamUnavailable is surfaced to command callers as a "service
// unavailable" message. Ingestion never depends on the catalog, so this
// error never touches that path.
var ErrUpstreamUnavailable = errors.New("card catalog unavailable")

const (
	defaultBaseURL = "https://api.mazoku.cc/api"
	cacheSize      = 512
	requestTimeout = 10 * time.Second
)

// Card is the catalog's view of one inventory item.
type Card struct {
	Name     string
	Series   string
	Tier     string
	Version  int
	ImageURL string
}

type inventoryItemResponse struct {
	Version int `json:"version"`
	Card    struct {
		Name          string `json:"name"`
		Series        string `json:"series"`
		Tier          string `json:"tier"`
		CardImageLink string `json:"cardImageLink"`
	} `json:"card"`
}

// Client is the opaque third-party card-catalog lookup with a small LRU in
// front of it. The catalog is read-only reference data; a cached hit never
// goes stale in a way this system cares about.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *lru.Cache
}

func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		cache:   cache,
	}, nil
}

// InventoryItem looks up one item by its catalog id.
func (c *Client) InventoryItem(ctx context.Context, itemID string) (*Card, error) {
	if cached, ok := c.cache.Get(itemID); ok {
		card := cached.(Card)
		return &card, nil
	}

	url := fmt.Sprintf("%s/get-inventory-item-by-id/%s", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("catalog item %s not found", itemID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body inventoryItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	card := Card{
		Name:     body.Card.Name,
		Series:   body.Card.Series,
		Tier:     body.Card.Tier,
		Version:  body.Version,
		ImageURL: body.Card.CardImageLink,
	}
	c.cache.Add(itemID, card)
	return &card, nil
}

// CardName returns the display name for an item id.
func (c *Client) CardName(ctx context.Context, itemID string) (string, error) {
	card, err := c.InventoryItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	return card.Name, nil
}
