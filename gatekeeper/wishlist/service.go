package wishlist

import (
	"context"
	"sort"

	"github.com/sahilm/fuzzy"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

const maxSearchResults = 10

// Entry is one card on a user's wishlist, annotated with how many other
// users wish for the same card.
type Entry struct {
	CardID string
	Count  int
}

// Service wraps the wishlist repository with the user-facing operations:
// toggling wishes and fuzzy-searching a user's list by card name.
type Service struct {
	repo  repositories.WishlistRepository
	names NameSource
}

// NameSource maps a card id to its display name. Lookups that fail fall
// back to the raw id so a catalog outage degrades search instead of
// breaking it.
type NameSource interface {
	CardName(ctx context.Context, cardID string) (string, error)
}

func NewService(repo repositories.WishlistRepository, names NameSource) *Service {
	return &Service{repo: repo, names: names}
}

// Toggle flips the wish state for (user, card) and reports the new state.
func (s *Service) Toggle(ctx context.Context, userID, cardID string) (wished bool, err error) {
	has, err := s.repo.Has(ctx, userID, cardID)
	if err != nil {
		return false, err
	}
	if has {
		if _, err := s.repo.Remove(ctx, userID, cardID); err != nil {
			return false, err
		}
		return false, nil
	}
	if _, err := s.repo.Add(ctx, userID, cardID); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the user's wishlist sorted by popularity, most wished first.
func (s *Service) List(ctx context.Context, userID string) ([]Entry, error) {
	cardIDs, err := s.repo.UserCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cardIDs) == 0 {
		return nil, nil
	}
	counts, err := s.repo.CardCounts(ctx, cardIDs)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(cardIDs))
	for _, id := range cardIDs {
		entries = append(entries, Entry{CardID: id, Count: counts[id]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries, nil
}

// Search fuzzy-matches the query against the display names of the user's
// wishlist and returns the best matches in rank order.
func (s *Service) Search(ctx context.Context, userID, query string) ([]Entry, error) {
	cardIDs, err := s.repo.UserCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cardIDs) == 0 || query == "" {
		return nil, nil
	}

	names := make([]string, len(cardIDs))
	for i, id := range cardIDs {
		name, err := s.names.CardName(ctx, id)
		if err != nil || name == "" {
			name = id
		}
		names[i] = name
	}

	matches := fuzzy.Find(query, names)
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}

	matched := make([]string, len(matches))
	for i, m := range matches {
		matched[i] = cardIDs[m.Index]
	}
	counts, err := s.repo.CardCounts(ctx, matched)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(matched))
	for i, id := range matched {
		entries[i] = Entry{CardID: id, Count: counts[id]}
	}
	return entries, nil
}

// Wishers lists the users currently wishing for a card.
func (s *Service) Wishers(ctx context.Context, cardID string) ([]string, error) {
	return s.repo.CardWishers(ctx, cardID)
}
