package askwarren

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Watchlist is the list of analyses saved by a user.
//
// A company appears at most once: queries are compared case-insensitively and
// saving a company again replaces the previous item.
type Watchlist struct {
	items []WatchlistItem
}

// NewWatchlist returns a watchlist holding items.
func NewWatchlist(items ...WatchlistItem) *Watchlist {
	return &Watchlist{items: slices.Clone(items)}
}

// NewWatchlistItem builds the item saved for an analysis, extracting its verdict.
func NewWatchlistItem(userID string, a *AnalysisResponse) WatchlistItem {
	return WatchlistItem{
		ID:           uuid.NewString(),
		UserID:       userID,
		Query:        a.Query,
		Verdict:      ExtractVerdict(a.Text),
		Timestamp:    NowMillis(),
		FullAnalysis: a,
	}
}

func sameQuery(a, b string) bool { return strings.EqualFold(a, b) }

// Add puts item first and drops any other item for the same query.
// It returns the items that were replaced.
func (w *Watchlist) Add(item WatchlistItem) (replaced []WatchlistItem) {
	kept := make([]WatchlistItem, 0, len(w.items)+1)
	kept = append(kept, item)
	for _, it := range w.items {
		if sameQuery(it.Query, item.Query) {
			replaced = append(replaced, it)
			continue
		}
		kept = append(kept, it)
	}
	w.items = kept
	return replaced
}

// Remove drops the item with the given id. It reports whether an item was removed.
func (w *Watchlist) Remove(id string) bool {
	n := len(w.items)
	w.items = slices.DeleteFunc(w.items, func(it WatchlistItem) bool { return it.ID == id })
	return len(w.items) != n
}

// Find returns the item saved for query, if any.
func (w *Watchlist) Find(query string) (WatchlistItem, bool) {
	for _, it := range w.items {
		if sameQuery(it.Query, query) {
			return it, true
		}
	}
	return WatchlistItem{}, false
}

// Contains reports whether an analysis for query has been saved.
func (w *Watchlist) Contains(query string) bool {
	_, ok := w.Find(query)
	return ok
}

// Cached returns the full analysis saved for query, if one was kept.
func (w *Watchlist) Cached(query string) (*AnalysisResponse, bool) {
	it, ok := w.Find(query)
	if !ok || it.FullAnalysis == nil {
		return nil, false
	}
	return it.FullAnalysis, true
}

// Len returns the number of items.
func (w *Watchlist) Len() int { return len(w.items) }

// Sorted returns a copy of the items, newest first.
func (w *Watchlist) Sorted() []WatchlistItem {
	items := slices.Clone(w.items)
	slices.SortStableFunc(items, func(a, b WatchlistItem) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	return items
}
