package askwarren

import "testing"

func TestWatchlistAdd(t *testing.T) {
	w := NewWatchlist(
		WatchlistItem{ID: "1", Query: "Apple", Timestamp: 100},
		WatchlistItem{ID: "2", Query: "Coca-Cola", Timestamp: 200},
	)

	replaced := w.Add(WatchlistItem{ID: "3", Query: "APPLE", Timestamp: 300})
	if len(replaced) != 1 || replaced[0].ID != "1" {
		t.Errorf("Add() replaced = %v, want item 1", replaced)
	}
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}
	it, ok := w.Find("apple")
	if !ok || it.ID != "3" {
		t.Errorf("Find(apple) = %v, %v, want item 3", it, ok)
	}
	if !w.Contains("coca-cola") {
		t.Errorf("Contains(coca-cola) = false")
	}
}

func TestWatchlistRemove(t *testing.T) {
	w := NewWatchlist(WatchlistItem{ID: "1", Query: "Apple"})
	if w.Remove("unknown") {
		t.Errorf("Remove(unknown) = true")
	}
	if !w.Remove("1") || w.Len() != 0 {
		t.Errorf("Remove(1) did not remove the item")
	}
}

func TestWatchlistSorted(t *testing.T) {
	w := NewWatchlist(
		WatchlistItem{ID: "old", Query: "A", Timestamp: 1},
		WatchlistItem{ID: "new", Query: "B", Timestamp: 3},
		WatchlistItem{ID: "mid", Query: "C", Timestamp: 2},
	)
	got := w.Sorted()
	want := []string{"new", "mid", "old"}
	for i, it := range got {
		if it.ID != want[i] {
			t.Errorf("Sorted()[%d] = %q, want %q", i, it.ID, want[i])
		}
	}
}

func TestWatchlistCached(t *testing.T) {
	a := &AnalysisResponse{Query: "Apple", Text: sampleAnalysis}
	item := NewWatchlistItem("uid", a)
	if item.Verdict != "✅ Langfristig attraktiv" {
		t.Errorf("verdict = %q", item.Verdict)
	}
	if item.ID == "" || item.Timestamp == 0 {
		t.Errorf("item not initialised: %+v", item)
	}

	w := NewWatchlist(item, WatchlistItem{ID: "x", Query: "Nestlé"})
	if got, ok := w.Cached("apple"); !ok || got != a {
		t.Errorf("Cached(apple) = %v, %v", got, ok)
	}
	if _, ok := w.Cached("Nestlé"); ok {
		t.Errorf("Cached(Nestlé) should miss when no analysis was kept")
	}
}
