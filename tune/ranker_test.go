package tune

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSelfSimilarity(t *testing.T) {
	t.Parallel()

	for _, v := range [][]float64{
		{1, 0, 0},
		{0.3, -0.2, 5, 1e-3},
		{1e3, 2e3},
	} {
		if sim := CosineSimilarity(v, v); math.Abs(sim-1) > 1e-6 {
			t.Fatalf("cosine(%v, itself) = %f", v, sim)
		}
	}
	if sim := CosineSimilarity([]float64{0, 0}, []float64{1, 1}); sim != 0 {
		t.Fatalf("zero vector must score 0, got %f", sim)
	}
}

func TestRankFiltersSortsAndTruncates(t *testing.T) {
	t.Parallel()

	catalog := []Entry{
		{ID: "a1", OwnerID: "alice", Vector: []float64{1, 0}},
		{ID: "b1", OwnerID: "bob", Vector: []float64{1, 0}},
		{ID: "a2", OwnerID: "alice", Vector: []float64{0, 1}},
		{ID: "a3", OwnerID: "alice", Vector: []float64{1, 1}},
		{ID: "a4", OwnerID: "alice ", Vector: []float64{1, 0}},
	}

	got := Rank([]float64{1, 0.1}, catalog, "alice", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].ID != "a1" || got[1].ID != "a3" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[0].Index != 0 || got[1].Index != 3 {
		t.Fatalf("indices should point into the catalog, got %+v", got)
	}

	all := Rank([]float64{1, 0.1}, catalog, "alice", 20)
	if len(all) != 3 {
		t.Fatalf("owner match must be exact, got %d results", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Score > all[i-1].Score {
			t.Fatalf("scores not sorted: %+v", all)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	t.Parallel()

	catalog := []Entry{
		{ID: "first", OwnerID: "o", Vector: []float64{1, 1}},
		{ID: "other", OwnerID: "x", Vector: []float64{1, 1}},
		{ID: "second", OwnerID: "o", Vector: []float64{1, 1}},
		{ID: "third", OwnerID: "o", Vector: []float64{1, 1}},
	}
	got := Rank([]float64{1, 1}, catalog, "o", 3)
	for i, want := range []string{"first", "second", "third"} {
		if got[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestRankUnknownOwner(t *testing.T) {
	t.Parallel()

	catalog := []Entry{{ID: "a", OwnerID: "alice", Vector: []float64{1}}}
	if got := Rank([]float64{1}, catalog, "mallory", 5); len(got) != 0 {
		t.Fatalf("expected no results, got %+v", got)
	}
}

func TestValidateTopK(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, k := range []int{0, -1, 21} {
		if err := cfg.ValidateTopK(k); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("k=%d: expected ErrInvalidParameter, got %v", k, err)
		}
	}
	for _, k := range []int{1, 5, 20} {
		if err := cfg.ValidateTopK(k); err != nil {
			t.Fatalf("k=%d: unexpected error %v", k, err)
		}
	}
}

func TestRoundScore(t *testing.T) {
	t.Parallel()

	if got := RoundScore(0.987654); got != 0.9877 {
		t.Fatalf("expected 0.9877, got %v", got)
	}
}

func TestHummedToneRanksNearestCatalogEntryFirst(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	low := mustFingerprint(t, sineTone(220, 1, 8000, 0.4), 8000, cfg)
	high := mustFingerprint(t, sineTone(660, 1, 8000, 0.4), 8000, cfg)
	query := mustFingerprint(t, sineTone(230, 1, 8000, 0.4), 8000, cfg)

	catalog := []Entry{
		{ID: "high", OwnerID: "producer-123", Vector: high.Vector},
		{ID: "low", OwnerID: "producer-123", Vector: low.Vector},
	}
	got := Rank(query.Vector, catalog, "producer-123", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].ID != "low" {
		t.Fatalf("expected the 220 Hz entry first, got %+v", got)
	}
}

func TestTenantIsolationWithIdenticalAudio(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	fp := mustFingerprint(t, sineTone(220, 1, 8000, 0.4), 8000, cfg)
	catalog := []Entry{
		{ID: "a", OwnerID: "alice", Vector: fp.Vector},
		{ID: "b", OwnerID: "bob", Vector: fp.Vector},
	}
	got := Rank(fp.Vector, catalog, "alice", 5)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only alice's entry, got %+v", got)
	}
}
