package tune

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const cosineEpsilon = 1e-8

// Entry is one catalog fingerprint offered to the ranker.
type Entry struct {
	ID      string
	OwnerID string
	Vector  []float64
}

// Scored is a ranked candidate. Index points back into the slice handed to
// Rank so callers can recover their own record.
type Scored struct {
	Index int
	ID    string
	Score float64
}

// CosineSimilarity returns dot(a,b) / (|a||b| + 1e-8). Vectors of unequal
// length are compared over their common prefix.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	dot := 0.0
	if n > 0 {
		dot = floats.Dot(a[:n], b[:n])
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	return dot / (na*nb + cosineEpsilon)
}

// Rank scores every entry owned by ownerID against query, sorts by
// descending score (stable, so equal scores keep catalog order) and keeps
// the first k. Owner matching is exact. k is validated by the caller; a
// non-positive k yields no results.
func Rank(query []float64, catalog []Entry, ownerID string, k int) []Scored {
	if k <= 0 {
		return []Scored{}
	}

	scored := make([]Scored, 0, len(catalog))
	for i, entry := range catalog {
		if entry.OwnerID != ownerID {
			continue
		}
		scored = append(scored, Scored{
			Index: i,
			ID:    entry.ID,
			Score: CosineSimilarity(query, entry.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// RoundScore rounds a similarity to 4 decimals for reporting.
func RoundScore(score float64) float64 {
	return math.Round(score*1e4) / 1e4
}
