package scoring

import (
	"math"
	"sort"

	"github.com/Dosada05/playoff-scoring/challenge"
)

// Absolute tolerances under which two scores count as equal.
const (
	PerformanceTolerance = 1e-6
	CategoryTolerance    = 1e-3
)

type Order int

const (
	Descending Order = iota
	Ascending
)

// OrderFor returns the sort order that puts the best score first.
func OrderFor(w challenge.WinnerCriterion) Order {
	if w == challenge.LowestWins {
		return Ascending
	}
	return Descending
}

// Entry is a team's score in one ranking context. A nil Score is a no-show or
// missing score.
type Entry struct {
	Team  int
	Score *float64
}

type Ranked struct {
	Team     int      `json:"team_number"`
	Score    *float64 `json:"score"`
	Rank     int      `json:"rank"`
	TieCount int      `json:"tie_count"`
}

// Equal reports whether a and b are within tolerance of each other.
func Equal(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// Compare orders two optional scores: negative when a goes first. Missing
// scores go last in either order.
func Compare(a, b *float64, order Order, tolerance float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case Equal(*a, *b, tolerance):
		return 0
	}
	less := *a < *b
	if order == Descending {
		less = !less
	}
	if less {
		return -1
	}
	return 1
}

// Rank assigns competition ranks (1, 1, 3, ...) to entries. The input slice is
// not modified.
func Rank(entries []Entry, order Order, tolerance float64) []Ranked {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := Compare(sorted[i].Score, sorted[j].Score, order, tolerance); c != 0 {
			return c < 0
		}
		return sorted[i].Team < sorted[j].Team
	})

	out := make([]Ranked, len(sorted))
	rank, numTied, blockStart := 1, 1, 0
	for i, e := range sorted {
		if i > 0 {
			if Compare(sorted[i-1].Score, e.Score, order, tolerance) == 0 {
				numTied++
			} else {
				fillTieCount(out[blockStart:i], numTied)
				rank += numTied
				numTied = 1
				blockStart = i
			}
		}
		out[i] = Ranked{Team: e.Team, Score: e.Score, Rank: rank}
	}
	fillTieCount(out[blockStart:], numTied)
	return out
}

func fillTieCount(block []Ranked, n int) {
	for i := range block {
		block[i].TieCount = n
	}
}
