package scoring

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/Dosada05/playoff-scoring/challenge"
)

// TieBreak selects how teams with identical seeding scores are ordered.
type TieBreak string

const (
	// TieBreakTeamNumber orders tied teams by ascending team number.
	TieBreakTeamNumber TieBreak = "team"
	// TieBreakRandomDraw orders tied teams by a draw seeded with SeedingOptions.Seed.
	TieBreakRandomDraw TieBreak = "random"
)

func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", TieBreakTeamNumber:
		return TieBreakTeamNumber, nil
	case TieBreakRandomDraw:
		return TieBreakRandomDraw, nil
	}
	return "", fmt.Errorf("unknown tie break %q", s)
}

type SeedingOptions struct {
	Criterion challenge.WinnerCriterion
	TieBreak  TieBreak
	Seed      uint64
}

// SeedingRuns holds a team's evaluated seeding runs. Nil totals are no-shows.
type SeedingRuns struct {
	Team   int
	Totals []*float64
}

type Seed struct {
	Team     int      `json:"team_number"`
	Best     *float64 `json:"best_score"`
	Average  *float64 `json:"average_score"`
	Rank     int      `json:"rank"`
	TieCount int      `json:"tie_count"`
	Position int      `json:"position"`
}

type SeedingResult struct {
	TieBreak TieBreak `json:"tie_break"`
	Seed     *uint64  `json:"seed,omitempty"` // set for random draws so the draw can be repeated
	Order    []Seed   `json:"order"`
}

// SeedingOrder sorts teams by best seeding score, then by average, then by
// the declared tie break. Rank and TieCount reflect only the scores, so tied
// teams stay visible as ties even after the tie break placed them.
func SeedingOrder(teams []SeedingRuns, opts SeedingOptions) SeedingResult {
	order := OrderFor(opts.Criterion)

	seeds := make([]Seed, 0, len(teams))
	for _, t := range teams {
		seeds = append(seeds, summarizeRuns(t, opts.Criterion))
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Team < seeds[j].Team })

	draw := make(map[int]uint64, len(seeds))
	result := SeedingResult{TieBreak: TieBreakTeamNumber}
	if opts.TieBreak == TieBreakRandomDraw {
		result.TieBreak = TieBreakRandomDraw
		seed := opts.Seed
		result.Seed = &seed
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		for _, s := range seeds {
			draw[s.Team] = rng.Uint64()
		}
	}

	tied := func(a, b Seed) bool {
		return Compare(a.Best, b.Best, order, PerformanceTolerance) == 0 &&
			Compare(a.Average, b.Average, order, PerformanceTolerance) == 0
	}

	sort.SliceStable(seeds, func(i, j int) bool {
		if c := Compare(seeds[i].Best, seeds[j].Best, order, PerformanceTolerance); c != 0 {
			return c < 0
		}
		if c := Compare(seeds[i].Average, seeds[j].Average, order, PerformanceTolerance); c != 0 {
			return c < 0
		}
		if result.TieBreak == TieBreakRandomDraw && draw[seeds[i].Team] != draw[seeds[j].Team] {
			return draw[seeds[i].Team] < draw[seeds[j].Team]
		}
		return seeds[i].Team < seeds[j].Team
	})

	rank, numTied, blockStart := 1, 1, 0
	for i := range seeds {
		if i > 0 {
			if tied(seeds[i-1], seeds[i]) {
				numTied++
			} else {
				for j := blockStart; j < i; j++ {
					seeds[j].TieCount = numTied
				}
				rank += numTied
				numTied = 1
				blockStart = i
			}
		}
		seeds[i].Rank = rank
		seeds[i].Position = i + 1
	}
	for j := blockStart; j < len(seeds); j++ {
		seeds[j].TieCount = numTied
	}

	result.Order = seeds
	return result
}

func summarizeRuns(t SeedingRuns, criterion challenge.WinnerCriterion) Seed {
	s := Seed{Team: t.Team, Best: BestScore(t.Totals, criterion)}
	var sum float64
	var n int
	for _, total := range t.Totals {
		if total == nil {
			continue
		}
		sum += *total
		n++
	}
	if n > 0 {
		avg := sum / float64(n)
		s.Average = &avg
	}
	return s
}

// BestScore returns the best of totals under criterion, nil when every total is nil.
func BestScore(totals []*float64, criterion challenge.WinnerCriterion) *float64 {
	var best *float64
	for _, total := range totals {
		if total == nil {
			continue
		}
		if best == nil || criterion.Better(*total, *best) {
			v := *total
			best = &v
		}
	}
	return best
}
