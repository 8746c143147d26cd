package brackets

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/Dosada05/playoff-scoring/models"
)

// ErrMalformedRound означает, что номер раунда или линии не соответствует сетке.
var ErrMalformedRound = errors.New("malformed bracket round")

// Layout is the geometry of a single-elimination bracket. Rounds are
// identified by the performance run they are played in.
//
// The final run carries lines 1-2 for the final and, with third place
// enabled, lines 3-4 for the third-place match. The run after the final holds
// the results: line 1 is the champion, line 2 the third-place winner.
type Layout struct {
	FirstRun       int
	FirstRoundSize int
	ThirdPlace     bool
}

func NewLayout(b models.PlayoffBracket) (Layout, error) {
	if b.FirstRoundSize < 2 || bits.OnesCount(uint(b.FirstRoundSize)) != 1 {
		return Layout{}, fmt.Errorf("%w: bracket %q: first round size %d is not a power of two", ErrMalformedRound, b.Name, b.FirstRoundSize)
	}
	if b.FirstRunNumber < 1 {
		return Layout{}, fmt.Errorf("%w: bracket %q: first run %d", ErrMalformedRound, b.Name, b.FirstRunNumber)
	}
	return Layout{
		FirstRun:       b.FirstRunNumber,
		FirstRoundSize: b.FirstRoundSize,
		ThirdPlace:     b.ThirdPlace && b.FirstRoundSize >= 4,
	}, nil
}

// NumRounds is the number of match rounds.
func (l Layout) NumRounds() int {
	return bits.TrailingZeros(uint(l.FirstRoundSize))
}

func (l Layout) FinalRun() int {
	return l.FirstRun + l.NumRounds() - 1
}

// SemifinalRun returns the semifinal run; brackets of two teams have none.
func (l Layout) SemifinalRun() (int, bool) {
	if l.FirstRoundSize < 4 {
		return 0, false
	}
	return l.FinalRun() - 1, true
}

// ResultRun is the run after the final.
func (l Layout) ResultRun() int {
	return l.FinalRun() + 1
}

// LinesInRun returns how many lines the given run has.
func (l Layout) LinesInRun(run int) (int, error) {
	switch {
	case run < l.FirstRun || run > l.ResultRun():
		return 0, fmt.Errorf("%w: run %d outside runs %d-%d", ErrMalformedRound, run, l.FirstRun, l.ResultRun())
	case run == l.ResultRun():
		if l.ThirdPlace {
			return 2, nil
		}
		return 1, nil
	case run == l.FinalRun() && l.ThirdPlace:
		return 4, nil
	}
	return l.FirstRoundSize >> uint(run-l.FirstRun), nil
}

// ValidateMatchSlot checks that (run, line) is a slot of a match, that is a
// line of a played round and not of the result run.
func (l Layout) ValidateMatchSlot(run, line int) error {
	if run == l.ResultRun() {
		return fmt.Errorf("%w: run %d holds results, not matches", ErrMalformedRound, run)
	}
	n, err := l.LinesInRun(run)
	if err != nil {
		return err
	}
	if line < 1 || line > n {
		return fmt.Errorf("%w: line %d outside 1-%d in run %d", ErrMalformedRound, line, n, run)
	}
	return nil
}

// IsSemifinal reports whether run is the semifinal round with a third-place
// match to feed.
func (l Layout) IsSemifinal(run int) bool {
	semi, ok := l.SemifinalRun()
	return ok && l.ThirdPlace && run == semi
}

// Slots lists every slot of the bracket in run then line order.
func (l Layout) Slots() [][2]int {
	var out [][2]int
	for run := l.FirstRun; run <= l.ResultRun(); run++ {
		n, _ := l.LinesInRun(run)
		for line := 1; line <= n; line++ {
			out = append(out, [2]int{run, line})
		}
	}
	return out
}

// SiblingLine returns the line of the opponent: lines are paired (2k-1, 2k).
func SiblingLine(line int) int {
	if line%2 == 0 {
		return line - 1
	}
	return line + 1
}

// WinnerLine returns the line in the next run the winner of line moves to.
func WinnerLine(line int) int {
	return (line + 1) / 2
}

// ThirdPlaceLine returns the final-run line the loser of a semifinal line
// moves to: semifinal lines 1-2 feed line 3, lines 3-4 feed line 4.
func ThirdPlaceLine(semifinalLine int) int {
	return WinnerLine(semifinalLine) + 2
}
