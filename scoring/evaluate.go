// Package scoring evaluates score sheets against a challenge description and
// ranks the results.
package scoring

import (
	"errors"
	"fmt"

	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/models"
)

// ErrInvalidRawScore is returned for raw input that does not fit the rubric,
// such as an enumerated value that is not in the goal's table.
var ErrInvalidRawScore = errors.New("invalid raw score")

// Result is an evaluated score sheet. A no-show has no total.
type Result struct {
	Total       float64            `json:"total"`
	Goals       map[string]float64 `json:"goals,omitempty"`
	Tiebreakers []float64          `json:"tiebreakers,omitempty"`
	NoShow      bool               `json:"no_show"`
}

func (r Result) Valid() bool {
	return !r.NoShow
}

// TotalPtr returns the total, or nil for a no-show.
func (r Result) TotalPtr() *float64 {
	if r.NoShow {
		return nil
	}
	total := r.Total
	return &total
}

// Evaluate computes the goal scores and total of a score sheet. Tiebreaker
// values are filled for categories that declare tiebreakers.
func Evaluate(cat *challenge.Category, raw models.RawScore, noShow bool) (Result, error) {
	if noShow {
		return Result{NoShow: true}, nil
	}

	ev := &evaluator{
		cat:    cat,
		raw:    raw,
		memo:   make(map[string]float64, len(cat.Goals)),
		active: make(map[string]bool),
	}

	res := Result{Goals: make(map[string]float64, len(cat.Goals))}
	for i := range cat.Goals {
		score, err := ev.goal(cat.Goals[i].Name)
		if err != nil {
			return Result{}, err
		}
		res.Goals[cat.Goals[i].Name] = score
		res.Total += score
	}
	if cat.MinimumScore != nil && res.Total < *cat.MinimumScore {
		res.Total = *cat.MinimumScore
	}

	for i, tb := range cat.Tiebreakers {
		var (
			value float64
			err   error
		)
		if tb.Formula != nil {
			value, err = ev.expr(tb.Formula)
		} else {
			value, err = ev.goal(tb.Goal)
		}
		if err != nil {
			return Result{}, fmt.Errorf("tiebreaker %d: %w", i, err)
		}
		res.Tiebreakers = append(res.Tiebreakers, value)
	}
	return res, nil
}

type evaluator struct {
	cat    *challenge.Category
	raw    models.RawScore
	memo   map[string]float64
	active map[string]bool
}

func (ev *evaluator) goal(name string) (float64, error) {
	if v, ok := ev.memo[name]; ok {
		return v, nil
	}
	g, ok := ev.cat.Goal(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown goal %q", challenge.ErrInvalidChallenge, name)
	}
	if ev.active[name] {
		return 0, fmt.Errorf("%w: computed goal cycle through %q", challenge.ErrInvalidChallenge, name)
	}
	ev.active[name] = true
	defer delete(ev.active, name)

	var (
		score float64
		err   error
	)
	switch g.Kind {
	case challenge.KindNumeric:
		score = evaluateNumeric(g, ev.raw.Values[name])
	case challenge.KindYesNo:
		score, err = evaluateYesNo(g, ev.raw.Values[name])
	case challenge.KindEnumerated:
		score, err = evaluateEnumerated(g, ev.raw.Enums)
	case challenge.KindComputed:
		score, err = ev.expr(g.Formula)
	default:
		err = fmt.Errorf("%w: goal %q: unknown kind %q", challenge.ErrInvalidChallenge, name, g.Kind)
	}
	if err != nil {
		return 0, err
	}
	ev.memo[name] = score
	return score, nil
}

func evaluateNumeric(g *challenge.Goal, raw float64) float64 {
	if raw < g.Min {
		raw = g.Min
	}
	if raw > g.Max {
		raw = g.Max
	}
	return raw * g.Multiplier
}

func evaluateYesNo(g *challenge.Goal, raw float64) (float64, error) {
	if raw != 0 && raw != 1 {
		return 0, fmt.Errorf("%w: goal %q expects 0 or 1, got %v", ErrInvalidRawScore, g.Name, raw)
	}
	return raw * g.Multiplier, nil
}

// evaluateEnumerated scores an unset enumerated goal as zero.
func evaluateEnumerated(g *challenge.Goal, enums map[string]string) (float64, error) {
	value, ok := enums[g.Name]
	if !ok || value == "" {
		return 0, nil
	}
	score, ok := g.EnumScore(value)
	if !ok {
		return 0, fmt.Errorf("%w: goal %q has no value %q", ErrInvalidRawScore, g.Name, value)
	}
	return score, nil
}

func (ev *evaluator) rawValue(name string) (float64, error) {
	g, ok := ev.cat.Goal(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown goal %q", challenge.ErrInvalidChallenge, name)
	}
	if g.Kind == challenge.KindEnumerated {
		return evaluateEnumerated(g, ev.raw.Enums)
	}
	if g.Kind == challenge.KindComputed {
		return ev.goal(name)
	}
	return ev.raw.Values[name], nil
}

func (ev *evaluator) expr(e *challenge.Expr) (float64, error) {
	switch e.Op {
	case challenge.OpConst:
		return e.Value, nil
	case challenge.OpGoal:
		return ev.goal(e.Goal)
	case challenge.OpRaw:
		return ev.rawValue(e.Goal)
	case challenge.OpSum:
		var sum float64
		for i := range e.Args {
			v, err := ev.expr(&e.Args[i])
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum, nil
	case challenge.OpProduct:
		product := 1.0
		for i := range e.Args {
			v, err := ev.expr(&e.Args[i])
			if err != nil {
				return 0, err
			}
			product *= v
		}
		return product, nil
	case challenge.OpNegate:
		if len(e.Args) != 1 {
			return 0, fmt.Errorf("%w: negate takes exactly one argument", challenge.ErrInvalidChallenge)
		}
		v, err := ev.expr(&e.Args[0])
		return -v, err
	case challenge.OpSwitch:
		for i := range e.Cases {
			matched, err := ev.condition(&e.Cases[i].When)
			if err != nil {
				return 0, err
			}
			if matched {
				return ev.expr(&e.Cases[i].Then)
			}
		}
		if e.Default != nil {
			return ev.expr(e.Default)
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown formula op %q", challenge.ErrInvalidChallenge, e.Op)
}

func (ev *evaluator) condition(c *challenge.Condition) (bool, error) {
	if c.EnumGoal != "" {
		return ev.raw.Enums[c.EnumGoal] == c.Equals, nil
	}
	if c.Left == nil || c.Right == nil {
		return false, fmt.Errorf("%w: condition needs left and right operands", challenge.ErrInvalidChallenge)
	}
	left, err := ev.expr(c.Left)
	if err != nil {
		return false, err
	}
	right, err := ev.expr(c.Right)
	if err != nil {
		return false, err
	}
	return c.Cmp.Compare(left, right, PerformanceTolerance), nil
}
