package challenge

import (
	"fmt"
)

// Validate checks the description for configuration errors: unknown goal
// kinds, dangling goal references and cycles between computed goals.
func (d *Description) Validate() error {
	switch d.WinnerCriterion {
	case HighestWins, LowestWins:
	default:
		return fmt.Errorf("%w: unknown winner criterion %q", ErrInvalidChallenge, d.WinnerCriterion)
	}

	if err := d.Performance.validate(); err != nil {
		return err
	}
	for i, tb := range d.Performance.Tiebreakers {
		switch tb.Winner {
		case HighestWins, LowestWins:
		default:
			return fmt.Errorf("%w: tiebreaker %d: unknown winner criterion %q", ErrInvalidChallenge, i, tb.Winner)
		}
		if tb.Formula != nil {
			if err := d.Performance.validateExpr(tb.Formula); err != nil {
				return fmt.Errorf("tiebreaker %d: %w", i, err)
			}
			continue
		}
		if _, ok := d.Performance.Goal(tb.Goal); !ok {
			return fmt.Errorf("%w: tiebreaker %d references unknown goal %q", ErrInvalidChallenge, i, tb.Goal)
		}
	}

	seen := make(map[string]bool, len(d.Subjective))
	for i := range d.Subjective {
		c := &d.Subjective[i]
		if c.Name == "" {
			return fmt.Errorf("%w: subjective category %d has no name", ErrInvalidChallenge, i)
		}
		if c.Name == d.Performance.Name || seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidChallenge, c.Name)
		}
		seen[c.Name] = true
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Category) validate() error {
	names := make(map[string]bool, len(c.Goals))
	for _, g := range c.Goals {
		if g.Name == "" {
			return fmt.Errorf("%w: category %q has a goal without a name", ErrInvalidChallenge, c.Name)
		}
		if names[g.Name] {
			return fmt.Errorf("%w: category %q: duplicate goal %q", ErrInvalidChallenge, c.Name, g.Name)
		}
		names[g.Name] = true
	}

	for _, g := range c.Goals {
		switch g.Kind {
		case KindNumeric:
			if g.Max < g.Min {
				return fmt.Errorf("%w: goal %q: max %v below min %v", ErrInvalidChallenge, g.Name, g.Max, g.Min)
			}
		case KindYesNo:
		case KindEnumerated:
			if len(g.Values) == 0 {
				return fmt.Errorf("%w: enumerated goal %q has no values", ErrInvalidChallenge, g.Name)
			}
		case KindComputed:
			if g.Formula == nil {
				return fmt.Errorf("%w: computed goal %q has no formula", ErrInvalidChallenge, g.Name)
			}
			if err := c.validateExpr(g.Formula); err != nil {
				return fmt.Errorf("goal %q: %w", g.Name, err)
			}
		default:
			return fmt.Errorf("%w: goal %q: unknown kind %q", ErrInvalidChallenge, g.Name, g.Kind)
		}
	}

	return c.checkCycles()
}

func (c *Category) validateExpr(e *Expr) error {
	switch e.Op {
	case OpConst:
	case OpGoal, OpRaw:
		if _, ok := c.Goal(e.Goal); !ok {
			return fmt.Errorf("%w: reference to unknown goal %q", ErrInvalidChallenge, e.Goal)
		}
	case OpSum, OpProduct:
		for i := range e.Args {
			if err := c.validateExpr(&e.Args[i]); err != nil {
				return err
			}
		}
	case OpNegate:
		if len(e.Args) != 1 {
			return fmt.Errorf("%w: negate takes exactly one argument, got %d", ErrInvalidChallenge, len(e.Args))
		}
		return c.validateExpr(&e.Args[0])
	case OpSwitch:
		for i := range e.Cases {
			if err := c.validateCondition(&e.Cases[i].When); err != nil {
				return err
			}
			if err := c.validateExpr(&e.Cases[i].Then); err != nil {
				return err
			}
		}
		if e.Default != nil {
			return c.validateExpr(e.Default)
		}
	default:
		return fmt.Errorf("%w: unknown formula op %q", ErrInvalidChallenge, e.Op)
	}
	return nil
}

func (c *Category) validateCondition(cond *Condition) error {
	if cond.EnumGoal != "" {
		g, ok := c.Goal(cond.EnumGoal)
		if !ok {
			return fmt.Errorf("%w: reference to unknown goal %q", ErrInvalidChallenge, cond.EnumGoal)
		}
		if g.Kind != KindEnumerated {
			return fmt.Errorf("%w: goal %q is not enumerated", ErrInvalidChallenge, cond.EnumGoal)
		}
		if _, ok := g.EnumScore(cond.Equals); !ok {
			return fmt.Errorf("%w: goal %q has no value %q", ErrInvalidChallenge, cond.EnumGoal, cond.Equals)
		}
		return nil
	}
	if cond.Left == nil || cond.Right == nil {
		return fmt.Errorf("%w: condition needs left and right operands", ErrInvalidChallenge)
	}
	switch cond.Cmp {
	case CmpLT, CmpLE, CmpEQ, CmpNE, CmpGE, CmpGT:
	default:
		return fmt.Errorf("%w: unknown comparator %q", ErrInvalidChallenge, cond.Cmp)
	}
	if err := c.validateExpr(cond.Left); err != nil {
		return err
	}
	return c.validateExpr(cond.Right)
}

// checkCycles walks the computed-goal dependency graph depth first.
func (c *Category) checkCycles() error {
	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(c.Goals))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case grey:
			return fmt.Errorf("%w: category %q: computed goal cycle through %q", ErrInvalidChallenge, c.Name, name)
		case black:
			return nil
		}
		state[name] = grey
		g, _ := c.Goal(name)
		if g != nil && g.Kind == KindComputed {
			deps := make(map[string]struct{})
			g.Formula.references(deps)
			for dep := range deps {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[name] = black
		return nil
	}

	for _, g := range c.Goals {
		if err := visit(g.Name); err != nil {
			return err
		}
	}
	return nil
}
