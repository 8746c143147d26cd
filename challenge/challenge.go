// Package challenge holds the rubric definitions scores are evaluated against.
package challenge

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidChallenge marks a malformed rubric. It is a configuration error,
// never a user error.
var ErrInvalidChallenge = errors.New("invalid challenge description")

type WinnerCriterion string

const (
	HighestWins WinnerCriterion = "highest"
	LowestWins  WinnerCriterion = "lowest"
)

// Better reports whether score a beats score b under the criterion.
func (w WinnerCriterion) Better(a, b float64) bool {
	if w == LowestWins {
		return a < b
	}
	return a > b
}

type GoalKind string

const (
	KindNumeric    GoalKind = "numeric"
	KindYesNo      GoalKind = "yesno"
	KindEnumerated GoalKind = "enumerated"
	KindComputed   GoalKind = "computed"
)

// EnumValue maps one raw value of an enumerated goal to its score.
type EnumValue struct {
	Value string  `yaml:"value" json:"value"`
	Score float64 `yaml:"score" json:"score"`
}

// Goal is one line of a score sheet. Which fields apply depends on Kind.
type Goal struct {
	Name  string   `yaml:"name" json:"name"`
	Title string   `yaml:"title,omitempty" json:"title,omitempty"`
	Kind  GoalKind `yaml:"kind" json:"kind"`

	// numeric and yesno
	Min        float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max        float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`

	// enumerated
	Values []EnumValue `yaml:"values,omitempty" json:"values,omitempty"`

	// computed
	Formula *Expr `yaml:"formula,omitempty" json:"formula,omitempty"`
}

// EnumScore looks up the score of a raw enumerated value.
func (g Goal) EnumScore(value string) (float64, bool) {
	for _, v := range g.Values {
		if v.Value == value {
			return v.Score, true
		}
	}
	return 0, false
}

// Tiebreaker is compared when two playoff totals are equal. Formula defaults
// to the score of Goal.
type Tiebreaker struct {
	Goal    string          `yaml:"goal,omitempty" json:"goal,omitempty"`
	Formula *Expr           `yaml:"formula,omitempty" json:"formula,omitempty"`
	Winner  WinnerCriterion `yaml:"winner" json:"winner"`
}

// Category is a named set of goals: the performance sheet or one subjective
// category.
type Category struct {
	Name   string  `yaml:"name" json:"name"`
	Title  string  `yaml:"title,omitempty" json:"title,omitempty"`
	Weight float64 `yaml:"weight" json:"weight"`
	Goals  []Goal  `yaml:"goals" json:"goals"`

	// performance only
	MinimumScore *float64    `yaml:"minimum_score,omitempty" json:"minimum_score,omitempty"`
	Tiebreakers  []Tiebreaker `yaml:"tiebreakers,omitempty" json:"tiebreakers,omitempty"`
}

// Goal returns the goal with the given name.
func (c *Category) Goal(name string) (*Goal, bool) {
	for i := range c.Goals {
		if c.Goals[i].Name == name {
			return &c.Goals[i], true
		}
	}
	return nil, false
}

type Description struct {
	Title           string          `yaml:"title" json:"title"`
	WinnerCriterion WinnerCriterion `yaml:"winner_criterion" json:"winner_criterion"`
	Performance     Category        `yaml:"performance" json:"performance"`
	Subjective      []Category      `yaml:"subjective,omitempty" json:"subjective,omitempty"`
}

// SubjectiveCategory returns the subjective category with the given name.
func (d *Description) SubjectiveCategory(name string) (*Category, bool) {
	for i := range d.Subjective {
		if d.Subjective[i].Name == name {
			return &d.Subjective[i], true
		}
	}
	return nil, false
}

// Load reads and validates a YAML challenge description.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge description %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML challenge description.
func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}
	if d.WinnerCriterion == "" {
		d.WinnerCriterion = HighestWins
	}
	if d.Performance.Name == "" {
		d.Performance.Name = "performance"
	}
	if d.Performance.Weight == 0 {
		d.Performance.Weight = 1
	}
	for i := range d.Performance.Tiebreakers {
		if d.Performance.Tiebreakers[i].Winner == "" {
			d.Performance.Tiebreakers[i].Winner = d.WinnerCriterion
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
