package challenge

// Op is the node type of a formula tree.
type Op string

const (
	OpConst   Op = "const"   // Value
	OpGoal    Op = "goal"    // computed score of Goal
	OpRaw     Op = "raw"     // raw entered value of Goal
	OpSum     Op = "sum"     // Σ Args
	OpProduct Op = "product" // Π Args
	OpNegate  Op = "negate"  // -Args[0]
	OpSwitch  Op = "switch"  // first matching case, else Default
)

type Comparator string

const (
	CmpLT Comparator = "lt"
	CmpLE Comparator = "le"
	CmpEQ Comparator = "eq"
	CmpNE Comparator = "ne"
	CmpGE Comparator = "ge"
	CmpGT Comparator = "gt"
)

// Expr is one node of a computed goal formula.
type Expr struct {
	Op      Op      `yaml:"op" json:"op"`
	Value   float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Goal    string  `yaml:"goal,omitempty" json:"goal,omitempty"`
	Args    []Expr  `yaml:"args,omitempty" json:"args,omitempty"`
	Cases   []Case  `yaml:"cases,omitempty" json:"cases,omitempty"`
	Default *Expr   `yaml:"default,omitempty" json:"default,omitempty"`
}

type Case struct {
	When Condition `yaml:"when" json:"when"`
	Then Expr      `yaml:"then" json:"then"`
}

// Condition compares two expressions, or, when EnumGoal is set, tests the raw
// value of an enumerated goal against Equals.
type Condition struct {
	Left  *Expr      `yaml:"left,omitempty" json:"left,omitempty"`
	Cmp   Comparator `yaml:"cmp,omitempty" json:"cmp,omitempty"`
	Right *Expr      `yaml:"right,omitempty" json:"right,omitempty"`

	EnumGoal string `yaml:"enum_goal,omitempty" json:"enum_goal,omitempty"`
	Equals   string `yaml:"equals,omitempty" json:"equals,omitempty"`
}

// Compare applies the comparator with the given absolute tolerance.
func (c Comparator) Compare(a, b, tolerance float64) bool {
	diff := a - b
	equal := diff <= tolerance && diff >= -tolerance
	switch c {
	case CmpLT:
		return !equal && a < b
	case CmpLE:
		return equal || a < b
	case CmpEQ:
		return equal
	case CmpNE:
		return !equal
	case CmpGE:
		return equal || a > b
	case CmpGT:
		return !equal && a > b
	}
	return false
}

// references collects the goal names an expression depends on through OpGoal.
func (e *Expr) references(out map[string]struct{}) {
	if e == nil {
		return
	}
	if e.Op == OpGoal {
		out[e.Goal] = struct{}{}
	}
	for i := range e.Args {
		e.Args[i].references(out)
	}
	for i := range e.Cases {
		e.Cases[i].When.Left.references(out)
		e.Cases[i].When.Right.references(out)
		e.Cases[i].Then.references(out)
	}
	e.Default.references(out)
}
