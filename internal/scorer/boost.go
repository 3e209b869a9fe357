package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/model"
)

// Op is a comparison operator usable in a boost condition.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpGt Op = "gt"
	OpGe Op = "ge"
	OpLt Op = "lt"
	OpLe Op = "le"
)

// Condition is one comparison over an enumerated raw or engineered field.
// Conditions are data, never expression text: the fixed field/operator set
// keeps evaluation total and rules injection-proof while covering the
// documented rule vocabulary.
//
// Numeric fields compare against Value, or against Scale×ValueField when
// ValueField is set (e.g. inventory >= 10×moq). The source_type field
// compares against Equals.
type Condition struct {
	Field      string  `yaml:"field" mapstructure:"field"`
	Op         Op      `yaml:"op" mapstructure:"op"`
	Value      float64 `yaml:"value,omitempty" mapstructure:"value"`
	ValueField string  `yaml:"value_field,omitempty" mapstructure:"value_field"`
	Scale      float64 `yaml:"scale,omitempty" mapstructure:"scale"`
	Equals     string  `yaml:"equals,omitempty" mapstructure:"equals"`
}

// BoostRule multiplies the base score when every condition holds.
type BoostRule struct {
	Name        string      `yaml:"name" mapstructure:"name"`
	Description string      `yaml:"description,omitempty" mapstructure:"description"`
	Multiplier  float64     `yaml:"multiplier" mapstructure:"multiplier"`
	When        []Condition `yaml:"when" mapstructure:"when"`
}

const fieldSourceType = "source_type"

// ValidateBoosts checks a rule set at configuration load. A condition over an
// unknown field or a non-positive multiplier is a configuration error.
func ValidateBoosts(rules []BoostRule, declared []string) error {
	producible := make(map[string]bool, len(declared))
	for _, f := range declared {
		producible[f] = true
	}

	var errs []string
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule %d", i)
		}
		if r.Multiplier <= 0 {
			errs = append(errs, fmt.Sprintf("%s: multiplier must be > 0 (got %g)", name, r.Multiplier))
		}
		if len(r.When) == 0 {
			errs = append(errs, fmt.Sprintf("%s: no conditions", name))
		}
		for _, c := range r.When {
			if c.Field != fieldSourceType && !knownColumn(c.Field) && !producible[c.Field] {
				errs = append(errs, fmt.Sprintf("%s: unknown field %q", name, c.Field))
			}
			if c.ValueField != "" && !knownColumn(c.ValueField) {
				errs = append(errs, fmt.Sprintf("%s: unknown value_field %q", name, c.ValueField))
			}
			switch c.Op {
			case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
			default:
				errs = append(errs, fmt.Sprintf("%s: unknown operator %q", name, c.Op))
			}
			if c.Field == fieldSourceType && c.Op != OpEq && c.Op != OpNe {
				errs = append(errs, fmt.Sprintf("%s: source_type supports only eq/ne", name))
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: boost validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ApplyBoosts multiplies base by every rule whose conditions hold and returns
// the boosted score with the names of the applied rules. Multiplication is
// commutative, so rule order never changes the result. Boosts amplify: a zero
// or negative base passes through untouched, since a boost must never create
// value from nothing.
func ApplyBoosts(base float64, p *model.PartRecord, features model.FeatureVector, rules []BoostRule) (float64, []string) {
	if base <= 0 {
		return base, nil
	}

	boosted := base
	var applied []string
	for _, r := range rules {
		if ruleMatches(&r, p, features) {
			boosted *= r.Multiplier
			applied = append(applied, r.Name)
		}
	}
	return boosted, applied
}

func ruleMatches(r *BoostRule, p *model.PartRecord, features model.FeatureVector) bool {
	for _, c := range r.When {
		if !conditionHolds(&c, p, features) {
			return false
		}
	}
	return true
}

// conditionHolds evaluates one comparison. A condition over an absent column
// is false, never an error: a part without a lead time does not qualify for
// an immediate-ship boost, it is not disqualified from scoring.
func conditionHolds(c *Condition, p *model.PartRecord, features model.FeatureVector) bool {
	if c.Field == fieldSourceType {
		match := string(p.SourceType) == c.Equals
		if c.Op == OpNe {
			return !match
		}
		return match
	}

	lhs, ok := fieldValue(c.Field, p, features)
	if !ok {
		return false
	}

	rhs := c.Value
	if c.ValueField != "" {
		v, ok := rawColumn(p, c.ValueField)
		if !ok {
			return false
		}
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		rhs = scale * v
	}

	switch c.Op {
	case OpEq:
		return lhs == rhs
	case OpNe:
		return lhs != rhs
	case OpGt:
		return lhs > rhs
	case OpGe:
		return lhs >= rhs
	case OpLt:
		return lhs < rhs
	case OpLe:
		return lhs <= rhs
	}
	return false
}

// fieldValue resolves a condition field against raw columns first, then
// engineered features.
func fieldValue(field string, p *model.PartRecord, features model.FeatureVector) (float64, bool) {
	if knownColumn(field) {
		return rawColumn(p, field)
	}
	v, ok := features[field]
	return v, ok
}
