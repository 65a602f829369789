// Package decision holds the catalog of player decisions and the
// stateless applicator. Impact formulas are compiled closures over
// State and parameters; nothing is evaluated from strings at runtime.
package decision

import (
	"errors"
	"fmt"
	mathrand "math/rand"

	"firma/internal/sim"
)

var (
	ErrUnknownDecision    = errors.New("unknown decision")
	ErrRequirementsNotMet = errors.New("decision requirements not met")
	ErrCooldownActive     = errors.New("decision cooldown active")
	ErrParamOutOfRange    = errors.New("parameter out of range")
)

// Category groups decisions in the catalog.
type Category string

const (
	CategoryFinancial  Category = "financial"
	CategoryOperations Category = "operations"
	CategoryHR         Category = "hr"
	CategoryMarketing  Category = "marketing"
	CategoryCompliance Category = "compliance"
	CategoryGrowth     Category = "growth"
	CategoryRisk       Category = "risk"
)

var categories = map[Category]bool{
	CategoryFinancial:  true,
	CategoryOperations: true,
	CategoryHR:         true,
	CategoryMarketing:  true,
	CategoryCompliance: true,
	CategoryGrowth:     true,
	CategoryRisk:       true,
}

// Param is one bounded numeric input the player supplies. Missing
// values take the default; values outside [Min, Max] are rejected.
type Param struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// Params carries the player-supplied parameter values by name.
type Params map[string]float64

// Impact is one metric adjustment, its magnitude computed from the
// pre-decision State and the parameters.
type Impact struct {
	Metric sim.Metric
	Amount func(s sim.State, p Params) float64
}

// MonthlyImpact registers a recurring adjustment the progression
// engine folds in for the next Months advances.
type MonthlyImpact struct {
	Metric sim.Metric
	Amount func(s sim.State, p Params) float64
	Months int
}

// Risk is a side effect that may trigger when its condition holds.
type Risk struct {
	Description string
	Condition   func(s sim.State, p Params) bool
	Probability float64
	Impacts     []Impact
}

// Requirement is a precondition over the State. Unmet requirements
// reject the decision without touching the State.
type Requirement struct {
	Description string
	Met         func(s sim.State) bool
}

// Definition is one immutable catalog entry.
type Definition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Params      []Param  `json:"params,omitempty"`
	Cooldown    int      `json:"cooldown"`

	Immediate    []Impact        `json:"-"`
	Monthly      []MonthlyImpact `json:"-"`
	Risks        []Risk          `json:"-"`
	Requirements []Requirement   `json:"-"`
}

// RequirementTexts lists the precondition descriptions, for display.
func (d Definition) RequirementTexts() []string {
	out := make([]string, 0, len(d.Requirements))
	for _, r := range d.Requirements {
		out = append(out, r.Description)
	}
	return out
}

// Result reports what a decision did: immediate deltas, triggered
// risks and the recurring ledger entries the caller must persist.
type Result struct {
	DecisionID string                `json:"decision_id"`
	Applied    []sim.Delta           `json:"applied"`
	RiskEvents []string              `json:"risk_events,omitempty"`
	Recurring  []sim.RecurringImpact `json:"recurring,omitempty"`
}

// Get looks up a catalog entry by ID.
func Get(id string) (Definition, error) {
	d, ok := index[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownDecision, id)
	}
	return d, nil
}

// All returns the catalog in declaration order.
func All() []Definition {
	return catalog
}

// Apply validates and applies a decision to a State. The applicator is
// stateless: cooldownRemaining comes from the caller's history, and
// the returned recurring impacts are the caller's to persist. rng
// drives risk triggering only; a fixed seed reproduces the outcome.
func Apply(s sim.State, id string, params Params, cooldownRemaining int, rng *mathrand.Rand) (sim.State, Result, error) {
	var res Result
	d, err := Get(id)
	if err != nil {
		return s, res, err
	}
	res.DecisionID = d.ID

	if cooldownRemaining > 0 {
		return s, res, fmt.Errorf("%w: %q available in %d month(s)", ErrCooldownActive, id, cooldownRemaining)
	}

	p, err := resolveParams(d, params)
	if err != nil {
		return s, res, err
	}

	for _, req := range d.Requirements {
		if !req.Met(s) {
			return s, res, fmt.Errorf("%w: %s", ErrRequirementsNotMet, req.Description)
		}
	}

	// All formulas evaluate against the pre-decision snapshot so impact
	// order never changes the outcome.
	before := s
	for _, imp := range d.Immediate {
		amount := imp.Amount(before, p)
		s = sim.ApplyDelta(s, imp.Metric, amount)
		res.Applied = append(res.Applied, sim.Delta{Metric: imp.Metric, Amount: amount})
	}

	for _, risk := range d.Risks {
		if risk.Condition != nil && !risk.Condition(before, p) {
			continue
		}
		if rng.Float64() >= risk.Probability {
			continue
		}
		res.RiskEvents = append(res.RiskEvents, risk.Description)
		for _, imp := range risk.Impacts {
			amount := imp.Amount(before, p)
			s = sim.ApplyDelta(s, imp.Metric, amount)
			res.Applied = append(res.Applied, sim.Delta{Metric: imp.Metric, Amount: amount})
		}
	}

	for _, rec := range d.Monthly {
		res.Recurring = append(res.Recurring, sim.RecurringImpact{
			Source:     d.ID,
			Metric:     rec.Metric,
			Delta:      rec.Amount(before, p),
			MonthsLeft: rec.Months,
		})
	}

	return s, res, nil
}

// resolveParams fills defaults, rejects unknown names and enforces the
// declared bounds.
func resolveParams(d Definition, in Params) (Params, error) {
	out := make(Params, len(d.Params))
	declared := make(map[string]Param, len(d.Params))
	for _, p := range d.Params {
		declared[p.Name] = p
		out[p.Name] = p.Default
	}
	for name, v := range in {
		p, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a parameter of %q", ErrParamOutOfRange, name, d.ID)
		}
		if v < p.Min || v > p.Max {
			return nil, fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrParamOutOfRange, name, v, p.Min, p.Max)
		}
		out[name] = v
	}
	return out, nil
}
