// Package event holds the catalog of random business events, the
// monthly selection logic and response resolution. Trigger conditions
// and impacts are compiled closures; instances (which event fired for
// which game) belong to the service layer.
package event

import (
	"errors"
	"fmt"
	mathrand "math/rand"
	"sort"

	"firma/internal/sim"
)

var (
	ErrUnknownEvent    = errors.New("unknown event")
	ErrUnknownResponse = errors.New("unknown event response")
)

// Type classifies an event; risk-score adjustments key off it.
type Type string

const (
	TypeMarket      Type = "market"
	TypeRegulatory  Type = "regulatory"
	TypeEconomic    Type = "economic"
	TypeOpportunity Type = "opportunity"
	TypeCrisis      Type = "crisis"
	TypeAudit       Type = "audit"
	TypeCustomer    Type = "customer"
	TypeEmployee    Type = "employee"
	TypeSupplier    Type = "supplier"
	TypeCompetition Type = "competition"
	TypeTechnology  Type = "technology"
)

var types = map[Type]bool{
	TypeMarket: true, TypeRegulatory: true, TypeEconomic: true,
	TypeOpportunity: true, TypeCrisis: true, TypeAudit: true,
	TypeCustomer: true, TypeEmployee: true, TypeSupplier: true,
	TypeCompetition: true, TypeTechnology: true,
}

// Severity orders events when several fire the same month.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// Impact is one metric adjustment computed from the State the response
// is resolved against.
type Impact struct {
	Metric sim.Metric
	Amount func(s sim.State) float64
}

// Response is one way the player can answer an event. Chain names
// events the service must force-trigger after this response.
type Response struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Impacts []Impact `json:"-"`
	Chain   []string `json:"chain,omitempty"`
}

// Definition is one immutable catalog entry. The first declared
// response doubles as the "no action" default applied when a deadline
// lapses.
type Definition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        Type     `json:"type"`
	Severity    Severity `json:"severity"`
	// Deadline is how many subsequent months the player has to respond;
	// 0 means no deadline.
	Deadline        int        `json:"deadline"`
	BaseProbability float64    `json:"base_probability"`
	Trigger         func(s sim.State) bool `json:"-"`
	Responses       []Response `json:"responses"`
}

// DefaultResponse is the outcome applied when the deadline lapses.
func (d Definition) DefaultResponse() Response {
	return d.Responses[0]
}

// Outcome reports what a resolution did.
type Outcome struct {
	EventID    string      `json:"event_id"`
	ResponseID string      `json:"response_id"`
	Applied    []sim.Delta `json:"applied"`
	Chain      []string    `json:"chain,omitempty"`
}

// Get looks up a catalog entry by ID.
func Get(id string) (Definition, error) {
	d, ok := index[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownEvent, id)
	}
	return d, nil
}

// All returns the catalog in declaration order.
func All() []Definition {
	return catalog
}

// Severity weight on firing probability: the rarer the worse.
func severityWeight(s Severity) float64 {
	switch s {
	case SeverityLow:
		return 1.0
	case SeverityMedium:
		return 0.85
	case SeverityHigh:
		return 0.65
	case SeverityCritical:
		return 0.45
	}
	return 1.0
}

// riskAdjust scales probability by the State's risk posture for the
// event's type: audit exposure pulls audits in, low morale invites
// employee trouble, and so on.
func riskAdjust(s sim.State, t Type) float64 {
	adj := 1.0
	switch t {
	case TypeAudit:
		adj = 1 + s.AuditRisk/100
	case TypeCrisis:
		adj = 1 + s.PenaltiesRisk/200
	case TypeRegulatory:
		adj = 1 + (100-s.ComplianceScore)/200
	case TypeEmployee:
		adj = 1 + (70-s.Morale)/200
	case TypeCustomer:
		adj = 1 + (70-s.CustomerSatisfaction)/200
	}
	if adj < 0.25 {
		adj = 0.25
	}
	if adj > 2.5 {
		adj = 2.5
	}
	return adj
}

// maxEventsPerMonth ramps slowly so early months stay quiet.
func maxEventsPerMonth(elapsedMonths int) int {
	n := 1 + elapsedMonths/6
	if n > 3 {
		n = 3
	}
	return n
}

// Select returns the events firing this month for the given State.
// Candidates must pass their trigger; each then fires independently
// with its adjusted probability. Fired events are ordered by severity
// descending with declaration order breaking ties, then capped. rng
// draws happen in declaration order, so a fixed seed reproduces the
// month exactly.
func Select(s sim.State, elapsedMonths int, rng *mathrand.Rand) []Definition {
	progress := 1 + float64(elapsedMonths)*0.01

	type firedAt struct {
		def Definition
		pos int
	}
	var fired []firedAt
	for i, d := range catalog {
		if d.Trigger != nil && !d.Trigger(s) {
			continue
		}
		p := d.BaseProbability * severityWeight(d.Severity) * riskAdjust(s, d.Type) * progress
		if p > 1 {
			p = 1
		}
		if rng.Float64() < p {
			fired = append(fired, firedAt{def: d, pos: i})
		}
	}

	sort.SliceStable(fired, func(i, j int) bool {
		if fired[i].def.Severity != fired[j].def.Severity {
			return fired[i].def.Severity > fired[j].def.Severity
		}
		return fired[i].pos < fired[j].pos
	})

	limit := maxEventsPerMonth(elapsedMonths)
	if len(fired) > limit {
		fired = fired[:limit]
	}
	out := make([]Definition, 0, len(fired))
	for _, f := range fired {
		out = append(out, f.def)
	}
	return out
}

// Resolve applies the chosen response to the State. Chained event IDs
// come back in the Outcome so the caller can force-trigger them,
// bypassing normal probability.
func Resolve(eventID, responseID string, s sim.State) (sim.State, Outcome, error) {
	var out Outcome
	d, err := Get(eventID)
	if err != nil {
		return s, out, err
	}
	out.EventID = d.ID

	var resp *Response
	for i := range d.Responses {
		if d.Responses[i].ID == responseID {
			resp = &d.Responses[i]
			break
		}
	}
	if resp == nil {
		return s, out, fmt.Errorf("%w: %q has no response %q", ErrUnknownResponse, eventID, responseID)
	}
	out.ResponseID = resp.ID
	out.Chain = resp.Chain

	before := s
	for _, imp := range resp.Impacts {
		amount := imp.Amount(before)
		s = sim.ApplyDelta(s, imp.Metric, amount)
		out.Applied = append(out.Applied, sim.Delta{Metric: imp.Metric, Amount: amount})
	}
	return s, out, nil
}
