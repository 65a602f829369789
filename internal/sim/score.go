package sim

import "math"

// HealthScores summarizes a State on four dimensions plus a weighted
// overall figure. All five values sit in [0,100].
type HealthScores struct {
	Financial  float64 `json:"financial"`
	Operations float64 `json:"operations"`
	Compliance float64 `json:"compliance"`
	Growth     float64 `json:"growth"`
	Overall    float64 `json:"overall"`
}

// Overall weights are a design constant, not derived from State.
const (
	weightFinancial  = 0.35
	weightOperations = 0.25
	weightCompliance = 0.20
	weightGrowth     = 0.20
)

// Score aggregates a State into health scores. Pure and total: any
// State produces a result, every component clamped to [0,100].
func Score(s State) HealthScores {
	var h HealthScores

	// Financial: cash runway, profit margin, debt load against assets.
	runway := 100.0
	if s.Expenses > 0 {
		runway = clampPct(s.Cash / s.Expenses * 25) // 4 months of runway = 100
	} else if s.Cash < 0 {
		runway = 0
	}
	margin := 50.0
	if s.Revenue > 0 {
		margin = clampPct(50 + s.Profit/s.Revenue*250) // +20% margin = 100, -20% = 0
	} else if s.Profit < 0 {
		margin = 0
	}
	assets := s.Cash + s.Inventory + s.Equipment
	debt := 100.0
	if s.Loans > 0 {
		if assets <= 0 {
			debt = 0
		} else {
			debt = clampPct(100 - s.Loans/assets*100)
		}
	}
	h.Financial = clampPct(0.4*runway + 0.4*margin + 0.2*debt)

	// Operations: utilization sweet spot around 85%, plus quality and
	// morale.
	utilScore := clampPct(100 - math.Abs(85-s.Utilization)*2)
	h.Operations = clampPct(0.4*utilScore + 0.3*s.Quality + 0.3*s.Morale)

	// Compliance: the score itself, with risk inverted.
	h.Compliance = clampPct(0.5*s.ComplianceScore + 0.25*(100-s.AuditRisk) + 0.25*(100-s.PenaltiesRisk))

	// Growth: market share, customer base and reputation.
	shareScore := clampPct(s.MarketShare * 10) // 10% share = 100
	customerScore := clampPct(float64(s.CustomerCount) / 5)
	h.Growth = clampPct(0.4*shareScore + 0.3*customerScore + 0.3*s.Reputation)

	h.Overall = clampPct(weightFinancial*h.Financial +
		weightOperations*h.Operations +
		weightCompliance*h.Compliance +
		weightGrowth*h.Growth)
	return h
}
