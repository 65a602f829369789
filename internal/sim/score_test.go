package sim

import (
	"testing"

	"firma/internal/market"
)

func TestScoreBounded(t *testing.T) {
	states := []State{
		NewGameState(market.IndustryTech, 2025, 1),
		{}, // zero value: pathological but must not escape [0,100]
		{
			Cash: -200_000, Revenue: 100, Profit: -90_000, Loans: 500_000,
			AuditRisk: 100, PenaltiesRisk: 100, Utilization: 100,
			Month: 1, Year: 2025,
		},
		{
			Cash: 5_000_000, Revenue: 800_000, Profit: 400_000,
			Utilization: 85, Quality: 100, Morale: 100, MarketShare: 100,
			CustomerCount: 100_000, Reputation: 100, ComplianceScore: 100,
			Month: 6, Year: 2026,
		},
	}
	for i, s := range states {
		h := Score(s)
		for name, v := range map[string]float64{
			"financial":  h.Financial,
			"operations": h.Operations,
			"compliance": h.Compliance,
			"growth":     h.Growth,
			"overall":    h.Overall,
		} {
			if v < 0 || v > 100 {
				t.Fatalf("state %d: %s score %v outside [0,100]", i, name, v)
			}
		}
	}
}

func TestScoreOrdering(t *testing.T) {
	healthy := NewGameState(market.IndustryTech, 2025, 1)
	healthy.Cash = 300_000
	healthy.Revenue = 60_000
	healthy.Profit = 12_000
	healthy.Expenses = 48_000
	healthy.Utilization = 85
	healthy.Quality = 90
	healthy.Morale = 85

	struggling := healthy
	struggling.Cash = 1_000
	struggling.Profit = -20_000
	struggling.Loans = 400_000
	struggling.Morale = 20
	struggling.AuditRisk = 90

	hs := Score(healthy)
	ss := Score(struggling)
	if hs.Overall <= ss.Overall {
		t.Fatalf("healthy company must outscore struggling one: %v vs %v", hs.Overall, ss.Overall)
	}
	if hs.Financial <= ss.Financial {
		t.Fatalf("financial sub-score ordering wrong: %v vs %v", hs.Financial, ss.Financial)
	}
	if hs.Compliance <= ss.Compliance {
		t.Fatalf("compliance sub-score must penalize audit risk")
	}
}

func TestScoreOverallWeights(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 1)
	h := Score(s)
	want := weightFinancial*h.Financial + weightOperations*h.Operations +
		weightCompliance*h.Compliance + weightGrowth*h.Growth
	if h.Overall != clampPct(want) {
		t.Fatalf("overall %v does not match fixed weights %v", h.Overall, want)
	}
}
