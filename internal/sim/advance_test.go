package sim

import (
	"math"
	"testing"

	"firma/internal/market"
)

func TestAdvanceMonthWrap(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 12)
	next, _ := Advance(s, nil)
	if next.Year != 2026 || next.Month != 1 {
		t.Fatalf("expected (2026, 1), got (%d, %d)", next.Year, next.Month)
	}

	s = NewGameState(market.IndustryServices, 2025, 6)
	next, _ = Advance(s, nil)
	if next.Year != 2025 || next.Month != 7 {
		t.Fatalf("expected (2025, 7), got (%d, %d)", next.Year, next.Month)
	}
}

func TestAdvanceBoundedness(t *testing.T) {
	s := NewGameState(market.IndustryRetail, 2025, 1)
	// Push several fields toward the edges to exercise the clamps.
	s.Utilization = 99
	s.Morale = 2
	s.AuditRisk = 95
	s.PenaltiesRisk = 80
	s.MarketShare = 99.8
	s.Reputation = 99

	for i := 0; i < 36; i++ {
		var m Metrics
		s, m = Advance(s, nil)
		if !s.Bounded() {
			t.Fatalf("state out of bounds after month %d: %+v", i+1, s)
		}
		if s.Employees < 0 || s.CustomerCount < 0 {
			t.Fatalf("negative population after month %d", i+1)
		}
		if m.Revenue < 0 || m.Expenses < 0 {
			t.Fatalf("negative revenue/expenses after month %d: %+v", i+1, m)
		}
	}
}

func TestAdvanceDeterminism(t *testing.T) {
	s := NewGameState(market.IndustryTech, 2025, 3)
	recurring := []RecurringImpact{
		{Source: "marketing_campaign", Metric: MetricMarketShare, Delta: 0.2, MonthsLeft: 3},
		{Source: "business_insurance", Metric: MetricExpenses, Delta: 400, MonthsLeft: 6},
	}
	a1, m1 := Advance(s, recurring)
	a2, m2 := Advance(s, recurring)
	if a1 != a2 {
		t.Fatalf("advance is not deterministic:\n%+v\n%+v", a1, a2)
	}
	if m1.Revenue != m2.Revenue || m1.Profit != m2.Profit {
		t.Fatalf("metrics differ between identical runs")
	}
}

func TestAdvanceRecurringLedger(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 2)
	recurring := []RecurringImpact{
		{Source: "training_program", Metric: MetricQuality, Delta: 1, MonthsLeft: 2},
		{Source: "expired", Metric: MetricCash, Delta: 1000, MonthsLeft: 0},
	}
	base, _ := Advance(s, nil)
	next, m := Advance(s, recurring)

	if next.Quality <= base.Quality {
		t.Fatalf("recurring quality impact not applied: %v <= %v", next.Quality, base.Quality)
	}
	if next.Cash != base.Cash {
		t.Fatalf("expired ledger entry must not apply")
	}
	if len(m.Recurring) != 1 || m.Recurring[0].MonthsLeft != 1 {
		t.Fatalf("ledger not decremented correctly: %+v", m.Recurring)
	}
}

func TestAdvanceRecurringExpenseAdjustment(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 2)
	base, mb := Advance(s, nil)
	_, mi := Advance(s, []RecurringImpact{
		{Source: "business_insurance", Metric: MetricExpenses, Delta: 500, MonthsLeft: 6},
	})
	if math.Abs(mi.Expenses-mb.Expenses-500) > 1e-6 {
		t.Fatalf("expense adjustment not folded in: base=%v insured=%v", mb.Expenses, mi.Expenses)
	}
	_ = base
}

func TestAdvanceTaxCadence(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 2)
	// February is mid-quarter: profit tax accrues but does not settle.
	next, m := Advance(s, nil)
	if m.TaxAccrued <= 0 {
		t.Fatalf("micro regime with revenue must accrue tax, got %v", m.TaxAccrued)
	}
	if m.TaxSettled != 0 {
		t.Fatalf("tax must not settle mid-quarter")
	}
	if next.TaxOwed <= 0 {
		t.Fatalf("accrued tax must carry in tax_owed")
	}

	// March is quarter end: the carried balance settles.
	next2, m2 := Advance(next, nil)
	if m2.TaxSettled <= 0 {
		t.Fatalf("quarter-end advance must settle tax")
	}
	if next2.TaxOwed != 0 {
		t.Fatalf("tax_owed must be cleared after settlement, got %v", next2.TaxOwed)
	}
}

func TestAdvanceMicroTaxMatchesMarketModel(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 5)
	s.IsMicro = true
	s.HasEmployees = true
	_, m := Advance(s, nil)
	want := m.Revenue * 0.01
	if math.Abs(m.TaxAccrued-want) > 1e-6 {
		t.Fatalf("micro tax accrual %v, want 1%% of revenue %v", m.TaxAccrued, want)
	}
}

func TestNewGameStateSeedsFromScenario(t *testing.T) {
	industries := []string{
		market.IndustryTech, market.IndustryRetail, market.IndustryManufacturing,
		market.IndustryServices, market.IndustryAgriculture,
		market.IndustryConstruction, market.IndustryHoreca,
	}
	for _, industry := range industries {
		s := NewGameState(industry, 2025, 3)
		if err := s.Validate(); err != nil {
			t.Fatalf("starting state for %q invalid: %v", industry, err)
		}
		sc := market.StartingScenario(industry)
		if s.Cash != sc.Cash || s.Price != sc.Price || s.Inventory != sc.Inventory {
			t.Fatalf("starting state for %q does not follow its scenario", industry)
		}
		if s.BasePrice != s.Price {
			t.Fatalf("base price for %q must anchor at the scenario price", industry)
		}
	}
	if NewGameState(market.IndustryTech, 2025, 3).Cash == NewGameState(market.IndustryHoreca, 2025, 3).Cash {
		t.Fatalf("industries must not share one starting balance sheet")
	}
}

func TestValidateRejectsOutOfDomain(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 1)
	s.Month = 13
	if err := s.Validate(); err == nil {
		t.Fatalf("month 13 must fail validation")
	}
	s = NewGameState(market.IndustryServices, 2025, 1)
	s.Employees = -1
	if err := s.Validate(); err == nil {
		t.Fatalf("negative employees must fail validation")
	}
	s = NewGameState(market.IndustryServices, 2025, 1)
	s.Morale = 140
	if err := s.Validate(); err == nil {
		t.Fatalf("morale above 100 must fail validation")
	}
}

func TestApplyDeltaClamps(t *testing.T) {
	s := NewGameState(market.IndustryServices, 2025, 1)
	s = ApplyDelta(s, MetricMorale, 500)
	if s.Morale != 100 {
		t.Fatalf("morale must clamp at 100, got %v", s.Morale)
	}
	s = ApplyDelta(s, MetricEmployees, -50)
	if s.Employees != 0 {
		t.Fatalf("employees must floor at 0, got %d", s.Employees)
	}
	if s.HasEmployees {
		t.Fatalf("has_employees must follow the headcount")
	}
	s = ApplyDelta(s, MetricAuditRisk, -500)
	if s.AuditRisk != 0 {
		t.Fatalf("audit risk must clamp at 0, got %v", s.AuditRisk)
	}
}
