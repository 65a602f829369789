package decision

import (
	"errors"
	mathrand "math/rand"
	"testing"

	"firma/internal/market"
	"firma/internal/sim"
)

func testState() sim.State {
	return sim.NewGameState(market.IndustryServices, 2025, 3)
}

func testRNG(seed int64) *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(seed))
}

func TestApplyUnknownDecision(t *testing.T) {
	s := testState()
	_, _, err := Apply(s, "buy_helicopter", nil, 0, testRNG(1))
	if !errors.Is(err, ErrUnknownDecision) {
		t.Fatalf("expected ErrUnknownDecision, got %v", err)
	}
}

func TestApplyCooldownActive(t *testing.T) {
	s := testState()
	_, _, err := Apply(s, "marketing_campaign", nil, 2, testRNG(1))
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
}

func TestApplyRequirementsNotMetLeavesStateUnchanged(t *testing.T) {
	s := testState()
	s.Cash = -500
	next, _, err := Apply(s, "buy_equipment", Params{"amount": 10_000}, 0, testRNG(1))
	if !errors.Is(err, ErrRequirementsNotMet) {
		t.Fatalf("expected ErrRequirementsNotMet, got %v", err)
	}
	if next != s {
		t.Fatalf("state must be unchanged on rejection:\nbefore %+v\nafter  %+v", s, next)
	}
}

func TestApplyParamBounds(t *testing.T) {
	s := testState()
	if _, _, err := Apply(s, "hire_staff", Params{"count": 50}, 0, testRNG(1)); !errors.Is(err, ErrParamOutOfRange) {
		t.Fatalf("expected ErrParamOutOfRange for count=50, got %v", err)
	}
	if _, _, err := Apply(s, "hire_staff", Params{"grandeur": 1}, 0, testRNG(1)); !errors.Is(err, ErrParamOutOfRange) {
		t.Fatalf("expected ErrParamOutOfRange for unknown parameter, got %v", err)
	}
}

func TestApplyParamDefaults(t *testing.T) {
	s := testState()
	next, res, err := Apply(s, "hire_staff", nil, 0, testRNG(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Employees != s.Employees+1 {
		t.Fatalf("default count=1 not applied: %d -> %d", s.Employees, next.Employees)
	}
	if len(res.Applied) == 0 {
		t.Fatalf("expected applied deltas in result")
	}
}

func TestApplyDeterminism(t *testing.T) {
	s := testState()
	s.Utilization = 95 // arms the optimize_production risk condition
	for seed := int64(0); seed < 5; seed++ {
		a1, r1, err1 := Apply(s, "optimize_production", Params{"budget": 9_000}, 0, testRNG(seed))
		a2, r2, err2 := Apply(s, "optimize_production", Params{"budget": 9_000}, 0, testRNG(seed))
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v / %v", err1, err2)
		}
		if a1 != a2 {
			t.Fatalf("seed %d: states differ", seed)
		}
		if len(r1.RiskEvents) != len(r2.RiskEvents) {
			t.Fatalf("seed %d: risk outcomes differ", seed)
		}
	}
}

func TestApplyLoanImpacts(t *testing.T) {
	s := testState()
	next, res, err := Apply(s, "take_bank_loan", Params{"amount": 60_000}, 0, testRNG(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Cash != s.Cash+60_000 {
		t.Fatalf("loan cash not credited: %v", next.Cash)
	}
	if next.Loans != s.Loans+60_000 {
		t.Fatalf("loan principal not recorded: %v", next.Loans)
	}
	if next.LoanPayments <= 0 {
		t.Fatalf("monthly installment must be registered")
	}
	if len(res.Recurring) != 0 {
		t.Fatalf("loan has no recurring ledger entries, got %+v", res.Recurring)
	}
}

func TestApplyRecurringLedgerReturned(t *testing.T) {
	s := testState()
	_, res, err := Apply(s, "business_insurance", Params{"premium": 800}, 0, testRNG(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Recurring) != 1 {
		t.Fatalf("expected one recurring entry, got %+v", res.Recurring)
	}
	rec := res.Recurring[0]
	if rec.Metric != sim.MetricExpenses || rec.Delta != 800 || rec.MonthsLeft != 12 {
		t.Fatalf("unexpected recurring entry: %+v", rec)
	}
	if rec.Source != "business_insurance" {
		t.Fatalf("recurring entry must name its decision, got %q", rec.Source)
	}
}

func TestApplyBoundednessUnderRepeatedDecisions(t *testing.T) {
	s := testState()
	s.Cash = 10_000_000
	rng := testRNG(42)
	for i := 0; i < 20; i++ {
		var err error
		s, _, err = Apply(s, "salary_increase", Params{"percent": 30}, 0, rng)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if !s.Bounded() {
			t.Fatalf("round %d: state escaped bounds: %+v", i, s)
		}
	}
	if s.Morale != 100 {
		t.Fatalf("repeated raises should pin morale at the cap, got %v", s.Morale)
	}
}

func TestCatalogCoversAllCategories(t *testing.T) {
	got := make(map[Category]int)
	for _, d := range All() {
		got[d.Category]++
	}
	for c := range categories {
		if got[c] == 0 {
			t.Fatalf("no decisions declared for category %q", c)
		}
	}
}
