package market

import (
	"math"
	"testing"
	"time"
)

func TestVATRateChange(t *testing.T) {
	tests := []struct {
		amount  float64
		reduced bool
		post    bool
		want    float64
	}{
		{amount: 10_000, reduced: false, post: false, want: 1_900},
		{amount: 10_000, reduced: false, post: true, want: 2_100},
		{amount: 10_000, reduced: true, post: false, want: 900},
		{amount: 10_000, reduced: true, post: true, want: 1_100},
	}
	for _, tc := range tests {
		got := VAT(tc.amount, tc.reduced, tc.post)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("VAT(%v, reduced=%v, post=%v) = %v, want %v", tc.amount, tc.reduced, tc.post, got, tc.want)
		}
	}
}

func TestRatesEffectiveDate(t *testing.T) {
	before := Rates(time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC))
	if before.VATStandard != 0.19 {
		t.Fatalf("expected 19%% standard VAT before the change, got %v", before.VATStandard)
	}
	after := Rates(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))
	if after.VATStandard != 0.21 {
		t.Fatalf("expected 21%% standard VAT from 2025-08-01, got %v", after.VATStandard)
	}
	if RatesFor(2026, 1).VATReduced != 0.11 {
		t.Fatalf("expected 11%% reduced VAT in 2026")
	}
}

func TestCorporateTaxMicroRegime(t *testing.T) {
	rs := RatesFor(2025, 6)
	tests := []struct {
		revenue, profit float64
		hasEmployees    bool
		isMicro         bool
		want            float64
	}{
		{revenue: 100_000, profit: 40_000, hasEmployees: true, isMicro: true, want: 1_000},
		{revenue: 100_000, profit: -5_000, hasEmployees: true, isMicro: true, want: 1_000},
		{revenue: 100_000, profit: 40_000, hasEmployees: false, isMicro: true, want: 3_000},
		{revenue: 100_000, profit: 40_000, hasEmployees: true, isMicro: false, want: 6_400},
		{revenue: 100_000, profit: -5_000, hasEmployees: true, isMicro: false, want: 0},
	}
	for _, tc := range tests {
		got := rs.CorporateTax(tc.revenue, tc.profit, tc.hasEmployees, tc.isMicro)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("CorporateTax(rev=%v profit=%v emp=%v micro=%v) = %v, want %v",
				tc.revenue, tc.profit, tc.hasEmployees, tc.isMicro, got, tc.want)
		}
	}
}

func TestPayrollFormulas(t *testing.T) {
	rs := RatesFor(2025, 1)
	gross := 6_000.0

	cost := rs.EmployerCost(gross)
	if math.Abs(cost-6_135) > 1e-9 {
		t.Fatalf("employer cost = %v, want 6135", cost)
	}

	net := rs.NetSalary(gross)
	// 6000 - 35% contributions = 3900, minus 10% income tax = 3510.
	if math.Abs(net-3_510) > 1e-9 {
		t.Fatalf("net salary = %v, want 3510", net)
	}
	if net >= gross {
		t.Fatalf("net %v must be below gross %v", net, gross)
	}
}

func TestSeasonalFactorFallback(t *testing.T) {
	for m := 1; m <= 12; m++ {
		f := SeasonalFactor(m)
		if f < 0.5 || f > 1.5 {
			t.Fatalf("seasonal factor for month %d out of sane range: %v", m, f)
		}
	}
	if SeasonalFactor(0) != 1.0 || SeasonalFactor(13) != 1.0 {
		t.Fatalf("unknown months must fall back to 1.0")
	}
	if SeasonalFactor(12) <= SeasonalFactor(8) {
		t.Fatalf("December demand should beat August")
	}
}

func TestIndustryMarginFallback(t *testing.T) {
	known := IndustryMargin(IndustryTech)
	if known.Low >= known.High {
		t.Fatalf("margin band inverted: %+v", known)
	}
	if known.Typical < known.Low || known.Typical > known.High {
		t.Fatalf("typical margin outside band: %+v", known)
	}
	fallback := IndustryMargin("zeppelin-rides")
	if fallback != genericMargin {
		t.Fatalf("unknown industry must get the generic band, got %+v", fallback)
	}
	if KnownIndustry("zeppelin-rides") {
		t.Fatalf("unexpected known industry")
	}
}

func TestStartingScenarioPerIndustry(t *testing.T) {
	industries := []string{
		IndustryTech, IndustryRetail, IndustryManufacturing, IndustryServices,
		IndustryAgriculture, IndustryConstruction, IndustryHoreca,
	}
	for _, industry := range industries {
		sc := StartingScenario(industry)
		if sc.Name == "" {
			t.Fatalf("industry %q has no scenario", industry)
		}
	}
	if StartingScenario(IndustryTech).Price == StartingScenario(IndustryHoreca).Price {
		t.Fatalf("a software ticket should not price like a bistro ticket")
	}
	if StartingScenario(IndustryRetail).Inventory <= StartingScenario(IndustryTech).Inventory {
		t.Fatalf("retail must start with more stock than tech")
	}
}

func TestStartingScenarioFallback(t *testing.T) {
	if StartingScenario("zeppelin-rides") != industryScenarios[IndustryServices] {
		t.Fatalf("unknown industry must seed from the services template")
	}
}

func TestScenariosValidate(t *testing.T) {
	if err := validateScenarios(); err != nil {
		t.Fatalf("scenario catalog failed validation: %v", err)
	}
}

func TestEconomicCycleImpact(t *testing.T) {
	impact := EconomicCycleImpact()
	if impact.Growth <= 0 || impact.Demand <= 0 {
		t.Fatalf("cycle multipliers must be positive: %+v", impact)
	}
	if CyclePhaseName() == "" {
		t.Fatalf("phase name missing")
	}
}
