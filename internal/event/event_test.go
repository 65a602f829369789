package event

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

func TestGetUnknownEvent(t *testing.T) {
	if _, err := Get("alien_invasion"); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestResolveUnknownResponse(t *testing.T) {
	s := testState()
	_, _, err := Resolve("tax_audit", "bribe", s)
	if !errors.Is(err, ErrUnknownResponse) {
		t.Fatalf("expected ErrUnknownResponse, got %v", err)
	}
}

func TestResolveAppliesImpacts(t *testing.T) {
	s := testState()
	s.AuditRisk = 50
	next, out, err := Resolve("tax_audit", "hire_counsel", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Cash != s.Cash-6_000 {
		t.Fatalf("counsel fee not deducted: %v -> %v", s.Cash, next.Cash)
	}
	if next.AuditRisk != s.AuditRisk-20 {
		t.Fatalf("audit risk not reduced: %v -> %v", s.AuditRisk, next.AuditRisk)
	}
	if len(out.Applied) != 3 {
		t.Fatalf("expected three applied deltas, got %+v", out.Applied)
	}
	if len(out.Chain) != 0 {
		t.Fatalf("hire_counsel must not chain anything, got %v", out.Chain)
	}
}

func TestResolveReturnsChain(t *testing.T) {
	s := testState()
	_, out, err := Resolve("tax_audit", "go_alone", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Chain) != 1 || out.Chain[0] != "penalty_notice" {
		t.Fatalf("expected chained penalty_notice, got %v", out.Chain)
	}
}

func TestResolveStaysBounded(t *testing.T) {
	s := testState()
	s.Reputation = 2
	s.CustomerSatisfaction = 1
	next, _, err := Resolve("viral_complaint", "silence", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Bounded() {
		t.Fatalf("resolution escaped bounds: %+v", next)
	}
}

func TestDefaultResponseIsFirstDeclared(t *testing.T) {
	for _, d := range All() {
		if got, want := d.DefaultResponse().ID, d.Responses[0].ID; got != want {
			t.Fatalf("%s: default response %q, want first declared %q", d.ID, got, want)
		}
	}
	d, err := Get("price_war")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.DefaultResponse().ID != "hold_price" {
		t.Fatalf("price_war default must be the passive outcome, got %q", d.DefaultResponse().ID)
	}
}

func TestSelectRespectsTriggers(t *testing.T) {
	s := testState() // AuditRisk 5, well below the audit trigger
	for seed := int64(0); seed < 200; seed++ {
		for _, d := range Select(s, 24, testRNG(seed)) {
			if d.ID == "tax_audit" {
				t.Fatalf("seed %d: tax_audit fired with audit risk %v", seed, s.AuditRisk)
			}
			if d.ID == "penalty_notice" {
				t.Fatalf("seed %d: chain-only event fired spontaneously", seed)
			}
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	s := testState()
	s.AuditRisk = 60
	s.Morale = 30
	for seed := int64(0); seed < 20; seed++ {
		a := Select(s, 18, testRNG(seed))
		b := Select(s, 18, testRNG(seed))
		if len(a) != len(b) {
			t.Fatalf("seed %d: lengths differ: %d vs %d", seed, len(a), len(b))
		}
		for i := range a {
			if a[i].ID != b[i].ID {
				t.Fatalf("seed %d: position %d differs: %s vs %s", seed, i, a[i].ID, b[i].ID)
			}
		}
	}
}

func TestSelectOrderedBySeverity(t *testing.T) {
	s := testState()
	s.Cash = 2_000
	s.Morale = 20
	s.CustomerSatisfaction = 30
	s.AuditRisk = 90
	for seed := int64(0); seed < 300; seed++ {
		sel := Select(s, 36, testRNG(seed))
		for i := 1; i < len(sel); i++ {
			if sel[i].Severity > sel[i-1].Severity {
				t.Fatalf("seed %d: %s (%s) ordered after %s (%s)",
					seed, sel[i].ID, sel[i].Severity, sel[i-1].ID, sel[i-1].Severity)
			}
		}
	}
}

func TestSelectCapRampsWithElapsedMonths(t *testing.T) {
	s := testState()
	s.Cash = 2_000
	s.Morale = 20
	s.CustomerSatisfaction = 30
	s.AuditRisk = 90
	for seed := int64(0); seed < 300; seed++ {
		if n := len(Select(s, 0, testRNG(seed))); n > 1 {
			t.Fatalf("seed %d: first month allowed %d events", seed, n)
		}
		if n := len(Select(s, 48, testRNG(seed))); n > 3 {
			t.Fatalf("seed %d: cap exceeded with %d events", seed, n)
		}
	}
}

func TestCatalogCoversAllTypes(t *testing.T) {
	got := make(map[Type]int)
	for _, d := range All() {
		got[d.Type]++
	}
	for typ := range types {
		if got[typ] == 0 {
			t.Fatalf("no events declared for type %q", typ)
		}
	}
}

func TestCatalogValidates(t *testing.T) {
	if err := validateCatalog(); err != nil {
		t.Fatalf("catalog failed validation: %v", err)
	}
}
