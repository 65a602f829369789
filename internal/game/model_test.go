package game

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCompanyName(t *testing.T) {
	valid := []string{
		"Brutaria Ana",
		"TechNova SRL",
		"La Doi Pasi",
	}
	for _, name := range valid {
		if err := ValidateCompanyName(name); err != nil {
			t.Fatalf("%q should be accepted: %v", name, err)
		}
	}

	invalid := []string{
		"",
		"  ",
		"X",
		strings.Repeat("a", 65),
		"Admin Consulting",
		"support desk srl",
	}
	for _, name := range invalid {
		if err := ValidateCompanyName(name); !errors.Is(err, ErrInvalidCompanyName) {
			t.Fatalf("%q should be rejected with ErrInvalidCompanyName, got %v", name, err)
		}
	}
}

func TestValidIndustry(t *testing.T) {
	if _, err := validIndustry("  TECH  "); err != nil {
		t.Fatalf("industry lookup should be case and space insensitive: %v", err)
	}
	if _, err := validIndustry("horeca"); err != nil {
		t.Fatalf("horeca is a known industry: %v", err)
	}
	if _, err := validIndustry("piracy"); !errors.Is(err, ErrInvalidIndustry) {
		t.Fatalf("expected ErrInvalidIndustry, got %v", err)
	}
}

func TestGameRowView(t *testing.T) {
	g := gameRow{
		ID:           "g1",
		CompanyName:  "Brutaria Ana",
		Industry:     "horeca",
		Status:       StatusActive,
		MonthsPlayed: 7,
	}
	v := g.view()
	if v.ID != g.ID || v.CompanyName != g.CompanyName || v.MonthsPlayed != 7 {
		t.Fatalf("view drops fields: %+v", v)
	}
	if v.Status != StatusActive {
		t.Fatalf("unexpected status %q", v.Status)
	}
}

func TestUsernameFromEmail(t *testing.T) {
	cases := map[string]string{
		"Ana.Pop@example.com": "ana.pop",
		"@nothing":            "player",
		"":                    "player",
	}
	for in, want := range cases {
		if got := usernameFromEmail(in); got != want {
			t.Fatalf("usernameFromEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
