package achieve

import (
	"errors"
	"testing"
)

func TestGetUnknownAchievement(t *testing.T) {
	if _, err := Get("cold_fusion"); !errors.Is(err, ErrUnknownAchievement) {
		t.Fatalf("expected ErrUnknownAchievement, got %v", err)
	}
}

func TestCheckUnlocksProgressively(t *testing.T) {
	stats := Stats{MonthsPlayed: 1}
	fresh := Check(stats, nil)
	if len(fresh) != 1 || fresh[0].ID != "first_month" {
		t.Fatalf("expected only first_month, got %+v", fresh)
	}

	stats.MonthsPlayed = 12
	stats.ProfitableMonths = 1
	unlocked := map[string]bool{"first_month": true}
	fresh = Check(stats, unlocked)
	ids := make(map[string]bool, len(fresh))
	for _, d := range fresh {
		ids[d.ID] = true
	}
	if !ids["first_year"] || !ids["in_the_black"] {
		t.Fatalf("expected first_year and in_the_black, got %+v", fresh)
	}
	if ids["first_month"] {
		t.Fatalf("already-held achievement must not re-unlock")
	}
}

func TestCheckIdempotent(t *testing.T) {
	stats := Stats{
		MonthsPlayed:     70,
		ProfitableMonths: 20,
		TotalRevenue:     2_000_000,
		TotalProfit:      600_000,
		PeakCash:         300_000,
		MaxEmployees:     12,
		MaxMarketShare:   6,
		BestOverallScore: 85,
		DecisionsMade:    80,
		EventsResolved:   30,
		GamesCompleted:   2,
	}
	unlocked := make(map[string]bool)
	first := Check(stats, unlocked)
	if len(first) != len(All()) {
		t.Fatalf("maxed stats should unlock everything: got %d of %d", len(first), len(All()))
	}
	for _, d := range first {
		unlocked[d.ID] = true
	}
	if again := Check(stats, unlocked); len(again) != 0 {
		t.Fatalf("second check must unlock nothing, got %+v", again)
	}
}

func TestXPFor(t *testing.T) {
	got := XPFor([]string{"first_month", "first_year", "no_such_thing"})
	if got != 60 {
		t.Fatalf("expected 60 xp, got %d", got)
	}
}

func TestLevelCurve(t *testing.T) {
	cases := []struct {
		xp    int
		level int
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{700, 4},
		{1200, 5},
		{2000, 6},
		{3000, 7},
		{10_000, 7},
	}
	for _, c := range cases {
		if got := Level(c.xp); got.Level != c.level {
			t.Fatalf("xp %d: expected level %d, got %d (%s)", c.xp, c.level, got.Level, got.Title)
		}
	}
}

func TestCatalogValidates(t *testing.T) {
	if err := validateCatalog(); err != nil {
		t.Fatalf("catalog failed validation: %v", err)
	}
}

func TestHiddenAchievementsExist(t *testing.T) {
	hidden := 0
	for _, d := range All() {
		if d.Hidden {
			hidden++
		}
	}
	if hidden == 0 {
		t.Fatalf("catalog should declare at least one hidden achievement")
	}
}
