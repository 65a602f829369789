// Package achieve holds the achievement catalog, unlock checking and
// the XP level curve. Unlock conditions are closures over aggregate
// player stats; which achievements a player already holds is the
// service layer's concern.
package achieve

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownAchievement = errors.New("unknown achievement")

// Tier ranks achievements by prestige.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

var tiers = map[Tier]bool{
	TierBronze: true, TierSilver: true, TierGold: true,
	TierPlatinum: true, TierDiamond: true,
}

// Stats are the lifetime aggregates unlock conditions evaluate.
// Monetary totals are in RON.
type Stats struct {
	MonthsPlayed     int     `json:"months_played"`
	ProfitableMonths int     `json:"profitable_months"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalProfit      float64 `json:"total_profit"`
	PeakCash         float64 `json:"peak_cash"`
	MaxEmployees     int     `json:"max_employees"`
	MaxMarketShare   float64 `json:"max_market_share"`
	BestOverallScore float64 `json:"best_overall_score"`
	DecisionsMade    int     `json:"decisions_made"`
	EventsResolved   int     `json:"events_resolved"`
	GamesCompleted   int     `json:"games_completed"`
}

// Definition is one immutable achievement. Hidden entries stay out of
// listings until unlocked.
type Definition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tier        Tier   `json:"tier"`
	XP          int    `json:"xp"`
	Hidden      bool   `json:"hidden"`

	Unlock func(s Stats) bool `json:"-"`
}

var catalog = []Definition{
	{
		ID: "first_month", Title: "Open for business",
		Description: "Survive your first month.",
		Tier:        TierBronze, XP: 10,
		Unlock: func(s Stats) bool { return s.MonthsPlayed >= 1 },
	},
	{
		ID: "first_year", Title: "Annual report",
		Description: "Keep a company running for twelve months.",
		Tier:        TierSilver, XP: 50,
		Unlock: func(s Stats) bool { return s.MonthsPlayed >= 12 },
	},
	{
		ID: "veteran", Title: "Seasoned operator",
		Description: "Play sixty months across all games.",
		Tier:        TierGold, XP: 120,
		Unlock: func(s Stats) bool { return s.MonthsPlayed >= 60 },
	},
	{
		ID: "in_the_black", Title: "In the black",
		Description: "Close a month with positive profit.",
		Tier:        TierBronze, XP: 15,
		Unlock: func(s Stats) bool { return s.ProfitableMonths >= 1 },
	},
	{
		ID: "profit_streak", Title: "Profit machine",
		Description: "Close twelve profitable months.",
		Tier:        TierGold, XP: 100,
		Unlock: func(s Stats) bool { return s.ProfitableMonths >= 12 },
	},
	{
		ID: "first_hundred_k", Title: "Six figures",
		Description: "Earn 100,000 RON of cumulative revenue.",
		Tier:        TierBronze, XP: 20,
		Unlock: func(s Stats) bool { return s.TotalRevenue >= 100_000 },
	},
	{
		ID: "first_million", Title: "Millionaire on paper",
		Description: "Earn 1,000,000 RON of cumulative revenue.",
		Tier:        TierGold, XP: 150,
		Unlock: func(s Stats) bool { return s.TotalRevenue >= 1_000_000 },
	},
	{
		ID: "cash_cushion", Title: "Cash cushion",
		Description: "Hold 250,000 RON in cash at once.",
		Tier:        TierSilver, XP: 60,
		Unlock: func(s Stats) bool { return s.PeakCash >= 250_000 },
	},
	{
		ID: "real_employer", Title: "Real employer",
		Description: "Grow the team to ten employees.",
		Tier:        TierSilver, XP: 50,
		Unlock: func(s Stats) bool { return s.MaxEmployees >= 10 },
	},
	{
		ID: "market_force", Title: "Market force",
		Description: "Reach a 5% market share.",
		Tier:        TierPlatinum, XP: 200,
		Unlock: func(s Stats) bool { return s.MaxMarketShare >= 5 },
	},
	{
		ID: "well_run", Title: "Well-run shop",
		Description: "Reach an overall health score of 80.",
		Tier:        TierGold, XP: 100,
		Unlock: func(s Stats) bool { return s.BestOverallScore >= 80 },
	},
	{
		ID: "decisive", Title: "Decisive",
		Description: "Make fifty decisions.",
		Tier:        TierBronze, XP: 25,
		Unlock: func(s Stats) bool { return s.DecisionsMade >= 50 },
	},
	{
		ID: "firefighter", Title: "Firefighter",
		Description: "Resolve twenty-five events.",
		Tier:        TierSilver, XP: 40,
		Unlock: func(s Stats) bool { return s.EventsResolved >= 25 },
	},
	{
		ID: "finisher", Title: "Finisher",
		Description: "Play a company through to the end of a game.",
		Tier:        TierBronze, XP: 30,
		Unlock: func(s Stats) bool { return s.GamesCompleted >= 1 },
	},
	{
		ID: "magnate", Title: "Magnate",
		Description: "Bank 500,000 RON of cumulative profit.",
		Tier:        TierDiamond, XP: 300, Hidden: true,
		Unlock: func(s Stats) bool { return s.TotalProfit >= 500_000 },
	},
}

var index = make(map[string]Definition, len(catalog))

func init() {
	if err := validateCatalog(); err != nil {
		panic(err)
	}
	for _, d := range catalog {
		index[d.ID] = d
	}
}

func validateCatalog() error {
	seen := make(map[string]bool, len(catalog))
	for _, d := range catalog {
		if d.ID == "" || d.Title == "" {
			return fmt.Errorf("achievement catalog: entry missing id or title: %+v", d)
		}
		if seen[d.ID] {
			return fmt.Errorf("achievement catalog: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if !tiers[d.Tier] {
			return fmt.Errorf("achievement catalog: %q has unknown tier %q", d.ID, d.Tier)
		}
		if d.XP <= 0 {
			return fmt.Errorf("achievement catalog: %q has non-positive xp", d.ID)
		}
		if d.Unlock == nil {
			return fmt.Errorf("achievement catalog: %q has no unlock condition", d.ID)
		}
	}
	return nil
}

// Get looks up an achievement by ID.
func Get(id string) (Definition, error) {
	d, ok := index[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownAchievement, id)
	}
	return d, nil
}

// All returns the catalog in declaration order.
func All() []Definition {
	return catalog
}

// Check returns the achievements newly unlocked by stats, excluding
// anything in unlocked. Calling it again with the union of unlocked and
// the returned IDs yields nothing, so re-checks after every month are
// safe.
func Check(stats Stats, unlocked map[string]bool) []Definition {
	var fresh []Definition
	for _, d := range catalog {
		if unlocked[d.ID] {
			continue
		}
		if d.Unlock(stats) {
			fresh = append(fresh, d)
		}
	}
	return fresh
}

// XPFor sums the XP of the given achievement IDs. Unknown IDs are
// skipped rather than failing the whole sum.
func XPFor(ids []string) int {
	total := 0
	for _, id := range ids {
		if d, ok := index[id]; ok {
			total += d.XP
		}
	}
	return total
}

// LevelInfo is one rung of the XP ladder.
type LevelInfo struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	MinXP int    `json:"min_xp"`
}

var levels = []LevelInfo{
	{Level: 1, Title: "Intern", MinXP: 0},
	{Level: 2, Title: "Founder", MinXP: 100},
	{Level: 3, Title: "Manager", MinXP: 300},
	{Level: 4, Title: "Director", MinXP: 700},
	{Level: 5, Title: "Executive", MinXP: 1200},
	{Level: 6, Title: "Magnate", MinXP: 2000},
	{Level: 7, Title: "Tycoon", MinXP: 3000},
}

// Level maps total XP to the highest rung reached. Negative totals
// floor at the first rung.
func Level(xp int) LevelInfo {
	if xp < 0 {
		xp = 0
	}
	i := sort.Search(len(levels), func(i int) bool { return levels[i].MinXP > xp })
	return levels[i-1]
}

// Levels returns the full ladder.
func Levels() []LevelInfo {
	return levels
}
