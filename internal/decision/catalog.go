package decision

import (
	"fmt"
	"math"

	"firma/internal/market"
	"firma/internal/sim"
)

func hasPositiveCash(s sim.State) bool { return s.Cash > 0 }

var cashPositive = Requirement{Description: "cash > 0", Met: hasPositiveCash}

// catalog is the full decision set, grouped by category. Loaded once;
// validateCatalog panics at init on a malformed entry.
var catalog = []Definition{
	// ----- financial -----
	{
		ID:          "take_bank_loan",
		Title:       "Take a bank loan",
		Description: "Borrow working capital, repaid over five years at the market lending rate.",
		Category:    CategoryFinancial,
		Params:      []Param{{Name: "amount", Min: 10_000, Max: 500_000, Default: 50_000}},
		Cooldown:    6,
		Requirements: []Requirement{
			{Description: "audit risk below 80", Met: func(s sim.State) bool { return s.AuditRisk < 80 }},
		},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, p Params) float64 { return p["amount"] }},
			{Metric: sim.MetricLoans, Amount: func(_ sim.State, p Params) float64 { return p["amount"] }},
			{Metric: sim.MetricLoanPayments, Amount: func(_ sim.State, p Params) float64 {
				// Monthly installment: interest plus straight-line principal.
				return p["amount"] * (market.LendingRate()/12 + 1.0/60)
			}},
		},
	},
	{
		ID:           "repay_loan",
		Title:        "Repay loan early",
		Description:  "Pay down outstanding debt ahead of schedule.",
		Category:     CategoryFinancial,
		Params:       []Param{{Name: "amount", Min: 1_000, Max: 500_000, Default: 10_000}},
		Cooldown:     0,
		Requirements: []Requirement{cashPositive, {Description: "outstanding loans", Met: func(s sim.State) bool { return s.Loans > 0 }}},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(s sim.State, p Params) float64 { return -math.Min(p["amount"], s.Loans) }},
			{Metric: sim.MetricLoans, Amount: func(s sim.State, p Params) float64 { return -math.Min(p["amount"], s.Loans) }},
			{Metric: sim.MetricLoanPayments, Amount: func(s sim.State, p Params) float64 {
				if s.Loans <= 0 {
					return 0
				}
				repaid := math.Min(p["amount"], s.Loans)
				return -s.LoanPayments * repaid / s.Loans
			}},
		},
	},
	{
		ID:          "invoice_factoring",
		Title:       "Factor receivables",
		Description: "Sell outstanding invoices for immediate cash at a 5% discount.",
		Category:    CategoryFinancial,
		Params:      []Param{{Name: "share", Min: 10, Max: 100, Default: 100}},
		Cooldown:    1,
		Requirements: []Requirement{
			{Description: "outstanding receivables", Met: func(s sim.State) bool { return s.Receivables > 0 }},
		},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(s sim.State, p Params) float64 { return s.Receivables * p["share"] / 100 * 0.95 }},
			{Metric: sim.MetricReceivables, Amount: func(s sim.State, p Params) float64 { return -s.Receivables * p["share"] / 100 }},
		},
	},

	// ----- operations -----
	{
		ID:           "buy_equipment",
		Title:        "Buy equipment",
		Description:  "Invest in machinery, adding capacity and lifting quality.",
		Category:     CategoryOperations,
		Params:       []Param{{Name: "amount", Min: 5_000, Max: 200_000, Default: 20_000}},
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, p Params) float64 { return -p["amount"] }},
			{Metric: sim.MetricEquipment, Amount: func(_ sim.State, p Params) float64 { return p["amount"] }},
			{Metric: sim.MetricCapacity, Amount: func(_ sim.State, p Params) float64 { return p["amount"] / 1_000 }},
			{Metric: sim.MetricQuality, Amount: func(_ sim.State, _ Params) float64 { return 2 }},
		},
		Risks: []Risk{{
			Description: "installation downtime",
			Condition:   func(s sim.State, _ Params) bool { return s.Utilization > 85 },
			Probability: 0.15,
			Impacts: []Impact{
				{Metric: sim.MetricUtilization, Amount: func(_ sim.State, _ Params) float64 { return -5 }},
			},
		}},
	},
	{
		ID:           "optimize_production",
		Title:        "Optimize production",
		Description:  "Process improvement push: better utilization and output quality.",
		Category:     CategoryOperations,
		Params:       []Param{{Name: "budget", Min: 2_000, Max: 50_000, Default: 5_000}},
		Cooldown:     3,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, p Params) float64 { return -p["budget"] }},
			{Metric: sim.MetricUtilization, Amount: func(_ sim.State, _ Params) float64 { return 8 }},
			{Metric: sim.MetricQuality, Amount: func(_ sim.State, _ Params) float64 { return 3 }},
		},
		Risks: []Risk{{
			Description: "change fatigue",
			Condition:   func(s sim.State, _ Params) bool { return s.Utilization > 85 },
			Probability: 0.30,
			Impacts: []Impact{
				{Metric: sim.MetricMorale, Amount: func(_ sim.State, _ Params) float64 { return -8 }},
			},
		}},
	},

	// ----- hr -----
	{
		ID:           "hire_staff",
		Title:        "Hire staff",
		Description:  "Recruit new employees; each adds production capacity.",
		Category:     CategoryHR,
		Params:       []Param{{Name: "count", Min: 1, Max: 20, Default: 1}},
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, p Params) float64 { return -2_000 * p["count"] }},
			{Metric: sim.MetricEmployees, Amount: func(_ sim.State, p Params) float64 { return p["count"] }},
			{Metric: sim.MetricCapacity, Amount: func(_ sim.State, p Params) float64 { return p["count"] * 20 }},
		},
	},
	{
		ID:          "training_program",
		Title:       "Run a training program",
		Description: "Upskill the team; quality keeps improving for a quarter.",
		Category:    CategoryHR,
		Params:      []Param{{Name: "budget_per_employee", Min: 200, Max: 2_000, Default: 500}},
		Cooldown:    4,
		Requirements: []Requirement{
			cashPositive,
			{Description: "at least one employee", Met: func(s sim.State) bool { return s.Employees > 0 }},
		},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(s sim.State, p Params) float64 {
				return -p["budget_per_employee"] * float64(s.Employees)
			}},
			{Metric: sim.MetricMorale, Amount: func(_ sim.State, _ Params) float64 { return 5 }},
		},
		Monthly: []MonthlyImpact{
			{Metric: sim.MetricQuality, Months: 3, Amount: func(_ sim.State, _ Params) float64 { return 2 }},
		},
	},
	{
		ID:           "salary_increase",
		Title:        "Raise salaries",
		Description:  "Across-the-board raise: morale up, payroll up for good.",
		Category:     CategoryHR,
		Params:       []Param{{Name: "percent", Min: 1, Max: 30, Default: 5}},
		Cooldown:     6,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricAverageSalary, Amount: func(s sim.State, p Params) float64 { return s.AverageSalary * p["percent"] / 100 }},
			{Metric: sim.MetricMorale, Amount: func(_ sim.State, p Params) float64 { return p["percent"] }},
		},
	},

	// ----- marketing -----
	{
		ID:           "marketing_campaign",
		Title:        "Launch marketing campaign",
		Description:  "Paid acquisition push; market share builds over three months.",
		Category:     CategoryMarketing,
		Params:       []Param{{Name: "budget", Min: 1_000, Max: 100_000, Default: 10_000}},
		Cooldown:     2,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, p Params) float64 { return -p["budget"] }},
			{Metric: sim.MetricCustomerCount, Amount: func(_ sim.State, p Params) float64 { return math.Floor(p["budget"] / 200) }},
		},
		Monthly: []MonthlyImpact{
			{Metric: sim.MetricMarketShare, Months: 3, Amount: func(_ sim.State, p Params) float64 { return p["budget"] / 50_000 }},
		},
		Risks: []Risk{{
			Description: "campaign amplifies quality complaints",
			Condition:   func(s sim.State, _ Params) bool { return s.Quality < 50 },
			Probability: 0.25,
			Impacts: []Impact{
				{Metric: sim.MetricReputation, Amount: func(_ sim.State, _ Params) float64 { return -8 }},
			},
		}},
	},
	{
		ID:          "price_adjustment",
		Title:       "Adjust price",
		Description: "Move the list price; raises trade satisfaction for margin.",
		Category:    CategoryMarketing,
		Params:      []Param{{Name: "percent", Min: -20, Max: 20, Default: 0}},
		Cooldown:    1,
		Immediate: []Impact{
			{Metric: sim.MetricPrice, Amount: func(s sim.State, p Params) float64 { return s.Price * p["percent"] / 100 }},
			{Metric: sim.MetricCustomerSatisfaction, Amount: func(_ sim.State, p Params) float64 {
				if p["percent"] > 0 {
					return -p["percent"] / 2
				}
				return -p["percent"] / 4
			}},
		},
	},

	// ----- compliance -----
	{
		ID:           "tax_advisor",
		Title:        "Retain a tax advisor",
		Description:  "Professional review of filings; audit exposure drops.",
		Category:     CategoryCompliance,
		Cooldown:     6,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, _ Params) float64 { return -3_000 }},
			{Metric: sim.MetricAuditRisk, Amount: func(_ sim.State, _ Params) float64 { return -15 }},
			{Metric: sim.MetricComplianceScore, Amount: func(_ sim.State, _ Params) float64 { return 10 }},
			{Metric: sim.MetricPenaltiesRisk, Amount: func(_ sim.State, _ Params) float64 { return -10 }},
		},
	},
	{
		ID:           "voluntary_audit",
		Title:        "Commission a voluntary audit",
		Description:  "Full internal audit. Clears the books, may surface back taxes.",
		Category:     CategoryCompliance,
		Cooldown:     12,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, _ Params) float64 { return -8_000 }},
			{Metric: sim.MetricAuditRisk, Amount: func(_ sim.State, _ Params) float64 { return -25 }},
			{Metric: sim.MetricComplianceScore, Amount: func(_ sim.State, _ Params) float64 { return 15 }},
		},
		Risks: []Risk{{
			Description: "irregularities found in prior filings",
			Condition:   func(s sim.State, _ Params) bool { return s.TaxOwed > 0 },
			Probability: 0.20,
			Impacts: []Impact{
				{Metric: sim.MetricTaxOwed, Amount: func(_ sim.State, _ Params) float64 { return 5_000 }},
				{Metric: sim.MetricPenaltiesRisk, Amount: func(_ sim.State, _ Params) float64 { return 10 }},
			},
		}},
	},

	// ----- growth -----
	{
		ID:          "eu_grant_application",
		Title:       "Apply for an EU grant",
		Description: "File for a development grant. Award is not guaranteed.",
		Category:    CategoryGrowth,
		Cooldown:    12,
		Requirements: []Requirement{
			cashPositive,
			{Description: "compliance score at least 70", Met: func(s sim.State) bool { return s.ComplianceScore >= 70 }},
		},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, _ Params) float64 { return -2_500 }},
		},
		Risks: []Risk{{
			Description: "grant awarded",
			Probability: 0.40,
			Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: func(_ sim.State, _ Params) float64 { return 50_000 }},
				{Metric: sim.MetricEquipment, Amount: func(_ sim.State, _ Params) float64 { return 20_000 }},
			},
		}},
	},
	{
		ID:          "new_market_entry",
		Title:       "Enter a new market",
		Description: "Expand into a new region; revenue ramps over six months.",
		Category:    CategoryGrowth,
		Params:      []Param{{Name: "budget", Min: 10_000, Max: 150_000, Default: 30_000}},
		Cooldown:    12,
		Requirements: []Requirement{
			{Description: "cash above 20000", Met: func(s sim.State) bool { return s.Cash > 20_000 }},
		},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, p Params) float64 { return -p["budget"] }},
			{Metric: sim.MetricMarketSize, Amount: func(s sim.State, _ Params) float64 { return s.MarketSize * 0.2 }},
			{Metric: sim.MetricCustomerCount, Amount: func(_ sim.State, p Params) float64 { return math.Floor(p["budget"] / 500) }},
		},
		Monthly: []MonthlyImpact{
			{Metric: sim.MetricRevenue, Months: 6, Amount: func(_ sim.State, p Params) float64 { return p["budget"] * 0.05 }},
		},
	},

	// ----- risk -----
	{
		ID:           "business_insurance",
		Title:        "Take out business insurance",
		Description:  "Annual policy: a monthly premium buys down penalty exposure.",
		Category:     CategoryRisk,
		Params:       []Param{{Name: "premium", Min: 200, Max: 2_000, Default: 500}},
		Cooldown:     12,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricPenaltiesRisk, Amount: func(_ sim.State, _ Params) float64 { return -5 }},
		},
		Monthly: []MonthlyImpact{
			{Metric: sim.MetricExpenses, Months: 12, Amount: func(_ sim.State, p Params) float64 { return p["premium"] }},
		},
	},
	{
		ID:           "diversify_suppliers",
		Title:        "Diversify suppliers",
		Description:  "Second-source critical inputs and build a safety stock.",
		Category:     CategoryRisk,
		Cooldown:     6,
		Requirements: []Requirement{cashPositive},
		Immediate: []Impact{
			{Metric: sim.MetricCash, Amount: func(_ sim.State, _ Params) float64 { return -4_000 }},
			{Metric: sim.MetricQuality, Amount: func(_ sim.State, _ Params) float64 { return 3 }},
			{Metric: sim.MetricInventory, Amount: func(_ sim.State, _ Params) float64 { return 2_000 }},
		},
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

// validateCatalog checks completeness once at load time so usage sites
// never have to defend against a half-built entry.
func validateCatalog() error {
	seen := make(map[string]bool, len(catalog))
	for _, d := range catalog {
		if d.ID == "" || d.Title == "" {
			return fmt.Errorf("decision catalog: entry missing id or title: %+v", d)
		}
		if seen[d.ID] {
			return fmt.Errorf("decision catalog: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if !categories[d.Category] {
			return fmt.Errorf("decision catalog: %q has unknown category %q", d.ID, d.Category)
		}
		if d.Cooldown < 0 {
			return fmt.Errorf("decision catalog: %q has negative cooldown", d.ID)
		}
		for _, p := range d.Params {
			if p.Name == "" || p.Min > p.Max || p.Default < p.Min || p.Default > p.Max {
				return fmt.Errorf("decision catalog: %q has malformed parameter %+v", d.ID, p)
			}
		}
		for _, imp := range d.Immediate {
			if !sim.KnownMetric(imp.Metric) || imp.Amount == nil {
				return fmt.Errorf("decision catalog: %q has malformed immediate impact on %q", d.ID, imp.Metric)
			}
		}
		for _, rec := range d.Monthly {
			if !sim.KnownMetric(rec.Metric) || rec.Amount == nil || rec.Months <= 0 {
				return fmt.Errorf("decision catalog: %q has malformed monthly impact on %q", d.ID, rec.Metric)
			}
		}
		for _, r := range d.Risks {
			if r.Probability < 0 || r.Probability > 1 || r.Description == "" {
				return fmt.Errorf("decision catalog: %q has malformed risk %q", d.ID, r.Description)
			}
			for _, imp := range r.Impacts {
				if !sim.KnownMetric(imp.Metric) || imp.Amount == nil {
					return fmt.Errorf("decision catalog: %q risk %q has malformed impact", d.ID, r.Description)
				}
			}
		}
		for _, req := range d.Requirements {
			if req.Met == nil || req.Description == "" {
				return fmt.Errorf("decision catalog: %q has malformed requirement", d.ID)
			}
		}
	}
	return nil
}
