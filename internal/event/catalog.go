package event

import (
	"fmt"

	"firma/internal/sim"
)

func flat(v float64) func(sim.State) float64 {
	return func(sim.State) float64 { return v }
}

// catalog lists every event, grouped loosely by theme. The first
// response of each entry is the passive outcome used when a deadline
// lapses unanswered.
var catalog = []Definition{
	// ----- market / economic -----
	{
		ID:              "demand_surge",
		Title:           "Demand surge",
		Description:     "A wave of new orders is coming in faster than planned.",
		Type:            TypeMarket,
		Severity:        SeverityLow,
		BaseProbability: 0.10,
		Responses: []Response{
			{ID: "ride_it", Label: "Serve what you can", Impacts: []Impact{
				{Metric: sim.MetricUtilization, Amount: flat(10)},
				{Metric: sim.MetricRevenue, Amount: func(s sim.State) float64 { return s.Revenue * 0.05 }},
			}},
			{ID: "scale_up", Label: "Rent extra capacity", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-8_000)},
				{Metric: sim.MetricCapacity, Amount: flat(15)},
				{Metric: sim.MetricMarketShare, Amount: flat(0.3)},
			}},
		},
	},
	{
		ID:              "market_contraction",
		Title:           "Market contraction",
		Description:     "Sector demand is shrinking; customers are postponing purchases.",
		Type:            TypeMarket,
		Severity:        SeverityMedium,
		BaseProbability: 0.08,
		Responses: []Response{
			{ID: "wait_out", Label: "Wait it out", Impacts: []Impact{
				{Metric: sim.MetricUtilization, Amount: flat(-10)},
				{Metric: sim.MetricMarketSize, Amount: func(s sim.State) float64 { return -s.MarketSize * 0.05 }},
			}},
			{ID: "discount", Label: "Discount to hold volume", Impacts: []Impact{
				{Metric: sim.MetricPrice, Amount: func(s sim.State) float64 { return -s.Price * 0.08 }},
				{Metric: sim.MetricCustomerSatisfaction, Amount: flat(5)},
			}},
		},
	},
	{
		ID:              "recession_hits",
		Title:           "Recession hits",
		Description:     "The economy tips into recession. Demand and payment discipline both drop.",
		Type:            TypeEconomic,
		Severity:        SeverityHigh,
		BaseProbability: 0.04,
		Responses: []Response{
			{ID: "absorb", Label: "Absorb the hit", Impacts: []Impact{
				{Metric: sim.MetricRevenue, Amount: func(s sim.State) float64 { return -s.Revenue * 0.15 }},
				{Metric: sim.MetricReceivables, Amount: func(s sim.State) float64 { return s.Revenue * 0.10 }},
			}},
			{ID: "cut_costs", Label: "Emergency cost cuts", Impacts: []Impact{
				{Metric: sim.MetricExpenses, Amount: func(s sim.State) float64 { return -s.Expenses * 0.10 }},
				{Metric: sim.MetricMorale, Amount: flat(-12)},
				{Metric: sim.MetricQuality, Amount: flat(-5)},
			}},
		},
	},
	{
		ID:              "economic_boom",
		Title:           "Economic boom",
		Description:     "Consumer spending is up across the board.",
		Type:            TypeEconomic,
		Severity:        SeverityLow,
		BaseProbability: 0.06,
		Responses: []Response{
			{ID: "enjoy", Label: "Business as usual", Impacts: []Impact{
				{Metric: sim.MetricMarketSize, Amount: func(s sim.State) float64 { return s.MarketSize * 0.08 }},
				{Metric: sim.MetricCustomerCount, Amount: func(s sim.State) float64 { return float64(s.CustomerCount) * 0.10 }},
			}},
			{ID: "invest", Label: "Invest into the upswing", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-15_000)},
				{Metric: sim.MetricCapacity, Amount: flat(20)},
				{Metric: sim.MetricMarketShare, Amount: flat(0.5)},
			}},
		},
	},

	// ----- competition -----
	{
		ID:              "new_competitor",
		Title:           "New competitor enters",
		Description:     "A well-funded competitor has opened in your market.",
		Type:            TypeCompetition,
		Severity:        SeverityMedium,
		BaseProbability: 0.09,
		Responses: []Response{
			{ID: "ignore", Label: "Hold course", Impacts: []Impact{
				{Metric: sim.MetricMarketShare, Amount: flat(-0.5)},
			}},
			{ID: "differentiate", Label: "Invest in differentiation", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-10_000)},
				{Metric: sim.MetricQuality, Amount: flat(5)},
				{Metric: sim.MetricReputation, Amount: flat(3)},
			}},
		},
	},
	{
		ID:              "price_war",
		Title:           "Competitor starts a price war",
		Description:     "Your main competitor slashed prices by 20%. Customers are watching.",
		Type:            TypeCompetition,
		Severity:        SeverityHigh,
		Deadline:        2,
		BaseProbability: 0.06,
		Trigger:         func(s sim.State) bool { return s.MarketShare > 0.5 },
		Responses: []Response{
			{ID: "hold_price", Label: "Hold your price", Impacts: []Impact{
				{Metric: sim.MetricMarketShare, Amount: flat(-1.0)},
				{Metric: sim.MetricCustomerCount, Amount: func(s sim.State) float64 { return -float64(s.CustomerCount) * 0.08 }},
			}},
			{ID: "match_cut", Label: "Match the cut", Impacts: []Impact{
				{Metric: sim.MetricPrice, Amount: func(s sim.State) float64 { return -s.Price * 0.15 }},
				{Metric: sim.MetricCustomerSatisfaction, Amount: flat(6)},
			}},
			{ID: "premium_pivot", Label: "Reposition upmarket", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-12_000)},
				{Metric: sim.MetricPrice, Amount: func(s sim.State) float64 { return s.Price * 0.05 }},
				{Metric: sim.MetricQuality, Amount: flat(6)},
				{Metric: sim.MetricCustomerCount, Amount: func(s sim.State) float64 { return -float64(s.CustomerCount) * 0.05 }},
			}},
		},
	},

	// ----- regulatory / audit -----
	{
		ID:              "vat_rules_update",
		Title:           "VAT reporting rules change",
		Description:     "New e-invoicing requirements take effect next quarter.",
		Type:            TypeRegulatory,
		Severity:        SeverityMedium,
		BaseProbability: 0.07,
		Responses: []Response{
			{ID: "postpone", Label: "Deal with it later", Impacts: []Impact{
				{Metric: sim.MetricComplianceScore, Amount: flat(-8)},
				{Metric: sim.MetricPenaltiesRisk, Amount: flat(8)},
			}},
			{ID: "comply_now", Label: "Implement immediately", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-4_000)},
				{Metric: sim.MetricComplianceScore, Amount: flat(6)},
			}},
		},
	},
	{
		ID:              "labor_inspection",
		Title:           "Labor inspection announced",
		Description:     "The labor inspectorate scheduled a site visit.",
		Type:            TypeRegulatory,
		Severity:        SeverityMedium,
		BaseProbability: 0.05,
		Trigger:         func(s sim.State) bool { return s.Employees > 0 },
		Responses: []Response{
			{ID: "as_is", Label: "Let them come", Impacts: []Impact{
				{Metric: sim.MetricPenaltiesRisk, Amount: flat(10)},
			}},
			{ID: "prepare", Label: "Review contracts first", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-2_500)},
				{Metric: sim.MetricComplianceScore, Amount: flat(5)},
				{Metric: sim.MetricPenaltiesRisk, Amount: flat(-5)},
			}},
		},
	},
	{
		ID:              "tax_audit",
		Title:           "Tax audit notice",
		Description:     "ANAF announced a full audit of the last fiscal year.",
		Type:            TypeAudit,
		Severity:        SeverityHigh,
		Deadline:        2,
		BaseProbability: 0.05,
		Trigger:         func(s sim.State) bool { return s.AuditRisk > 30 },
		Responses: []Response{
			{ID: "go_alone", Label: "Handle it internally", Impacts: []Impact{
				{Metric: sim.MetricAuditRisk, Amount: flat(-10)},
			}, Chain: []string{"penalty_notice"}},
			{ID: "hire_counsel", Label: "Bring in tax counsel", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-6_000)},
				{Metric: sim.MetricAuditRisk, Amount: flat(-20)},
				{Metric: sim.MetricComplianceScore, Amount: flat(8)},
			}},
		},
	},
	{
		ID:              "penalty_notice",
		Title:           "Penalty notice",
		Description:     "The audit found late filings. A penalty decision arrived.",
		Type:            TypeAudit,
		Severity:        SeverityCritical,
		Deadline:        1,
		BaseProbability: 0, // only reachable through a chain
		Responses: []Response{
			{ID: "pay", Label: "Pay the penalty", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-9_000)},
				{Metric: sim.MetricPenaltiesRisk, Amount: flat(-10)},
			}},
			{ID: "contest", Label: "Contest in court", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-3_000)},
				{Metric: sim.MetricPenaltiesRisk, Amount: flat(10)},
				{Metric: sim.MetricAuditRisk, Amount: flat(5)},
			}},
		},
	},

	// ----- employee -----
	{
		ID:              "key_employee_quits",
		Title:           "Key employee resigns",
		Description:     "Your most experienced employee handed in their notice.",
		Type:            TypeEmployee,
		Severity:        SeverityMedium,
		BaseProbability: 0.07,
		Trigger:         func(s sim.State) bool { return s.Employees > 1 && s.Morale < 60 },
		Responses: []Response{
			{ID: "let_go", Label: "Accept the resignation", Impacts: []Impact{
				{Metric: sim.MetricEmployees, Amount: flat(-1)},
				{Metric: sim.MetricQuality, Amount: flat(-5)},
				{Metric: sim.MetricCapacity, Amount: flat(-20)},
			}},
			{ID: "counter_offer", Label: "Make a counter-offer", Impacts: []Impact{
				{Metric: sim.MetricAverageSalary, Amount: func(s sim.State) float64 { return s.AverageSalary * 0.04 }},
				{Metric: sim.MetricMorale, Amount: flat(4)},
			}},
		},
	},
	{
		ID:              "talent_poaching",
		Title:           "Competitor poaching your team",
		Description:     "A rival is courting your staff with better packages.",
		Type:            TypeEmployee,
		Severity:        SeverityLow,
		BaseProbability: 0.06,
		Trigger:         func(s sim.State) bool { return s.Employees > 3 },
		Responses: []Response{
			{ID: "shrug", Label: "Trust the team", Impacts: []Impact{
				{Metric: sim.MetricMorale, Amount: flat(-5)},
			}},
			{ID: "retention_bonus", Label: "Pay retention bonuses", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: func(s sim.State) float64 { return -1_000 * float64(s.Employees) }},
				{Metric: sim.MetricMorale, Amount: flat(8)},
			}},
		},
	},

	// ----- customer -----
	{
		ID:              "viral_complaint",
		Title:           "Complaint goes viral",
		Description:     "A customer's bad experience is trending on social media.",
		Type:            TypeCustomer,
		Severity:        SeverityHigh,
		Deadline:        1,
		BaseProbability: 0.05,
		Trigger:         func(s sim.State) bool { return s.CustomerSatisfaction < 60 },
		Responses: []Response{
			{ID: "silence", Label: "Say nothing", Impacts: []Impact{
				{Metric: sim.MetricReputation, Amount: flat(-12)},
				{Metric: sim.MetricCustomerCount, Amount: func(s sim.State) float64 { return -float64(s.CustomerCount) * 0.10 }},
			}},
			{ID: "public_apology", Label: "Apologize and compensate", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-3_000)},
				{Metric: sim.MetricReputation, Amount: flat(3)},
				{Metric: sim.MetricCustomerSatisfaction, Amount: flat(8)},
			}},
		},
	},
	{
		ID:              "big_client_offer",
		Title:           "Large client wants a contract",
		Description:     "A corporate buyer offers a volume contract at a discount.",
		Type:            TypeCustomer,
		Severity:        SeverityLow,
		Deadline:        2,
		BaseProbability: 0.08,
		Trigger:         func(s sim.State) bool { return s.Quality >= 60 },
		Responses: []Response{
			{ID: "decline", Label: "Decline politely", Impacts: []Impact{}},
			{ID: "sign", Label: "Sign the contract", Impacts: []Impact{
				{Metric: sim.MetricCustomerCount, Amount: flat(25)},
				{Metric: sim.MetricUtilization, Amount: flat(15)},
				{Metric: sim.MetricPrice, Amount: func(s sim.State) float64 { return -s.Price * 0.05 }},
			}},
		},
	},

	// ----- supplier -----
	{
		ID:              "supplier_price_hike",
		Title:           "Supplier raises prices",
		Description:     "Your main supplier announced a 12% price increase.",
		Type:            TypeSupplier,
		Severity:        SeverityMedium,
		BaseProbability: 0.08,
		Responses: []Response{
			{ID: "accept", Label: "Accept the increase", Impacts: []Impact{
				{Metric: sim.MetricExpenses, Amount: func(s sim.State) float64 { return s.Expenses * 0.05 }},
			}},
			{ID: "renegotiate", Label: "Renegotiate terms", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-1_500)},
				{Metric: sim.MetricPayables, Amount: func(s sim.State) float64 { return s.Payables * 0.10 }},
			}},
		},
	},
	{
		ID:              "supply_disruption",
		Title:           "Supply chain disruption",
		Description:     "A critical supplier halted deliveries without warning.",
		Type:            TypeCrisis,
		Severity:        SeverityCritical,
		Deadline:        1,
		BaseProbability: 0.03,
		Trigger:         func(s sim.State) bool { return s.Inventory < 20_000 },
		Responses: []Response{
			{ID: "run_down_stock", Label: "Run down inventory", Impacts: []Impact{
				{Metric: sim.MetricInventory, Amount: func(s sim.State) float64 { return -s.Inventory * 0.5 }},
				{Metric: sim.MetricUtilization, Amount: flat(-15)},
			}},
			{ID: "spot_buy", Label: "Buy on the spot market", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-10_000)},
				{Metric: sim.MetricInventory, Amount: flat(8_000)},
			}},
		},
	},

	// ----- crisis / technology / opportunity -----
	{
		ID:              "cashflow_crunch",
		Title:           "Cash flow crunch",
		Description:     "Two large customers are paying late at the same time.",
		Type:            TypeCrisis,
		Severity:        SeverityHigh,
		BaseProbability: 0.06,
		Trigger:         func(s sim.State) bool { return s.Cash < 10_000 },
		Responses: []Response{
			{ID: "stretch_payables", Label: "Delay your own payments", Impacts: []Impact{
				{Metric: sim.MetricPayables, Amount: flat(5_000)},
				{Metric: sim.MetricReputation, Amount: flat(-4)},
			}},
			{ID: "bridge_loan", Label: "Take a bridge loan", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(15_000)},
				{Metric: sim.MetricLoans, Amount: flat(15_000)},
				{Metric: sim.MetricLoanPayments, Amount: flat(450)},
			}},
		},
	},
	{
		ID:              "equipment_breakdown",
		Title:           "Equipment breakdown",
		Description:     "A production line went down; repairs will not be cheap.",
		Type:            TypeTechnology,
		Severity:        SeverityMedium,
		BaseProbability: 0.07,
		Trigger:         func(s sim.State) bool { return s.Equipment > 10_000 },
		Responses: []Response{
			{ID: "patch", Label: "Patch it up", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-2_000)},
				{Metric: sim.MetricUtilization, Amount: flat(-8)},
				{Metric: sim.MetricQuality, Amount: flat(-3)},
			}},
			{ID: "replace", Label: "Replace the line", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-18_000)},
				{Metric: sim.MetricEquipment, Amount: flat(15_000)},
				{Metric: sim.MetricQuality, Amount: flat(4)},
			}},
		},
	},
	{
		ID:              "automation_pitch",
		Title:           "Automation vendor pitch",
		Description:     "A vendor demoed software that could automate part of your back office.",
		Type:            TypeTechnology,
		Severity:        SeverityLow,
		BaseProbability: 0.06,
		Responses: []Response{
			{ID: "pass", Label: "Pass for now", Impacts: []Impact{}},
			{ID: "adopt", Label: "Adopt it", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-7_000)},
				{Metric: sim.MetricUtilization, Amount: flat(5)},
				{Metric: sim.MetricComplianceScore, Amount: flat(4)},
			}},
		},
	},
	{
		ID:              "expansion_grant_call",
		Title:           "Regional expansion grant call",
		Description:     "A regional development fund opened a call matching your profile.",
		Type:            TypeOpportunity,
		Severity:        SeverityLow,
		Deadline:        2,
		BaseProbability: 0.05,
		Trigger:         func(s sim.State) bool { return s.ComplianceScore >= 60 },
		Responses: []Response{
			{ID: "skip", Label: "Skip this round", Impacts: []Impact{}},
			{ID: "apply", Label: "Prepare an application", Impacts: []Impact{
				{Metric: sim.MetricCash, Amount: flat(-1_500)},
				{Metric: sim.MetricReputation, Amount: flat(2)},
			}},
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

func validateCatalog() error {
	seen := make(map[string]bool, len(catalog))
	for _, d := range catalog {
		if d.ID == "" || d.Title == "" {
			return fmt.Errorf("event catalog: entry missing id or title: %+v", d)
		}
		if seen[d.ID] {
			return fmt.Errorf("event catalog: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if !types[d.Type] {
			return fmt.Errorf("event catalog: %q has unknown type %q", d.ID, d.Type)
		}
		if d.Severity < SeverityLow || d.Severity > SeverityCritical {
			return fmt.Errorf("event catalog: %q has invalid severity %d", d.ID, d.Severity)
		}
		if d.BaseProbability < 0 || d.BaseProbability > 1 {
			return fmt.Errorf("event catalog: %q has probability %v outside [0,1]", d.ID, d.BaseProbability)
		}
		if d.Deadline < 0 {
			return fmt.Errorf("event catalog: %q has negative deadline", d.ID)
		}
		if len(d.Responses) == 0 {
			return fmt.Errorf("event catalog: %q declares no responses", d.ID)
		}
		respSeen := make(map[string]bool, len(d.Responses))
		for _, r := range d.Responses {
			if r.ID == "" || r.Label == "" {
				return fmt.Errorf("event catalog: %q has a response missing id or label", d.ID)
			}
			if respSeen[r.ID] {
				return fmt.Errorf("event catalog: %q has duplicate response %q", d.ID, r.ID)
			}
			respSeen[r.ID] = true
			for _, imp := range r.Impacts {
				if !sim.KnownMetric(imp.Metric) || imp.Amount == nil {
					return fmt.Errorf("event catalog: %q response %q has malformed impact", d.ID, r.ID)
				}
			}
		}
	}
	// Chain targets must exist; checked after the ID set is complete.
	for _, d := range catalog {
		for _, r := range d.Responses {
			for _, chained := range r.Chain {
				if !seen[chained] {
					return fmt.Errorf("event catalog: %q response %q chains unknown event %q", d.ID, r.ID, chained)
				}
			}
		}
	}
	return nil
}
