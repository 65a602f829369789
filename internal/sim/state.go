// Package sim is the core of the company simulation: the immutable
// State snapshot, the monthly progression engine and health scoring.
// Everything in this package is a pure function over value types; the
// service layer owns persistence, history and randomness seeding.
package sim

import (
	"errors"
	"fmt"

	"firma/internal/market"
)

var (
	// ErrContractViolation marks an out-of-domain State or malformed
	// input handed to the engine. It is a caller bug, never silently
	// repaired.
	ErrContractViolation = errors.New("contract violation")
)

// State is one company's snapshot for one simulated month. Transitions
// return a new value; nothing here is mutated in place.
type State struct {
	// Financial
	Cash         float64 `json:"cash"`
	Revenue      float64 `json:"revenue"`
	Expenses     float64 `json:"expenses"`
	Profit       float64 `json:"profit"`
	Receivables  float64 `json:"receivables"`
	Payables     float64 `json:"payables"`
	Inventory    float64 `json:"inventory"`
	Equipment    float64 `json:"equipment"`
	Loans        float64 `json:"loans"`
	LoanPayments float64 `json:"loan_payments"`

	// Operations
	Employees     int     `json:"employees"`
	AverageSalary float64 `json:"average_salary"`
	Capacity      float64 `json:"capacity"`
	Utilization   float64 `json:"utilization"`
	Quality       float64 `json:"quality"`
	Morale        float64 `json:"morale"`

	// Market
	Price                float64 `json:"price"`
	BasePrice            float64 `json:"base_price"`
	MarketSize           float64 `json:"market_size"`
	MarketShare          float64 `json:"market_share"`
	CustomerCount        int     `json:"customer_count"`
	Reputation           float64 `json:"reputation"`
	CustomerSatisfaction float64 `json:"customer_satisfaction"`

	// Compliance
	TaxOwed         float64 `json:"tax_owed"`
	VATBalance      float64 `json:"vat_balance"`
	PenaltiesRisk   float64 `json:"penalties_risk"`
	AuditRisk       float64 `json:"audit_risk"`
	ComplianceScore float64 `json:"compliance_score"`

	// Meta
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	Industry     string `json:"industry"`
	IsMicro      bool   `json:"is_micro"`
	HasEmployees bool   `json:"has_employees"`
}

// Metric names a State field that impacts can adjust. The closed set
// keeps decision and event effects statically checkable.
type Metric string

const (
	MetricCash                 Metric = "cash"
	MetricRevenue              Metric = "revenue"
	MetricExpenses             Metric = "expenses"
	MetricReceivables          Metric = "receivables"
	MetricPayables             Metric = "payables"
	MetricInventory            Metric = "inventory"
	MetricEquipment            Metric = "equipment"
	MetricLoans                Metric = "loans"
	MetricLoanPayments         Metric = "loan_payments"
	MetricEmployees            Metric = "employees"
	MetricAverageSalary        Metric = "average_salary"
	MetricCapacity             Metric = "capacity"
	MetricUtilization          Metric = "utilization"
	MetricQuality              Metric = "quality"
	MetricMorale               Metric = "morale"
	MetricPrice                Metric = "price"
	MetricMarketSize           Metric = "market_size"
	MetricMarketShare          Metric = "market_share"
	MetricCustomerCount        Metric = "customer_count"
	MetricReputation           Metric = "reputation"
	MetricCustomerSatisfaction Metric = "customer_satisfaction"
	MetricTaxOwed              Metric = "tax_owed"
	MetricVATBalance           Metric = "vat_balance"
	MetricPenaltiesRisk        Metric = "penalties_risk"
	MetricAuditRisk            Metric = "audit_risk"
	MetricComplianceScore      Metric = "compliance_score"
)

// KnownMetric reports whether m is part of the closed metric set.
func KnownMetric(m Metric) bool {
	switch m {
	case MetricCash, MetricRevenue, MetricExpenses, MetricReceivables,
		MetricPayables, MetricInventory, MetricEquipment, MetricLoans,
		MetricLoanPayments, MetricEmployees, MetricAverageSalary,
		MetricCapacity, MetricUtilization, MetricQuality, MetricMorale,
		MetricPrice, MetricMarketSize, MetricMarketShare,
		MetricCustomerCount, MetricReputation, MetricCustomerSatisfaction,
		MetricTaxOwed, MetricVATBalance, MetricPenaltiesRisk,
		MetricAuditRisk, MetricComplianceScore:
		return true
	}
	return false
}

// RecurringImpact is a monthly adjustment registered by a decision and
// folded in by Advance until MonthsLeft runs out. The service layer
// persists the ledger alongside the State.
type RecurringImpact struct {
	Source     string  `json:"source"`
	Metric     Metric  `json:"metric"`
	Delta      float64 `json:"delta"`
	MonthsLeft int     `json:"months_left"`
}

// Delta is one applied metric adjustment, reported back to callers so
// impacts can be persisted and shown to the player.
type Delta struct {
	Metric Metric  `json:"metric"`
	Amount float64 `json:"amount"`
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ApplyDelta returns s with one metric adjusted. Bounded fields are
// clamped to their interval, populations floored at zero; that is
// normal in-domain behavior, not an error.
func ApplyDelta(s State, m Metric, delta float64) State {
	switch m {
	case MetricCash:
		s.Cash += delta
	case MetricRevenue:
		s.Revenue += delta
	case MetricExpenses:
		s.Expenses += delta
	case MetricReceivables:
		s.Receivables += delta
	case MetricPayables:
		s.Payables += delta
	case MetricInventory:
		s.Inventory += delta
		if s.Inventory < 0 {
			s.Inventory = 0
		}
	case MetricEquipment:
		s.Equipment += delta
		if s.Equipment < 0 {
			s.Equipment = 0
		}
	case MetricLoans:
		s.Loans += delta
		if s.Loans < 0 {
			s.Loans = 0
		}
	case MetricLoanPayments:
		s.LoanPayments += delta
		if s.LoanPayments < 0 {
			s.LoanPayments = 0
		}
	case MetricEmployees:
		s.Employees += int(delta)
		if s.Employees < 0 {
			s.Employees = 0
		}
		s.HasEmployees = s.Employees > 0
	case MetricAverageSalary:
		s.AverageSalary += delta
		if s.AverageSalary < 0 {
			s.AverageSalary = 0
		}
	case MetricCapacity:
		s.Capacity += delta
		if s.Capacity < 0 {
			s.Capacity = 0
		}
	case MetricUtilization:
		s.Utilization = clampPct(s.Utilization + delta)
	case MetricQuality:
		s.Quality = clampPct(s.Quality + delta)
	case MetricMorale:
		s.Morale = clampPct(s.Morale + delta)
	case MetricPrice:
		s.Price += delta
		if s.Price < 0 {
			s.Price = 0
		}
	case MetricMarketSize:
		s.MarketSize += delta
		if s.MarketSize < 0 {
			s.MarketSize = 0
		}
	case MetricMarketShare:
		s.MarketShare = clampPct(s.MarketShare + delta)
	case MetricCustomerCount:
		s.CustomerCount += int(delta)
		if s.CustomerCount < 0 {
			s.CustomerCount = 0
		}
	case MetricReputation:
		s.Reputation = clampPct(s.Reputation + delta)
	case MetricCustomerSatisfaction:
		s.CustomerSatisfaction = clampPct(s.CustomerSatisfaction + delta)
	case MetricTaxOwed:
		s.TaxOwed += delta
		if s.TaxOwed < 0 {
			s.TaxOwed = 0
		}
	case MetricVATBalance:
		s.VATBalance += delta
	case MetricPenaltiesRisk:
		s.PenaltiesRisk = clampPct(s.PenaltiesRisk + delta)
	case MetricAuditRisk:
		s.AuditRisk = clampPct(s.AuditRisk + delta)
	case MetricComplianceScore:
		s.ComplianceScore = clampPct(s.ComplianceScore + delta)
	}
	return s
}

// Validate checks the State is in-domain. Engine entry points expect a
// validated State; a failure here is a caller bug.
func (s State) Validate() error {
	if s.Month < 1 || s.Month > 12 {
		return fmt.Errorf("%w: month %d outside 1..12", ErrContractViolation, s.Month)
	}
	if s.Employees < 0 {
		return fmt.Errorf("%w: negative employees %d", ErrContractViolation, s.Employees)
	}
	if s.CustomerCount < 0 {
		return fmt.Errorf("%w: negative customer count %d", ErrContractViolation, s.CustomerCount)
	}
	if s.Capacity < 0 {
		return fmt.Errorf("%w: negative capacity %v", ErrContractViolation, s.Capacity)
	}
	for _, b := range []struct {
		name string
		v    float64
	}{
		{"utilization", s.Utilization},
		{"quality", s.Quality},
		{"morale", s.Morale},
		{"market_share", s.MarketShare},
		{"reputation", s.Reputation},
		{"customer_satisfaction", s.CustomerSatisfaction},
		{"compliance_score", s.ComplianceScore},
		{"penalties_risk", s.PenaltiesRisk},
		{"audit_risk", s.AuditRisk},
	} {
		if b.v < 0 || b.v > 100 {
			return fmt.Errorf("%w: %s %v outside 0..100", ErrContractViolation, b.name, b.v)
		}
	}
	return nil
}

// Bounded reports whether every bounded field sits inside its interval
// and populations are non-negative. Used by tests and sweep checks.
func (s State) Bounded() bool {
	return s.Validate() == nil
}

// NewGameState seeds the starting snapshot for a fresh company from
// the industry's starting scenario, anchored at the given calendar
// month. Morale, reputation and compliance start at the same baseline
// everywhere; the balance sheet and market position come from the
// template.
func NewGameState(industry string, year, month int) State {
	rs := market.RatesFor(year, month)
	sc := market.StartingScenario(industry)
	return State{
		Cash:                 sc.Cash,
		Inventory:            sc.Inventory,
		Equipment:            sc.Equipment,
		Employees:            1,
		AverageSalary:        rs.MinimumWage,
		Capacity:             sc.Capacity,
		Utilization:          sc.Utilization,
		Quality:              sc.Quality,
		Morale:               70,
		Price:                sc.Price,
		BasePrice:            sc.Price,
		MarketSize:           sc.MarketSize,
		MarketShare:          sc.MarketShare,
		CustomerCount:        sc.CustomerCount,
		Reputation:           50,
		CustomerSatisfaction: 70,
		AuditRisk:            5,
		ComplianceScore:      80,
		Month:                month,
		Year:                 year,
		Industry:             industry,
		IsMicro:              true,
		HasEmployees:         true,
	}
}
