package sim

import (
	"math"

	"firma/internal/market"
)

// Operating cost per unit of installed capacity, per month. Covers
// rent, utilities and overheads that scale with plant size.
const fixedCostPerCapacity = 45.0

// Share of expenses assumed to carry deductible input VAT.
const deductibleExpenseShare = 0.6

// Metrics is the bundle Advance reports for the month it just
// simulated, plus the surviving recurring-impact ledger the caller must
// persist for the next month.
type Metrics struct {
	Revenue        float64           `json:"revenue"`
	Expenses       float64           `json:"expenses"`
	Profit         float64           `json:"profit"`
	Payroll        float64           `json:"payroll"`
	LoanPayment    float64           `json:"loan_payment"`
	TaxAccrued     float64           `json:"tax_accrued"`
	VATAccrued     float64           `json:"vat_accrued"`
	TaxSettled     float64           `json:"tax_settled"`
	VATSettled     float64           `json:"vat_settled"`
	SeasonalFactor float64           `json:"seasonal_factor"`
	Recurring      []RecurringImpact `json:"recurring,omitempty"`
}

// Advance moves the State forward by exactly one month and returns the
// next snapshot plus the month's metrics. It is fully deterministic:
// randomness lives in event selection and decision risks, not here.
// The State must be validated by the caller; see State.Validate.
func Advance(s State, recurring []RecurringImpact) (State, Metrics) {
	var m Metrics

	// Fold in the recurring ledger first. Revenue/expense entries act as
	// adjustments to this month's computed figures; everything else
	// lands on the State directly.
	var revenueAdj, expenseAdj float64
	for _, r := range recurring {
		if r.MonthsLeft <= 0 {
			continue
		}
		switch r.Metric {
		case MetricRevenue:
			revenueAdj += r.Delta
		case MetricExpenses:
			expenseAdj += r.Delta
		default:
			s = ApplyDelta(s, r.Metric, r.Delta)
		}
		next := r
		next.MonthsLeft--
		if next.MonthsLeft > 0 {
			m.Recurring = append(m.Recurring, next)
		}
	}

	rates := market.RatesFor(s.Year, s.Month)
	cycle := market.EconomicCycleImpact()
	season := market.SeasonalFactor(s.Month)
	m.SeasonalFactor = season

	// Demand-adjusted revenue: price times utilized volume, scaled by
	// season, cycle demand and market position.
	volume := s.Capacity * s.Utilization / 100
	shareFactor := 0.5 + s.MarketShare/100
	revenue := s.Price * volume * season * cycle.Demand * shareFactor
	revenue += revenueAdj
	if revenue < 0 {
		revenue = 0
	}

	// Expenses: payroll, capacity-scaled fixed costs, debt service and
	// compliance drag when risk runs hot.
	payroll := rates.EmployerCost(s.AverageSalary) * float64(s.Employees)
	fixed := s.Capacity * fixedCostPerCapacity
	loanPayment := s.LoanPayments
	if loanPayment > s.Loans {
		loanPayment = s.Loans
	}
	var complianceCost float64
	if s.AuditRisk > 70 {
		complianceCost += revenue * 0.02
	}
	if s.PenaltiesRisk > 60 {
		complianceCost += revenue * 0.01
	}
	expenses := payroll + fixed + loanPayment + complianceCost + expenseAdj
	if expenses < 0 {
		expenses = 0
	}

	profit := revenue - expenses

	// Industry margin band bounds the implied profit: margins above the
	// band's ceiling get competed away as extra cost.
	band := market.IndustryMargin(s.Industry)
	if revenue > 0 && profit > revenue*band.High/100 {
		capped := revenue * band.High / 100
		expenses += profit - capped
		profit = capped
	}

	// Tax accrual via the market model, settlement on a fixed cadence:
	// VAT monthly, profit tax at quarter end.
	taxDue := rates.CorporateTax(revenue, profit, s.HasEmployees, s.IsMicro)
	outputVAT := rates.VATAt(revenue, false)
	inputVAT := rates.VATAt(expenses*deductibleExpenseShare, false)
	vatDue := outputVAT - inputVAT
	m.TaxAccrued = taxDue
	m.VATAccrued = vatDue

	s.TaxOwed += taxDue
	s.VATBalance += vatDue

	cash := s.Cash + profit
	if s.VATBalance > 0 {
		m.VATSettled = s.VATBalance
		cash -= s.VATBalance
		s.VATBalance = 0
	}
	if s.Month%3 == 0 && s.TaxOwed > 0 {
		m.TaxSettled = s.TaxOwed
		cash -= s.TaxOwed
		s.TaxOwed = 0
	}
	s.Cash = cash

	// Amortize debt.
	if loanPayment > 0 {
		s.Loans -= loanPayment * 0.7 // rest is interest
		if s.Loans <= 0 {
			s.Loans = 0
			s.LoanPayments = 0
		}
	}

	s.Revenue = revenue
	s.Expenses = expenses
	s.Profit = profit

	s = driftSoftMetrics(s, profit, revenue)
	s = driftMarket(s, cycle)
	s = driftCompliance(s)

	m.Revenue = revenue
	m.Expenses = expenses
	m.Profit = profit
	m.Payroll = payroll
	m.LoanPayment = loanPayment

	// Calendar step, December wraps into January of the next year.
	s.Month++
	if s.Month > 12 {
		s.Month = 1
		s.Year++
	}
	s.HasEmployees = s.Employees > 0
	return s, m
}

// driftSoftMetrics moves quality, morale and satisfaction a tenth of
// the way toward the targets implied by workload and profitability.
func driftSoftMetrics(s State, profit, revenue float64) State {
	qualityTarget := 85.0
	if s.Utilization > 90 {
		qualityTarget = 70 // running hot wears output quality down
	}
	moraleTarget := 70.0
	switch {
	case s.Utilization > 95:
		moraleTarget = 45
	case profit < 0:
		moraleTarget = 55
	case profit > 0 && revenue > 0 && profit/revenue > 0.15:
		moraleTarget = 85
	}
	satisfactionTarget := s.Quality
	if s.BasePrice > 0 && s.Price/s.BasePrice > 1.2 {
		satisfactionTarget -= 15
	}

	s.Quality = clampPct(s.Quality + (qualityTarget-s.Quality)*0.1)
	s.Morale = clampPct(s.Morale + (moraleTarget-s.Morale)*0.1)
	s.CustomerSatisfaction = clampPct(s.CustomerSatisfaction + (satisfactionTarget-s.CustomerSatisfaction)*0.1)
	s.Reputation = clampPct(s.Reputation + ((s.Quality+s.CustomerSatisfaction)/2-s.Reputation)*0.05)
	return s
}

// driftMarket adjusts share and customer count from reputation and the
// cycle's demand pull.
func driftMarket(s State, cycle market.CycleImpact) State {
	shareDrift := (s.Reputation - 50) / 500 * cycle.Growth
	s.MarketShare = clampPct(s.MarketShare + shareDrift)

	growth := (cycle.Demand - 1) + (s.Reputation-50)/500
	delta := int(math.Round(float64(s.CustomerCount) * growth))
	s.CustomerCount += delta
	if s.CustomerCount < 0 {
		s.CustomerCount = 0
	}
	return s
}

// driftCompliance decays risk when obligations are current and grows it
// when tax debt piles up relative to revenue.
func driftCompliance(s State) State {
	if s.Revenue > 0 && s.TaxOwed > s.Revenue*0.5 {
		s.AuditRisk = clampPct(s.AuditRisk + 2)
		s.ComplianceScore = clampPct(s.ComplianceScore - 1)
	} else {
		s.AuditRisk = clampPct(s.AuditRisk - 0.5)
		s.PenaltiesRisk = clampPct(s.PenaltiesRisk - 0.5)
		s.ComplianceScore = clampPct(s.ComplianceScore + 0.5)
	}
	return s
}
