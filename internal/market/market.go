// Package market holds the Romanian market reference data the simulation
// runs against: tax and contribution rates versioned by effective date,
// seasonal demand factors, industry margin bands and the economic cycle
// table. Everything here is constant data plus pure formula functions.
package market

import "time"

// Industry keys supported by the simulation. Unknown keys fall back to
// the generic margin band.
const (
	IndustryTech          = "tech"
	IndustryRetail        = "retail"
	IndustryManufacturing = "manufacturing"
	IndustryServices      = "services"
	IndustryAgriculture   = "agriculture"
	IndustryConstruction  = "construction"
	IndustryHoreca        = "horeca"
)

// RateSet is one snapshot of the fiscal parameters, valid from
// EffectiveFrom until superseded by a later entry in the schedule.
type RateSet struct {
	EffectiveFrom time.Time

	VATStandard float64
	VATReduced  float64

	// Payroll contributions: CAS (pension) and CASS (health) are withheld
	// from gross, income tax applies to the remainder, CAM is paid on top
	// by the employer.
	CASRate       float64
	CASSRate      float64
	IncomeTaxRate float64
	EmployerCAM   float64

	MicroTaxWithEmployees float64
	MicroTaxNoEmployees   float64
	CorporateTaxRate      float64

	MinimumWage float64
}

// rateSchedule is ordered by EffectiveFrom ascending. The August 2025
// entry carries the legislated VAT increase (19->21 standard, 9->11
// reduced).
var rateSchedule = []RateSet{
	{
		EffectiveFrom:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		VATStandard:           0.19,
		VATReduced:            0.09,
		CASRate:               0.25,
		CASSRate:              0.10,
		IncomeTaxRate:         0.10,
		EmployerCAM:           0.0225,
		MicroTaxWithEmployees: 0.01,
		MicroTaxNoEmployees:   0.03,
		CorporateTaxRate:      0.16,
		MinimumWage:           4050,
	},
	{
		EffectiveFrom:         time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
		VATStandard:           0.21,
		VATReduced:            0.11,
		CASRate:               0.25,
		CASSRate:              0.10,
		IncomeTaxRate:         0.10,
		EmployerCAM:           0.0225,
		MicroTaxWithEmployees: 0.01,
		MicroTaxNoEmployees:   0.03,
		CorporateTaxRate:      0.16,
		MinimumWage:           4050,
	},
}

// Rates returns the rate set in force at the given date. Dates before
// the first schedule entry get the first entry.
func Rates(at time.Time) RateSet {
	active := rateSchedule[0]
	for _, rs := range rateSchedule[1:] {
		if !at.Before(rs.EffectiveFrom) {
			active = rs
		}
	}
	return active
}

// RatesFor maps a simulated (year, month) to the rate set in force for
// that month.
func RatesFor(year, month int) RateSet {
	return Rates(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
}

// EmployerCost is the full monthly cost of one employee at the given
// gross salary: gross plus the employer contribution (CAM).
func (r RateSet) EmployerCost(grossSalary float64) float64 {
	return grossSalary * (1 + r.EmployerCAM)
}

// NetSalary is what the employee takes home: gross minus CAS and CASS,
// minus income tax on the remainder.
func (r RateSet) NetSalary(grossSalary float64) float64 {
	afterContrib := grossSalary * (1 - r.CASRate - r.CASSRate)
	return afterContrib * (1 - r.IncomeTaxRate)
}

// VAT computes the value-added tax on amount. postRateChange selects the
// post-increase schedule regardless of the receiver's effective date, so
// callers can quote both regimes.
func VAT(amount float64, reduced, postRateChange bool) float64 {
	rs := rateSchedule[0]
	if postRateChange {
		rs = rateSchedule[len(rateSchedule)-1]
	}
	if reduced {
		return amount * rs.VATReduced
	}
	return amount * rs.VATStandard
}

// VATAt computes VAT using this rate set.
func (r RateSet) VATAt(amount float64, reduced bool) float64 {
	if reduced {
		return amount * r.VATReduced
	}
	return amount * r.VATStandard
}

// CorporateTax returns the monthly corporate tax obligation. The
// micro-enterprise regime taxes revenue at a flat rate (lower with
// employees); the standard regime taxes positive profit.
func (r RateSet) CorporateTax(revenue, profit float64, hasEmployees, isMicro bool) float64 {
	if isMicro {
		if hasEmployees {
			return revenue * r.MicroTaxWithEmployees
		}
		return revenue * r.MicroTaxNoEmployees
	}
	if profit <= 0 {
		return 0
	}
	return profit * r.CorporateTaxRate
}

// seasonalFactors indexes demand by calendar month. December peaks,
// the summer holiday months dip.
var seasonalFactors = map[int]float64{
	1:  0.85,
	2:  0.90,
	3:  1.00,
	4:  1.00,
	5:  1.05,
	6:  1.00,
	7:  0.90,
	8:  0.85,
	9:  1.05,
	10: 1.10,
	11: 1.10,
	12: 1.30,
}

// SeasonalFactor returns the demand multiplier for a calendar month,
// 1.0 for anything outside 1..12.
func SeasonalFactor(month int) float64 {
	if f, ok := seasonalFactors[month]; ok {
		return f
	}
	return 1.0
}

// MarginBand is the profit-margin range observed for an industry, in
// percent of revenue.
type MarginBand struct {
	Low     float64
	High    float64
	Typical float64
}

var industryMargins = map[string]MarginBand{
	IndustryTech:          {Low: 10, High: 40, Typical: 22},
	IndustryRetail:        {Low: 2, High: 12, Typical: 5},
	IndustryManufacturing: {Low: 5, High: 18, Typical: 10},
	IndustryServices:      {Low: 8, High: 30, Typical: 15},
	IndustryAgriculture:   {Low: 3, High: 15, Typical: 8},
	IndustryConstruction:  {Low: 4, High: 16, Typical: 9},
	IndustryHoreca:        {Low: 3, High: 14, Typical: 7},
}

// genericMargin backs unknown industry keys.
var genericMargin = MarginBand{Low: 5, High: 20, Typical: 10}

// IndustryMargin returns the margin band for an industry, with a
// generic fallback for unknown keys.
func IndustryMargin(industry string) MarginBand {
	if b, ok := industryMargins[industry]; ok {
		return b
	}
	return genericMargin
}

// KnownIndustry reports whether the key has a dedicated margin band.
func KnownIndustry(industry string) bool {
	_, ok := industryMargins[industry]
	return ok
}

// CycleImpact carries the economic-cycle multipliers applied to growth
// and demand.
type CycleImpact struct {
	Growth float64
	Demand float64
}

type cyclePhase struct {
	name   string
	impact CycleImpact
}

var cyclePhases = []cyclePhase{
	{name: "expansion", impact: CycleImpact{Growth: 1.04, Demand: 1.05}},
	{name: "peak", impact: CycleImpact{Growth: 1.01, Demand: 1.02}},
	{name: "contraction", impact: CycleImpact{Growth: 0.97, Demand: 0.93}},
	{name: "recovery", impact: CycleImpact{Growth: 1.02, Demand: 1.00}},
}

// currentPhase is the phase the model is parameterized for. The table
// above stays so a later data refresh only has to flip this index.
const currentPhase = 0

// EconomicCycleImpact returns the growth/demand multipliers for the
// model's current cycle phase.
func EconomicCycleImpact() CycleImpact {
	return cyclePhases[currentPhase].impact
}

// CyclePhaseName names the current phase, for reporting.
func CyclePhaseName() string {
	return cyclePhases[currentPhase].name
}

// inflationProjection is the modeled annual CPI path.
var inflationProjection = map[int]float64{
	2024: 0.055,
	2025: 0.046,
	2026: 0.035,
	2027: 0.030,
}

// InflationRate returns the projected annual inflation for a year,
// defaulting to the long-run target for years outside the table.
func InflationRate(year int) float64 {
	if r, ok := inflationProjection[year]; ok {
		return r
	}
	return 0.025
}

// LendingRate is the modeled annual interest rate on business credit.
func LendingRate() float64 {
	return 0.085
}
