package market

import "fmt"

// Scenario is the starting template for one industry: the opening
// balance sheet and market position a new company is seeded from.
type Scenario struct {
	Name          string
	Description   string
	Cash          float64
	Inventory     float64
	Equipment     float64
	Capacity      float64
	Utilization   float64
	Quality       float64
	Price         float64
	MarketSize    float64
	MarketShare   float64
	CustomerCount int
}

// industryScenarios seeds new games. Capital-heavy industries start
// with more equipment and less cash; volume industries start with more
// customers at a lower ticket.
var industryScenarios = map[string]Scenario{
	IndustryTech: {
		Name:          "Software studio",
		Description:   "A small product studio with almost no stock and a high ticket.",
		Cash:          60_000,
		Inventory:     2_000,
		Equipment:     30_000,
		Capacity:      80,
		Utilization:   45,
		Quality:       85,
		Price:         250,
		MarketSize:    2_000_000,
		MarketShare:   0.05,
		CustomerCount: 4,
	},
	IndustryRetail: {
		Name:          "Neighborhood shop",
		Description:   "A stocked storefront living on volume and thin margins.",
		Cash:          40_000,
		Inventory:     35_000,
		Equipment:     15_000,
		Capacity:      120,
		Utilization:   55,
		Quality:       75,
		Price:         45,
		MarketSize:    1_500_000,
		MarketShare:   0.15,
		CustomerCount: 120,
	},
	IndustryManufacturing: {
		Name:          "Workshop",
		Description:   "A small production line with heavy equipment and few clients.",
		Cash:          55_000,
		Inventory:     25_000,
		Equipment:     80_000,
		Capacity:      150,
		Utilization:   60,
		Quality:       78,
		Price:         90,
		MarketSize:    1_200_000,
		MarketShare:   0.10,
		CustomerCount: 8,
	},
	IndustryServices: {
		Name:          "Consultancy",
		Description:   "A general services firm with a balanced starting position.",
		Cash:          50_000,
		Inventory:     10_000,
		Equipment:     25_000,
		Capacity:      100,
		Utilization:   50,
		Quality:       80,
		Price:         100,
		MarketSize:    1_000_000,
		MarketShare:   0.10,
		CustomerCount: 10,
	},
	IndustryAgriculture: {
		Name:          "Family farm",
		Description:   "Land and machinery, modest cash, strongly seasonal demand.",
		Cash:          35_000,
		Inventory:     30_000,
		Equipment:     60_000,
		Capacity:      130,
		Utilization:   50,
		Quality:       70,
		Price:         35,
		MarketSize:    800_000,
		MarketShare:   0.20,
		CustomerCount: 15,
	},
	IndustryConstruction: {
		Name:          "Building crew",
		Description:   "Equipment-heavy contracting with a handful of large clients.",
		Cash:          45_000,
		Inventory:     20_000,
		Equipment:     70_000,
		Capacity:      110,
		Utilization:   55,
		Quality:       75,
		Price:         150,
		MarketSize:    900_000,
		MarketShare:   0.08,
		CustomerCount: 5,
	},
	IndustryHoreca: {
		Name:          "Bistro",
		Description:   "A small venue with many low-ticket customers and daily stock.",
		Cash:          30_000,
		Inventory:     12_000,
		Equipment:     40_000,
		Capacity:      90,
		Utilization:   60,
		Quality:       75,
		Price:         30,
		MarketSize:    600_000,
		MarketShare:   0.12,
		CustomerCount: 200,
	},
}

// StartingScenario returns the template for an industry. Unknown keys
// get the services template, mirroring the generic margin fallback.
func StartingScenario(industry string) Scenario {
	if sc, ok := industryScenarios[industry]; ok {
		return sc
	}
	return industryScenarios[IndustryServices]
}

func init() {
	if err := validateScenarios(); err != nil {
		panic(err)
	}
}

func validateScenarios() error {
	for industry := range industryMargins {
		if _, ok := industryScenarios[industry]; !ok {
			return fmt.Errorf("industry %q has no starting scenario", industry)
		}
	}
	for industry, sc := range industryScenarios {
		if !KnownIndustry(industry) {
			return fmt.Errorf("scenario for unknown industry %q", industry)
		}
		if sc.Name == "" || sc.Description == "" {
			return fmt.Errorf("scenario %q missing name or description", industry)
		}
		if sc.Cash <= 0 || sc.Equipment <= 0 || sc.Capacity <= 0 || sc.Price <= 0 || sc.MarketSize <= 0 {
			return fmt.Errorf("scenario %q has a non-positive starting figure", industry)
		}
		if sc.Inventory < 0 || sc.CustomerCount <= 0 {
			return fmt.Errorf("scenario %q has an invalid stock or customer count", industry)
		}
		if sc.Utilization <= 0 || sc.Utilization > 100 || sc.Quality <= 0 || sc.Quality > 100 {
			return fmt.Errorf("scenario %q has an out-of-range percentage", industry)
		}
		if sc.MarketShare <= 0 || sc.MarketShare > 100 {
			return fmt.Errorf("scenario %q has an out-of-range market share", industry)
		}
	}
	return nil
}
