package service

import (
	"sort"

	"github.com/mkelleher/territory-console-go/internal/domain"
)

// SalesAggregator folds raw sales rows into per-customer and
// per-territory rollups for a two-year comparison window. It is a pure
// computation: no I/O, no clock, no shared state.
//
// Revenue buckets: current-year YTD, prior-year YTD and prior-year FULL.
// Amounts only ever sum within their own (year, comparison_type) group.
// Business-unit breakdowns come exclusively from FULL prior-year rows so
// a partial-year figure is never presented as an annual one.
type SalesAggregator struct {
	CurrentYear int
	PriorYear   int
}

// Aggregate builds the report. customers enriches per-customer rollups
// with account number and classification. territoryCounts carries the
// per-territory account totals from the store's count query; keeping it
// separate from the sales rows means an account with no sales still
// counts toward its territory.
func (a SalesAggregator) Aggregate(records []domain.SalesRecord, customers []domain.Customer, territoryCounts map[string]int) domain.SalesReport {
	byCustomer := map[string]*domain.CustomerRollup{}
	byTerritory := map[string]*domain.TerritoryRollup{}

	customerRollup := func(r domain.SalesRecord) *domain.CustomerRollup {
		cr, ok := byCustomer[r.CustomerID]
		if !ok {
			cr = &domain.CustomerRollup{
				CustomerID:    r.CustomerID,
				CustomerName:  r.CustomerName,
				Territory:     r.Territory,
				BusinessUnits: map[string]float64{},
			}
			byCustomer[r.CustomerID] = cr
		}
		return cr
	}
	territoryRollup := func(name string) *domain.TerritoryRollup {
		tr, ok := byTerritory[name]
		if !ok {
			tr = &domain.TerritoryRollup{
				Territory:     name,
				BusinessUnits: map[string]float64{},
			}
			byTerritory[name] = tr
		}
		return tr
	}

	for _, r := range records {
		bucket := a.bucketOf(r)
		if bucket == bucketNone {
			continue
		}

		cr := customerRollup(r)
		var tr *domain.TerritoryRollup
		if r.Territory != "" {
			tr = territoryRollup(r.Territory)
		}

		switch bucket {
		case bucketCurrentYTD:
			cr.RevenueCurrentYTD += r.SalesAmount
			if tr != nil {
				tr.RevenueCurrentYTD += r.SalesAmount
			}
		case bucketPriorYTD:
			cr.RevenuePriorYTD += r.SalesAmount
			if tr != nil {
				tr.RevenuePriorYTD += r.SalesAmount
			}
		case bucketPriorFull:
			cr.RevenuePriorFull += r.SalesAmount
			cr.BusinessUnits[r.Category] += r.SalesAmount
			if tr != nil {
				tr.RevenuePriorFull += r.SalesAmount
				tr.BusinessUnits[r.Category] += r.SalesAmount
			}
		}
	}

	// Enrich from the account list.
	for _, c := range customers {
		if cr, ok := byCustomer[c.CustomerID]; ok {
			cr.AccountNumber = c.AccountNumber
			cr.Classification = c.AccountClassification
			if cr.CustomerName == "" {
				cr.CustomerName = c.CustomerName
			}
			if cr.Territory == "" {
				cr.Territory = c.Territory
			}
		}
	}

	// Apply the counted totals, materializing a rollup for territories
	// whose accounts have no sales rows at all.
	for territory, n := range territoryCounts {
		territoryRollup(territory).CustomerCount = n
	}

	report := domain.SalesReport{
		CurrentYear:  a.CurrentYear,
		PriorYear:    a.PriorYear,
		PerCustomer:  make([]domain.CustomerRollup, 0, len(byCustomer)),
		PerTerritory: make([]domain.TerritoryRollup, 0, len(byTerritory)),
	}

	for _, cr := range byCustomer {
		cr.ChangePercent = changePercent(cr.RevenueCurrentYTD, cr.RevenuePriorYTD)
		report.PerCustomer = append(report.PerCustomer, *cr)
	}
	for _, tr := range byTerritory {
		tr.ChangePercent = changePercent(tr.RevenueCurrentYTD, tr.RevenuePriorYTD)
		report.PerTerritory = append(report.PerTerritory, *tr)
	}

	// Highest current-year revenue first. Stable so equal-revenue rows
	// keep a deterministic order; tie-break on name for map iteration.
	sort.SliceStable(report.PerCustomer, func(i, j int) bool {
		a, b := report.PerCustomer[i], report.PerCustomer[j]
		if a.RevenueCurrentYTD != b.RevenueCurrentYTD {
			return a.RevenueCurrentYTD > b.RevenueCurrentYTD
		}
		return a.CustomerName < b.CustomerName
	})
	sort.SliceStable(report.PerTerritory, func(i, j int) bool {
		a, b := report.PerTerritory[i], report.PerTerritory[j]
		if a.RevenueCurrentYTD != b.RevenueCurrentYTD {
			return a.RevenueCurrentYTD > b.RevenueCurrentYTD
		}
		return a.Territory < b.Territory
	})

	return report
}

type bucket int

const (
	bucketNone bucket = iota
	bucketCurrentYTD
	bucketPriorYTD
	bucketPriorFull
)

func (a SalesAggregator) bucketOf(r domain.SalesRecord) bucket {
	switch {
	case r.Year == a.CurrentYear && r.ComparisonType == domain.ComparisonYTD:
		return bucketCurrentYTD
	case r.Year == a.PriorYear && r.ComparisonType == domain.ComparisonYTD:
		return bucketPriorYTD
	case r.Year == a.PriorYear && r.ComparisonType == domain.ComparisonFull:
		return bucketPriorFull
	}
	return bucketNone
}

// changePercent saturates to 0 when there is no prior-year base rather
// than reporting an infinite growth rate.
func changePercent(current, prior float64) float64 {
	if prior == 0 {
		return 0
	}
	return (current - prior) / prior * 100
}
