// Package analytics computes the dashboard aggregates over a filtered
// service-order collection. Every function is pure and safe for concurrent
// use.
package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/hercules-motores/service-analytics/internal/dates"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

type KPIs struct {
	TotalOrders        int     `json:"totalOrders"`
	AvgServiceTime     int     `json:"avgServiceTime"`
	AvgProductLifetime int     `json:"avgProductLifetime"`
	WarrantyPercentage float64 `json:"warrantyPercentage"`
}

// ComputeKPIs summarizes list. Orders missing a date needed by an average
// are left out of that average rather than counted as zero.
func ComputeKPIs(list []orders.ServiceOrder) KPIs {
	var service, lifetime mean
	warranty := 0
	for _, o := range list {
		if days, ok := serviceDays(o); ok {
			service.add(days)
		}
		made, okMade := o.Date(orders.FieldManufactureDate)
		opened, okOpened := o.Date(orders.FieldOpeningDate)
		if okMade && okOpened {
			lifetime.add(dates.DaysBetween(made, opened))
		}
		if o.Get(orders.FieldPurpose) == orders.PurposeWarranty {
			warranty++
		}
	}

	return KPIs{
		TotalOrders:        len(list),
		AvgServiceTime:     service.rounded(),
		AvgProductLifetime: lifetime.rounded(),
		WarrantyPercentage: percentage(warranty, len(list)),
	}
}

// serviceDays is the distance between opening and closing in whole days.
// Closing dates recorded before the opening still count by magnitude.
func serviceDays(o orders.ServiceOrder) (int, bool) {
	opened, ok := o.Date(orders.FieldOpeningDate)
	if !ok {
		return 0, false
	}
	closed, ok := o.Date(orders.FieldClosingDate)
	if !ok {
		return 0, false
	}
	return dates.DaysBetween(opened, closed), true
}

type mean struct {
	sum   int
	count int
}

func (m *mean) add(v int) {
	m.sum += v
	m.count++
}

func (m mean) rounded() int {
	if m.count == 0 {
		return 0
	}
	return int(math.Round(float64(m.sum) / float64(m.count)))
}

// percentage is 100*part/total rounded to two decimals; 0 when total is 0.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}
