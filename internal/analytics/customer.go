package analytics

import (
	"sort"
	"strings"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

// RecentVisitCount is how many orders a customer summary lists.
const RecentVisitCount = 5

type Visit struct {
	OrderID     string `json:"orderId"`
	OpeningDate string `json:"openingDate"`
	Defect      string `json:"defect"`
	Status      string `json:"status"`
}

// CustomerSummary prepares a visit to one reseller.
type CustomerSummary struct {
	Reseller       string  `json:"reseller"`
	TotalOS        int     `json:"totalOS"`
	ActiveOS       int     `json:"activeOS"`
	LastVisit      string  `json:"lastVisit"`
	MainAuthorized string  `json:"mainAuthorized"`
	Recent         []Visit `json:"recent"`
}

// SummarizeCustomer builds the summary of reseller over list, which should
// already be filtered to that reseller. It reports false when there is
// nothing to summarize.
func SummarizeCustomer(list []orders.ServiceOrder, reseller string) (CustomerSummary, bool) {
	if reseller == "" || len(list) == 0 {
		return CustomerSummary{}, false
	}

	sorted := append([]orders.ServiceOrder{}, list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, okA := sorted[i].Date(orders.FieldOpeningDate)
		b, okB := sorted[j].Date(orders.FieldOpeningDate)
		if okA != okB {
			return okA
		}
		return a.After(b)
	})

	active := 0
	for _, o := range list {
		if isActive(o.Get(orders.FieldStatus)) {
			active++
		}
	}

	recent := make([]Visit, 0, RecentVisitCount)
	for _, o := range sorted {
		if len(recent) == RecentVisitCount {
			break
		}
		recent = append(recent, Visit{
			OrderID:     o.ID,
			OpeningDate: o.Get(orders.FieldOpeningDate),
			Defect:      o.Get(orders.FieldDefectFound),
			Status:      o.Get(orders.FieldStatus),
		})
	}

	latest := sorted[0]
	return CustomerSummary{
		Reseller:       reseller,
		TotalOS:        len(list),
		ActiveOS:       active,
		LastVisit:      latest.Get(orders.FieldOpeningDate),
		MainAuthorized: latest.Get(orders.FieldCenterName),
		Recent:         recent,
	}, true
}

// isActive is true unless the status reads as finished or cancelled.
func isActive(status string) bool {
	s := strings.ToLower(status)
	return !strings.Contains(s, "finalizad") && !strings.Contains(s, "cancelad")
}
