package analytics

import (
	"sort"
	"strings"

	"github.com/hercules-motores/service-analytics/internal/filter"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

// Options lists the selectable values of each filter dimension.
type Options struct {
	ProductFamilies []string `json:"productFamilies"`
	Statuses        []string `json:"statuses"`
	States          []string `json:"states"`
	Customers       []string `json:"customers"`
	Resellers       []string `json:"resellers"`
	Cities          []string `json:"cities"`
	Authorized      []string `json:"authorized"`
	Defects         []string `json:"defects"`
	Parts           []string `json:"parts"`
	Products        []string `json:"products"`
}

// FilterOptions enumerates values from the unfiltered base so a selection
// never hides its own alternatives. Resellers are the exception: they are
// narrowed by the active date range.
func FilterOptions(base []orders.ServiceOrder, s filter.State) Options {
	families, statuses, states := newSet(), newSet(), newSet()
	customers, cities, authorized := newSet(), newSet(), newSet()
	defects, parts, products := newSet(), newSet(), newSet()

	for _, o := range base {
		families.add(o.Get(orders.FieldProductFamily))
		statuses.add(o.Get(orders.FieldStatus))
		states.add(o.Get(orders.FieldCenterState))
		states.add(o.Get(orders.FieldCustomerState))
		customers.add(o.Get(orders.FieldCustomer))
		cities.add(o.Get(orders.FieldCenterCity))
		authorized.add(o.Get(orders.FieldCenterName))
		defects.add(o.Get(orders.FieldDefectFound))
		products.add(o.Get(orders.FieldProduct))
		for _, item := range o.RelatedItems {
			if label, ok := orders.PartLabel(item); ok {
				parts.add(label)
			}
		}
	}

	resellers := newSet()
	for _, o := range filter.Apply(base, s.DateOnly()) {
		resellers.add(o.Get(orders.FieldBilledTo))
	}

	return Options{
		ProductFamilies: families.sorted(),
		Statuses:        statuses.sorted(),
		States:          states.sorted(),
		Customers:       customers.sorted(),
		Resellers:       resellers.sorted(),
		Cities:          cities.sorted(),
		Authorized:      authorized.sorted(),
		Defects:         defects.sorted(),
		Parts:           parts.sorted(),
		Products:        products.sorted(),
	}
}

type stringSet map[string]struct{}

func newSet() stringSet {
	return stringSet{}
}

func (s stringSet) add(v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	s[v] = struct{}{}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
