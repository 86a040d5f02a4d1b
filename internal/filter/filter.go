// Package filter narrows a service-order collection by a set of selections.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/hercules-motores/service-analytics/internal/dates"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

// State holds the active selections. Zero values mean "no restriction".
// Start and End are civil dates and both bounds are inclusive.
type State struct {
	Start *time.Time
	End   *time.Time

	ProductFamily string
	Status        string
	State         string
	Customer      string
	Reseller      string
	City          string
	Authorized    string
	Defect        string
	Part          string
	Product       string
}

func (s State) HasDateRange() bool {
	return s.Start != nil || s.End != nil
}

// Key is a stable text form of s, usable as a cache key. Values are quoted,
// so distinct states never share a key.
func (s State) Key() string {
	var b strings.Builder
	writeDate := func(t *time.Time) {
		if t != nil {
			b.WriteString(dates.Format(*t))
		}
		b.WriteByte('|')
	}
	writeDate(s.Start)
	writeDate(s.End)
	for _, v := range []string{
		s.ProductFamily, s.Status, s.State, s.Customer, s.Reseller,
		s.City, s.Authorized, s.Defect, s.Part, s.Product,
	} {
		b.WriteString(strconv.Quote(v))
		b.WriteByte('|')
	}
	return b.String()
}

// DateOnly keeps only the date range of s.
func (s State) DateOnly() State {
	return State{Start: s.Start, End: s.End}
}

// Apply returns the orders matching every active selection. The input slice
// is not modified.
func Apply(list []orders.ServiceOrder, s State) []orders.ServiceOrder {
	if s.Start != nil && s.End != nil && dates.Of(*s.Start).After(dates.Of(*s.End)) {
		return []orders.ServiceOrder{}
	}
	out := make([]orders.ServiceOrder, 0, len(list))
	for _, o := range list {
		if Match(o, s) {
			out = append(out, o)
		}
	}
	return out
}

// Match reports whether a single order passes s.
func Match(o orders.ServiceOrder, s State) bool {
	if s.HasDateRange() && !inRange(o, s.Start, s.End) {
		return false
	}

	equal := []struct {
		want, field string
	}{
		{s.ProductFamily, orders.FieldProductFamily},
		{s.Status, orders.FieldStatus},
		{s.Customer, orders.FieldCustomer},
		{s.City, orders.FieldCenterCity},
		{s.Authorized, orders.FieldCenterName},
		{s.Defect, orders.FieldDefectFound},
		{s.Product, orders.FieldProduct},
		// Resellers are identified by who the order was billed to.
		{s.Reseller, orders.FieldBilledTo},
	}
	for _, e := range equal {
		if e.want != "" && o.Get(e.field) != e.want {
			return false
		}
	}

	if s.State != "" && o.Get(orders.FieldCenterState) != s.State && o.Get(orders.FieldCustomerState) != s.State {
		return false
	}
	if s.Part != "" && !o.HasPart(s.Part) {
		return false
	}
	return true
}

// inRange fails closed: an order without an opening date never matches a
// date bound.
func inRange(o orders.ServiceOrder, start, end *time.Time) bool {
	opened, ok := o.Date(orders.FieldOpeningDate)
	if !ok {
		return false
	}
	if start != nil && opened.Before(dates.Of(*start)) {
		return false
	}
	if end != nil && opened.After(dates.Of(*end)) {
		return false
	}
	return true
}
