package analytics

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hercules-motores/service-analytics/internal/dates"
	"github.com/hercules-motores/service-analytics/internal/filter"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

// WeeklyThresholdDays is the widest explicit date range that is still
// bucketed by week.
const WeeklyThresholdDays = 90

type MonthCount struct {
	Month    string `json:"month"`
	Quantity int    `json:"quantidade"`
}

// MonthlyTrend counts orders per YYYY-MM of the opening date, oldest first.
func MonthlyTrend(list []orders.ServiceOrder) []MonthCount {
	counts := map[string]int{}
	for _, o := range list {
		opened, ok := o.Date(orders.FieldOpeningDate)
		if !ok {
			continue
		}
		counts[dates.MonthKey(opened)]++
	}

	out := make([]MonthCount, 0, len(counts))
	for month, n := range counts {
		out = append(out, MonthCount{Month: month, Quantity: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

type PeriodAverage struct {
	Period  string `json:"period"`
	AvgTime int    `json:"avgTime"`
}

// Granularity of a service-time trend.
type Granularity string

const (
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
)

// TrendGranularity picks weekly buckets for explicit ranges of up to
// WeeklyThresholdDays and monthly buckets otherwise.
func TrendGranularity(s filter.State) Granularity {
	if s.Start != nil && s.End != nil && dates.DaysBetween(dates.Of(*s.Start), dates.Of(*s.End)) <= WeeklyThresholdDays {
		return ByWeek
	}
	return ByMonth
}

// ServiceTimeTrend averages service time per period of the opening date.
func ServiceTimeTrend(list []orders.ServiceOrder, s filter.State) []PeriodAverage {
	granularity := TrendGranularity(s)
	type bucket struct {
		label string
		mean
	}
	buckets := map[string]*bucket{}

	for _, o := range list {
		days, ok := serviceDays(o)
		if !ok {
			continue
		}
		opened, _ := o.Date(orders.FieldOpeningDate)
		key, label := periodOf(opened, granularity)
		b, seen := buckets[key]
		if !seen {
			b = &bucket{label: label}
			buckets[key] = b
		}
		b.add(days)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PeriodAverage, len(keys))
	for i, k := range keys {
		out[i] = PeriodAverage{Period: buckets[k].label, AvgTime: buckets[k].rounded()}
	}
	return out
}

var monthAbbreviations = [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// periodOf returns the sort key and display label of the bucket holding t.
func periodOf(t time.Time, g Granularity) (string, string) {
	if g == ByWeek {
		start := dates.WeekStart(t)
		end := start.AddDate(0, 0, 6)
		return start.Format("2006-01-02"), start.Format("02/01") + " - " + end.Format("02/01")
	}
	title := cases.Title(language.BrazilianPortuguese)
	label := fmt.Sprintf("%s/%d", title.String(monthAbbreviations[t.Month()-1]), t.Year())
	return dates.MonthKey(t), label
}
