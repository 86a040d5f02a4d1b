package analytics

import (
	"sort"
	"strings"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

// RankingSize is how many entries a top-N ranking keeps.
const RankingSize = 10

// Count is one bar of a ranking or distribution.
type Count struct {
	Label    string `json:"label"`
	Quantity int    `json:"quantidade"`
}

// tally counts labels, remembering the order each label was first seen so
// ties sort deterministically.
type tally struct {
	index   map[string]int
	entries []Count
}

func newTally() *tally {
	return &tally{index: map[string]int{}}
}

func (t *tally) add(label string) {
	if i, ok := t.index[label]; ok {
		t.entries[i].Quantity++
		return
	}
	t.index[label] = len(t.entries)
	t.entries = append(t.entries, Count{Label: label, Quantity: 1})
}

// sorted returns the entries by descending count, at most limit of them
// (all when limit <= 0).
func (t *tally) sorted(limit int) []Count {
	out := append([]Count{}, t.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Quantity > out[j].Quantity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PartRanking counts replaced parts across every line item. When part is
// set the result only contains that label.
func PartRanking(list []orders.ServiceOrder, part string) []Count {
	t := newTally()
	for _, o := range list {
		for _, item := range o.RelatedItems {
			label, ok := orders.PartLabel(item)
			if !ok {
				continue
			}
			if part != "" && label != part {
				continue
			}
			t.add(label)
		}
	}
	return t.sorted(RankingSize)
}

// DefectRanking counts the defect found on each order.
func DefectRanking(list []orders.ServiceOrder) []Count {
	return rankField(list, orders.FieldDefectFound, RankingSize)
}

// ProductRanking counts orders per product description.
func ProductRanking(list []orders.ServiceOrder) []Count {
	return rankField(list, orders.FieldProduct, RankingSize)
}

func CityDistribution(list []orders.ServiceOrder) []Count {
	return rankField(list, orders.FieldCenterCity, 0)
}

func AuthorizedDistribution(list []orders.ServiceOrder) []Count {
	return rankField(list, orders.FieldCenterName, 0)
}

func rankField(list []orders.ServiceOrder, field string, limit int) []Count {
	t := newTally()
	for _, o := range list {
		v := o.Get(field)
		if strings.TrimSpace(v) == "" {
			continue
		}
		t.add(v)
	}
	return t.sorted(limit)
}

// StatusUnknown labels orders without a status.
const StatusUnknown = "Não informado"

type StatusShare struct {
	Status     string  `json:"status"`
	Quantity   int     `json:"quantidade"`
	Percentage float64 `json:"percentage"`
}

// StatusDistribution counts orders per status. Orders without one are
// grouped under StatusUnknown, so the quantities always add up to len(list).
func StatusDistribution(list []orders.ServiceOrder) []StatusShare {
	t := newTally()
	for _, o := range list {
		status := o.Get(orders.FieldStatus)
		if strings.TrimSpace(status) == "" {
			status = StatusUnknown
		}
		t.add(status)
	}

	counts := t.sorted(0)
	out := make([]StatusShare, len(counts))
	for i, c := range counts {
		out[i] = StatusShare{
			Status:     c.Label,
			Quantity:   c.Quantity,
			Percentage: percentage(c.Quantity, len(list)),
		}
	}
	return out
}
