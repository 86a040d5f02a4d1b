package analytics

import (
	"sync"

	"github.com/hercules-motores/service-analytics/internal/filter"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

// Dashboard bundles every aggregate for one filter state.
type Dashboard struct {
	KPIs                   KPIs            `json:"kpis"`
	PartRanking            []Count         `json:"partRanking"`
	ProductRanking         []Count         `json:"productRanking"`
	DefectRanking          []Count         `json:"defectRanking"`
	MonthlyTrend           []MonthCount    `json:"monthlyTrends"`
	ServiceTimeTrend       []PeriodAverage `json:"serviceTimeTrend"`
	TrendGranularity       Granularity     `json:"trendGranularity"`
	StatusDistribution     []StatusShare   `json:"statusDistribution"`
	CityDistribution       []Count         `json:"cityDistribution"`
	AuthorizedDistribution []Count         `json:"authorizedDistribution"`
	FilterOptions          Options         `json:"filterOptions"`
}

// Build filters base by s and computes every aggregate. Calculators only
// see the filtered view, except the option lists.
func Build(base []orders.ServiceOrder, s filter.State) Dashboard {
	view := filter.Apply(base, s)
	return Dashboard{
		KPIs:                   ComputeKPIs(view),
		PartRanking:            PartRanking(view, s.Part),
		ProductRanking:         ProductRanking(view),
		DefectRanking:          DefectRanking(view),
		MonthlyTrend:           MonthlyTrend(view),
		ServiceTimeTrend:       ServiceTimeTrend(view, s),
		TrendGranularity:       TrendGranularity(s),
		StatusDistribution:     StatusDistribution(view),
		CityDistribution:       CityDistribution(view),
		AuthorizedDistribution: AuthorizedDistribution(view),
		FilterOptions:          FilterOptions(base, s),
	}
}

// DefaultMemoSize bounds how many dashboards a Memo keeps per generation.
const DefaultMemoSize = 256

// Memo caches dashboards by collection generation and filter state. Entries
// for older generations are discarded as soon as a newer one is seen.
type Memo struct {
	mu         sync.Mutex
	size       int
	generation uint64
	entries    map[string]Dashboard
}

func NewMemo(size int) *Memo {
	if size <= 0 {
		size = DefaultMemoSize
	}
	return &Memo{size: size, entries: map[string]Dashboard{}}
}

// Get returns the dashboard for (generation, s), building it from base on a
// miss.
func (m *Memo) Get(generation uint64, base []orders.ServiceOrder, s filter.State) Dashboard {
	key := s.Key()

	m.mu.Lock()
	if generation > m.generation {
		m.generation = generation
		m.entries = map[string]Dashboard{}
	}
	if generation == m.generation {
		if d, ok := m.entries[key]; ok {
			m.mu.Unlock()
			return d
		}
	}
	m.mu.Unlock()

	d := Build(base, s)

	m.mu.Lock()
	defer m.mu.Unlock()
	if generation == m.generation {
		if len(m.entries) >= m.size {
			m.entries = map[string]Dashboard{}
		}
		m.entries[key] = d
	}
	return d
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
