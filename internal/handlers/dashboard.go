package handlers

import (
	"net/http"

	"github.com/hercules-motores/service-analytics/internal/analytics"
	"github.com/hercules-motores/service-analytics/internal/filter"
	"github.com/hercules-motores/service-analytics/internal/httpx"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

type dashboardResponse struct {
	analytics.Dashboard
	Metadata *orders.ImportMetadata `json:"metadata,omitempty"`
	Version  uint64                 `json:"version"`
}

func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	state, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	snap := s.Importer.Snapshot()
	httpx.WriteJSON(w, http.StatusOK, dashboardResponse{
		Dashboard: s.Memo.Get(snap.Version, snap.Orders, state),
		Metadata:  snap.Metadata,
		Version:   snap.Version,
	})
}

func (s *Server) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	state, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	snap := s.Importer.Snapshot()
	httpx.WriteJSON(w, http.StatusOK, analytics.FilterOptions(snap.Orders, state.DateOnly()))
}

type orderPage struct {
	Items  []orders.ServiceOrder `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func (s *Server) GetOrders(w http.ResponseWriter, r *http.Request) {
	state, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	p, err := parsePage(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	view := filter.Apply(s.Importer.Snapshot().Orders, state)
	from := min(p.Offset, len(view))
	to := min(from+p.Limit, len(view))
	httpx.WriteJSON(w, http.StatusOK, orderPage{
		Items:  append([]orders.ServiceOrder{}, view[from:to]...),
		Total:  len(view),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}

func (s *Server) GetOrdersOrderId(w http.ResponseWriter, r *http.Request, orderId string) {
	order, ok := orders.Find(s.Importer.Snapshot().Orders, orderId)
	if !ok {
		httpx.WriteError(w, r, http.StatusNotFound, "order_not_found", "Service order was not found", map[string]any{"orderId": orderId})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (s *Server) GetCustomersSummary(w http.ResponseWriter, r *http.Request) {
	state, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	if state.Reseller == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "reseller is required", nil)
		return
	}
	view := filter.Apply(s.Importer.Snapshot().Orders, state)
	summary, ok := analytics.SummarizeCustomer(view, state.Reseller)
	if !ok {
		httpx.WriteError(w, r, http.StatusNotFound, "customer_not_found", "No orders for this reseller", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
