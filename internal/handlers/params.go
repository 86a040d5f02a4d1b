package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/hercules-motores/service-analytics/internal/dates"
	"github.com/hercules-motores/service-analytics/internal/filter"
)

const (
	defaultOrderPageLimit = 50
	maxOrderPageLimit     = 500
)

// parseFilter reads the filter selections from the query string. Dates use
// the ISO form (YYYY-MM-DD). Other values are kept verbatim so an offered
// option round-trips; a blank value means no selection.
func parseFilter(r *http.Request) (filter.State, error) {
	q := r.URL.Query()

	var start, end *openapi_types.Date
	if err := runtime.BindQueryParameter("form", true, false, "start", q, &start); err != nil {
		return filter.State{}, fmt.Errorf("invalid start: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "end", q, &end); err != nil {
		return filter.State{}, fmt.Errorf("invalid end: %w", err)
	}

	text := func(key string) string {
		v := q.Get(key)
		if strings.TrimSpace(v) == "" {
			return ""
		}
		return v
	}
	return filter.State{
		Start:         civilDate(start),
		End:           civilDate(end),
		ProductFamily: text("productFamily"),
		Status:        text("status"),
		State:         text("state"),
		Customer:      text("customer"),
		Reseller:      text("reseller"),
		City:          text("city"),
		Authorized:    text("authorized"),
		Defect:        text("defect"),
		Part:          text("part"),
		Product:       text("product"),
	}, nil
}

func civilDate(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := dates.Of(d.Time)
	return &t
}

type page struct {
	Limit  int
	Offset int
}

func parsePage(r *http.Request) (page, error) {
	q := r.URL.Query()
	var limit, offset *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		return page{}, fmt.Errorf("invalid limit: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &offset); err != nil {
		return page{}, fmt.Errorf("invalid offset: %w", err)
	}

	p := page{Limit: defaultOrderPageLimit}
	if limit != nil {
		if *limit < 1 {
			return page{}, fmt.Errorf("limit must be at least 1")
		}
		p.Limit = min(*limit, maxOrderPageLimit)
	}
	if offset != nil {
		if *offset < 0 {
			return page{}, fmt.Errorf("offset must not be negative")
		}
		p.Offset = *offset
	}
	return p, nil
}
