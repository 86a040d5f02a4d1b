package orders

import (
	"encoding/json"
	"strings"
)

// ServiceOrder is one ticket: the authoritative row for its identifier plus
// every line item that shares it, in encounter order.
type ServiceOrder struct {
	ID string
	Row
	RelatedItems []Row
}

// Primary is the row whose fields represent the order.
func (o ServiceOrder) Primary() Row {
	return o.Row
}

func (o ServiceOrder) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.values)+1)
	for k, v := range o.values {
		out[k] = v
	}
	items := o.RelatedItems
	if items == nil {
		items = []Row{}
	}
	out["relatedItems"] = items
	return json.Marshal(out)
}

func (o *ServiceOrder) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var items []Row
	if raw, ok := fields["relatedItems"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		delete(fields, "relatedItems")
	}
	values := make(map[string]string, len(fields))
	for k, raw := range fields {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		values[k] = s
	}
	row := RowFromValues(canonicalSchema, values)
	if len(items) == 0 {
		items = []Row{row}
	}
	*o = ServiceOrder{ID: OrderID(row), Row: row, RelatedItems: items}
	return nil
}

// OrderID is the trimmed order identifier of a row.
func OrderID(r Row) string {
	return strings.TrimSpace(r.Get(FieldOrder))
}

// primaryPolicy picks the row that represents an order when a new line item
// for it is seen.
type primaryPolicy func(current, next Row) Row

// latestWins keeps the most recently encountered row, so status and dates
// reflect the newest line item.
func latestWins(_, next Row) Row {
	return next
}

// Deduplicate groups rows by order identifier in a single pass. Rows without
// an identifier are skipped. Orders come out in order of first appearance.
func Deduplicate(rows []Row) []ServiceOrder {
	return deduplicate(rows, latestWins)
}

func deduplicate(rows []Row, policy primaryPolicy) []ServiceOrder {
	index := make(map[string]int, len(rows))
	out := make([]ServiceOrder, 0, len(rows))
	for _, row := range rows {
		id := OrderID(row)
		if id == "" {
			continue
		}
		i, seen := index[id]
		if !seen {
			index[id] = len(out)
			out = append(out, ServiceOrder{ID: id, Row: row, RelatedItems: []Row{row}})
			continue
		}
		out[i].Row = policy(out[i].Row, row)
		out[i].RelatedItems = append(out[i].RelatedItems, row)
	}
	return out
}

// Primaries unwraps orders back into their representative rows.
func Primaries(list []ServiceOrder) []Row {
	rows := make([]Row, len(list))
	for i, o := range list {
		rows[i] = o.Row
	}
	return rows
}

// Flatten returns every line item of every order, in order.
func Flatten(list []ServiceOrder) []Row {
	var rows []Row
	for _, o := range list {
		rows = append(rows, o.RelatedItems...)
	}
	return rows
}

// Find returns the order with the given identifier.
func Find(list []ServiceOrder, id string) (ServiceOrder, bool) {
	id = strings.TrimSpace(id)
	for _, o := range list {
		if o.ID == id {
			return o, true
		}
	}
	return ServiceOrder{}, false
}
