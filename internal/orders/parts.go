package orders

import "strings"

// PartLabel is the display label of the part replaced on a line item:
// "code - description", or whichever half is present. The second result is
// false when the row names no part.
func PartLabel(r Row) (string, bool) {
	code := strings.TrimSpace(r.Get(FieldPartCode))
	desc := strings.TrimSpace(r.Get(FieldPartDescription))
	switch {
	case code != "" && desc != "":
		return code + " - " + desc, true
	case desc != "":
		return desc, true
	case code != "":
		return code, true
	}
	return "", false
}

// HasPart reports whether any line item of o carries the given part label.
func (o ServiceOrder) HasPart(label string) bool {
	for _, item := range o.RelatedItems {
		if l, ok := PartLabel(item); ok && l == label {
			return true
		}
	}
	return false
}
