package orders

import "time"

// MetadataTolerance absorbs timestamp precision lost when metadata is
// serialized by different layers.
const MetadataTolerance = 2 * time.Second

// ImportMetadata identifies the upload currently loaded.
type ImportMetadata struct {
	Filename   string    `json:"filename"`
	ImportedAt time.Time `json:"importedAt"`
}

// SameImport reports whether m and other describe the same upload.
func (m ImportMetadata) SameImport(other ImportMetadata) bool {
	if m.Filename != other.Filename {
		return false
	}
	d := m.ImportedAt.Sub(other.ImportedAt)
	if d < 0 {
		d = -d
	}
	return d <= MetadataTolerance
}
