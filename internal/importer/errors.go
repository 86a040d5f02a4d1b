package importer

import "errors"

var (
	// ErrImportInFlight refuses reloads and clears while an upload is being
	// processed.
	ErrImportInFlight = errors.New("an import is in progress")
	// ErrSuperseded means a newer import started while this result was being
	// computed, so it was dropped.
	ErrSuperseded = errors.New("result superseded by a newer import")
	// ErrNoValidRows rejects uploads in which every row failed validation.
	ErrNoValidRows = errors.New("no row passed validation")
)

// FetchError wraps a failure to read from the store.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch import: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// PersistError wraps a failure to save an upload. The previous data is
// still in place when it is returned.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist import: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }
