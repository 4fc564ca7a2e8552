package model

import "errors"

// Sentinel errors shared across the engine. Callers categorize failures
// with errors.Is so the API layer can render them distinctly.
var (
	// ErrNotFound reports an unknown source, interest, or match ID.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports a request the engine cannot act on, such as
	// a duplicate source URL or a match without any download link.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFetch reports a network-level failure while polling a source.
	ErrFetch = errors.New("fetch failed")
	// ErrParse reports a malformed feed or page payload.
	ErrParse = errors.New("parse failed")
)
