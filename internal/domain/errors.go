package domain

import "errors"

// Pipeline error taxonomy.
var (
	// ErrDataUnavailable is returned when an identifier has no retrievable series.
	// The identifier is skipped and the run continues.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInvalidParameters is returned for malformed simulation parameters
	// (non-positive horizon or step, fewer than one step or replicate).
	ErrInvalidParameters = errors.New("invalid simulation parameters")

	// ErrEmptyPanel is returned when no rows survive row dropping and truncation.
	ErrEmptyPanel = errors.New("empty panel")

	// ErrInvalidSeries is returned for structurally broken series
	// (duplicate dates, mismatched lengths).
	ErrInvalidSeries = errors.New("invalid series")
)
