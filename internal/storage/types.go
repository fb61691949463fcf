package storage

import "errors"

var (
	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable indicates that the backing persistence layer
	// could not be opened or reached. Operations failing with this error
	// must be surfaced to the user rather than silently swallowed, since
	// the alternative is losing data.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// NormalizeLimit applies the default search limit when the caller passes a
// non-positive value.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}
