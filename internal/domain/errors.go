package domain

import "errors"

// Sentinel errors for the fetch path. Adapters wrap these with %w so callers
// can classify failures with errors.Is regardless of the wrapping detail.
var (
	// ErrDataUnavailable means the provider has no usable imagery for the
	// requested window, typically due to cloud cover. Recoverable; the next
	// scheduled refresh retries.
	ErrDataUnavailable = errors.New("no usable imagery for requested window")

	// ErrProvider means the provider call itself failed: transport error,
	// rejected credentials, or a non-2xx response. Recoverable but logged at
	// a higher severity than ErrDataUnavailable.
	ErrProvider = errors.New("satellite data provider error")
)
