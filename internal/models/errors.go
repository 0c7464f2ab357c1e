package models

import "errors"

var (
	// ErrProviderUnavailable means no browser session could be acquired; it is
	// the only error allowed to fail a whole run.
	ErrProviderUnavailable = errors.New("browser session provider unavailable")
	ErrNavigationFailed    = errors.New("navigation failed")
	// ErrChallengeUnresolved is a soft failure: extraction still runs.
	ErrChallengeUnresolved = errors.New("anti-automation challenge unresolved")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrMalformedItem       = errors.New("malformed item")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnknownBrand        = errors.New("unknown brand")
)
