package store

import "errors"

// ErrNotFound is returned by single-row lookups (GetBaseline,
// GetHealthState) when no row exists yet for the given service.
var ErrNotFound = errors.New("store: not found")
