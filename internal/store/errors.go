package store

import "errors"

// ErrNotFound is returned when a lookup by id affects no rows.
var ErrNotFound = errors.New("store: not found")
