package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// e.g. a second VariantResult for the same (run_id, variant_id).
var ErrDuplicate = errors.New("storage: duplicate")
