// Package store holds errors shared by the target store implementations.
package store

import (
	dErrors "driftgate/pkg/domain-errors"
)

// ErrNotFound keeps store-specific 404s consistent across the in-memory and
// PostgreSQL implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "target not found")
