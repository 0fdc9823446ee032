// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// Sentinels are wrapped sentinel-first, fmt.Errorf("%w: <message>", ...),
// so the HTTP boundary can classify with errors.Is and recover the
// client-facing message by stripping the sentinel prefix.

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates invalid or missing input. The wrapped message is
// safe to return to the client verbatim.
var ErrValidation = errors.New("validation failed")

// ErrDuplicate indicates an insert collided with an existing primary key.
var ErrDuplicate = errors.New("duplicate key")
