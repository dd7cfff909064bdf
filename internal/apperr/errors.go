// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidStrategy = errors.New("invalid delete strategy")
	ErrCycle           = errors.New("subcard cycle detected")
)
