// Package repository defines the data access interfaces and their GORM
// implementations.
package repository

import "errors"

// Typed consistency errors surfaced by the catalog administrative
// operations. They are checked with errors.Is at the service and handler
// layers; none of them ever leaves a version in a half-mutated state.
var (
	ErrVersionNotFound   = errors.New("catalog version not found")
	ErrInvalidTransition = errors.New("catalog version is not in the required state for this transition")
	ErrChecksumMismatch  = errors.New("catalog version checksum does not match its declared content hash")
	ErrNoActiveVersion   = errors.New("no catalog version is active")
)
