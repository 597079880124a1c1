package domain

import "errors"

// Constraint violations reported by the storage layer.
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)
