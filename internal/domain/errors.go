package domain

import "errors"

var (
	// ErrNotFound is returned when a looked-up entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwned is returned when an entity exists but belongs to another user.
	ErrNotOwned = errors.New("access denied")
)
