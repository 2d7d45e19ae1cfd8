package ports

import "errors"

var (
	// ErrCacheMiss is returned when a cache key does not exist or has expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotFound is returned when no record matches a store filter
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)
