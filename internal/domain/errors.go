package domain

import "errors"

var (
	// ErrFetchFailed is returned when a page fetch fails (network, timeout, HTTP status)
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrInsufficientData is returned when no plausible price or stock signal was found on a page
	ErrInsufficientData = errors.New("insufficient data on page")

	// ErrNotFound is returned when no catalog row matches the given key
	ErrNotFound = errors.New("catalog record not found")

	// ErrDataIntegrity is returned when more than one catalog row matches a key;
	// it halts further writes to that catalog file
	ErrDataIntegrity = errors.New("data integrity violation: duplicate key match")

	// ErrDuplicateKey is returned when inserting a record whose key already exists
	ErrDuplicateKey = errors.New("record key already exists")

	// ErrEnrichmentMiss is returned when no master entry exists for a record (non-fatal)
	ErrEnrichmentMiss = errors.New("no master entry for record")

	// ErrInvalidRecord is returned when a record violates catalog invariants
	ErrInvalidRecord = errors.New("invalid product record")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
