package chain

import "errors"

var (
	// ErrInvalidInput marks malformed append requests: missing tenant or
	// event type, or a payload that cannot be canonicalized. Rejected
	// before any hashing or store access.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a requested event does not exist.
	ErrNotFound = errors.New("event not found")

	// ErrStore marks storage-layer failures (connectivity, unexpected
	// constraint violations). The append is never partially applied.
	ErrStore = errors.New("store failure")

	// ErrRetryable marks transient concurrency conflicts (lock timeout,
	// serialization failure). The append protocol retries these a bounded
	// number of times before surfacing them.
	ErrRetryable = errors.New("transient append conflict")

	// ErrChainCollision signals a chain_hash uniqueness violation on
	// insert. This is a correctness emergency — either a hash collision or
	// a concurrency bug — and is never retried.
	ErrChainCollision = errors.New("chain hash collision")
)
