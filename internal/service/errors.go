package service

import "errors"

var (
	// ErrEmptyQueue: the unit's queue has no entries at all. Expected
	// outcome, not a bug.
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrNoEligibleSeller: entries exist but every seller is inactive or
	// absent right now. Also expected.
	ErrNoEligibleSeller = errors.New("no eligible seller")

	// ErrUnitInactive: the unit exists but is switched off for
	// distribution.
	ErrUnitInactive = errors.New("unit is not active")

	// ErrOrderMismatch: a reorder request named a seller set different from
	// the stored queue.
	ErrOrderMismatch = errors.New("reorder must contain exactly the current seller set")

	// ErrAlreadyQueued / ErrNotQueued: membership changes against the
	// wrong current state.
	ErrAlreadyQueued = errors.New("seller is already in the queue")
	ErrNotQueued     = errors.New("seller is not in the queue")

	// ErrBadSwap: the swap position does not address two adjacent entries.
	ErrBadSwap = errors.New("swap position out of range")
)
