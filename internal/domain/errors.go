package domain

import "errors"

var (
	// ErrNotFound covers absent connections, rooms and participants.
	// Expected and non-fatal: callers drop the event and continue.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateConnection rejects a register call for an id already present.
	ErrDuplicateConnection = errors.New("duplicate connection")

	// ErrAlreadyMatched rejects an enqueue for a participant that is in a room.
	ErrAlreadyMatched = errors.New("participant already matched")

	// ErrAlreadyWaiting rejects a second enqueue for a participant still in a pool.
	ErrAlreadyWaiting = errors.New("participant already waiting")

	ErrUnknownLanguage = errors.New("unknown language")
)
