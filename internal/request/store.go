package request

import (
	"context"
	"time"
)

// Store owns every Request record, grouped by room. All access happens
// inside a per-room section: Update sections are exclusive with respect to
// every other section on the same room, so a lookup followed by a mutation
// inside one Update call is atomic.
type Store interface {
	// Update runs fn in an exclusive section for roomID. If fn returns an
	// error, the mutations it made through tx are discarded.
	Update(ctx context.Context, roomID string, fn func(tx Tx) error) error

	// View runs fn in a read-only section for roomID. Mutating calls on tx
	// fail with ErrReadOnly.
	View(ctx context.Context, roomID string, fn func(tx Tx) error) error

	// Rooms returns the ids of rooms that hold at least one request.
	Rooms(ctx context.Context) ([]string, error)
}

// Tx is a handle on one room's ordered request sequence. It is only valid
// for the duration of the Store call that produced it.
type Tx interface {
	// Append inserts r at the end of the room's sequence.
	Append(r Request) error

	// List returns every request in the room in creation order.
	List() ([]Request, error)

	// ListPending returns the room's pending requests in creation order.
	ListPending() ([]Request, error)

	// Latest returns the most recently appended request, or ErrNotFound
	// when the room is empty.
	Latest() (Request, error)

	// Get returns the request with the given id, or ErrNotFound.
	Get(id string) (Request, error)

	// FindOldestPendingForTarget returns the earliest-created pending
	// request whose Target equals handle exactly, or ErrNotFound.
	FindOldestPendingForTarget(handle string) (Request, error)

	// Complete transitions the request to StatusCompleted. It fails with
	// ErrInvalidTransition if the request is already completed.
	Complete(id, fulfiller string, at time.Time) (Request, error)
}
