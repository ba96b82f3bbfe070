package request

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps requests in process memory. Each room has its own lock;
// rooms are created on the first successful Append and live as long as the
// store.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	mu       sync.RWMutex
	requests []*Request
	byID     map[string]*Request
}

func newRoom() *room {
	return &room{byID: make(map[string]*Request)}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*room),
	}
}

func (s *MemoryStore) lookup(roomID string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID]
}

func (s *MemoryStore) Update(ctx context.Context, roomID string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := s.lookup(roomID)
	if r == nil {
		s.mu.Lock()
		if r = s.rooms[roomID]; r == nil {
			// Unknown room: run against a detached sequence while holding the
			// map lock and attach it only if fn stored something.
			defer s.mu.Unlock()
			fresh := newRoom()
			tx := &memTx{roomID: roomID, room: fresh}
			if err := fn(tx); err != nil {
				return err
			}
			if len(fresh.requests) > 0 {
				s.rooms[roomID] = fresh
			}
			return nil
		}
		s.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memTx{roomID: roomID, room: r}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, roomID string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := s.lookup(roomID)
	if r == nil {
		return fn(&memTx{roomID: roomID, room: newRoom(), readOnly: true})
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(&memTx{roomID: roomID, room: r, readOnly: true})
}

func (s *MemoryStore) Rooms(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids, nil
}

type memTx struct {
	roomID   string
	room     *room
	readOnly bool
	undo     []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) Append(r Request) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	if r.RoomID != tx.roomID {
		return fmt.Errorf("request %s belongs to room %q, not %q", r.ID, r.RoomID, tx.roomID)
	}
	if _, ok := tx.room.byID[r.ID]; ok {
		return fmt.Errorf("request %s already exists", r.ID)
	}

	stored := r.Clone()
	tx.room.requests = append(tx.room.requests, &stored)
	tx.room.byID[stored.ID] = &stored
	tx.undo = append(tx.undo, func() {
		tx.room.requests = tx.room.requests[:len(tx.room.requests)-1]
		delete(tx.room.byID, stored.ID)
	})
	return nil
}

func (tx *memTx) List() ([]Request, error) {
	out := make([]Request, 0, len(tx.room.requests))
	for _, r := range tx.room.requests {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (tx *memTx) ListPending() ([]Request, error) {
	out := []Request{}
	for _, r := range tx.room.requests {
		if r.Pending() {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) Latest() (Request, error) {
	if len(tx.room.requests) == 0 {
		return Request{}, fmt.Errorf("%w: room %s is empty", ErrNotFound, tx.roomID)
	}
	return tx.room.requests[len(tx.room.requests)-1].Clone(), nil
}

func (tx *memTx) Get(id string) (Request, error) {
	r, ok := tx.room.byID[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

func (tx *memTx) FindOldestPendingForTarget(handle string) (Request, error) {
	var oldest *Request
	for _, r := range tx.room.requests {
		if !r.Pending() || r.Target != handle {
			continue
		}
		// strict comparison keeps the earlier insertion on equal timestamps
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return Request{}, fmt.Errorf("%w: no pending request for %s", ErrNotFound, handle)
	}
	return oldest.Clone(), nil
}

func (tx *memTx) Complete(id, fulfiller string, at time.Time) (Request, error) {
	if tx.readOnly {
		return Request{}, ErrReadOnly
	}
	r, ok := tx.room.byID[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !r.Pending() {
		return Request{}, fmt.Errorf("%w: request %s is already %s", ErrInvalidTransition, id, r.Status)
	}

	prev := *r
	r.complete(fulfiller, at)
	tx.undo = append(tx.undo, func() { *r = prev })
	return r.Clone(), nil
}
