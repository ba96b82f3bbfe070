package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// MentionPrefix marks a handle as a mention of a room member.
const MentionPrefix = "@"

// Engine implements request creation, listing and resolution on top of a
// Store. It keeps no state of its own beyond its collaborators and never
// logs.
type Engine struct {
	store Store
	now   func() time.Time
	ids   IDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for created_at and completed_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides the request id scheme.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// NewEngine creates an Engine over store. By default it stamps wall-clock
// time and issues sequential per-room ids.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		ids:   NewSequenceGenerator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRequest records a new pending request asking target to upload the
// file named label. target must be a mention (for example "@bob"). Nothing
// is stored when an argument is rejected.
func (e *Engine) CreateRequest(ctx context.Context, roomID, requester, target, label, reference string) (Request, error) {
	if err := validateCreate(roomID, requester, target, label, reference); err != nil {
		return Request{}, err
	}

	var created Request
	err := e.store.Update(ctx, roomID, func(tx Tx) error {
		id, err := e.freshID(tx, roomID)
		if err != nil {
			return err
		}
		createdAt, err := e.nextCreatedAt(tx)
		if err != nil {
			return err
		}
		r := Request{
			ID:        id,
			RoomID:    roomID,
			Requester: requester,
			Target:    target,
			Label:     label,
			Reference: reference,
			Status:    StatusPending,
			CreatedAt: createdAt,
		}
		if err := tx.Append(r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return Request{}, fmt.Errorf("failed to create request: %w", err)
	}
	return created, nil
}

// ListPending returns the room's pending requests in creation order. An
// unknown room yields an empty slice.
func (e *Engine) ListPending(ctx context.Context, roomID string) ([]Request, error) {
	var pending []Request
	err := e.store.View(ctx, roomID, func(tx Tx) error {
		var err error
		pending, err = tx.ListPending()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return pending, nil
}

// ListRequests returns every request of the room, completed ones included,
// in creation order.
func (e *Engine) ListRequests(ctx context.Context, roomID string) ([]Request, error) {
	var all []Request
	err := e.store.View(ctx, roomID, func(tx Tx) error {
		var err error
		all, err = tx.List()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return all, nil
}

// GetRequest looks a request up by id within its room. Requests of other
// rooms are reported as ErrNotFound.
func (e *Engine) GetRequest(ctx context.Context, roomID, id string) (Request, error) {
	var found Request
	err := e.store.View(ctx, roomID, func(tx Tx) error {
		var err error
		found, err = tx.Get(id)
		return err
	})
	if err != nil {
		return Request{}, err
	}
	return found, nil
}

// ResolveOnUpload completes the oldest pending request in the room whose
// target is "@"+uploaderHandle and records uploaderID as the fulfiller. It
// returns ErrNoMatch when there is no such request; the store is left
// untouched in that case.
//
// Matching compares the handle text recorded at creation time. A member who
// changed their handle since then will not match.
func (e *Engine) ResolveOnUpload(ctx context.Context, roomID, uploaderID, uploaderHandle string) (Request, error) {
	if uploaderID == "" {
		return Request{}, invalid("uploader", "identity is required")
	}
	if uploaderHandle == "" {
		return Request{}, ErrNoMatch
	}
	target := MentionPrefix + uploaderHandle

	var completed Request
	err := e.store.Update(ctx, roomID, func(tx Tx) error {
		r, err := tx.FindOldestPendingForTarget(target)
		if errors.Is(err, ErrNotFound) {
			return ErrNoMatch
		}
		if err != nil {
			return err
		}
		at := e.now()
		if at.Before(r.CreatedAt) {
			at = r.CreatedAt
		}
		completed, err = tx.Complete(r.ID, uploaderID, at)
		return err
	})
	if errors.Is(err, ErrNoMatch) {
		return Request{}, ErrNoMatch
	}
	if err != nil {
		return Request{}, fmt.Errorf("failed to resolve upload: %w", err)
	}
	return completed, nil
}

// freshID draws ids until one is unused in the room. A store that outlived
// the generator's counters, such as a sqlite file, already holds the first
// ids of a sequence.
func (e *Engine) freshID(tx Tx, roomID string) (string, error) {
	for {
		id := e.ids.NewID(roomID)
		_, err := tx.Get(id)
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// nextCreatedAt reads the clock, never going below the room's latest
// created_at so timestamps follow insertion order if the clock steps back.
func (e *Engine) nextCreatedAt(tx Tx) (time.Time, error) {
	now := e.now()
	latest, err := tx.Latest()
	if errors.Is(err, ErrNotFound) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if now.Before(latest.CreatedAt) {
		return latest.CreatedAt, nil
	}
	return now, nil
}

func validateCreate(roomID, requester, target, label, reference string) error {
	if roomID == "" {
		return invalid("room", "room id is required")
	}
	if requester == "" {
		return invalid("requester", "requester identity is required")
	}
	if err := ValidateHandle(target); err != nil {
		return err
	}
	if strings.TrimSpace(label) == "" {
		return invalid("label", "label is required")
	}
	if strings.TrimSpace(reference) == "" {
		return invalid("reference", "reference is required")
	}
	return nil
}

// ValidateHandle checks that target is a mention: the prefix followed by a
// non-empty name without whitespace.
func ValidateHandle(target string) error {
	if target == "" {
		return invalid("target", "target handle is required")
	}
	name, ok := strings.CutPrefix(target, MentionPrefix)
	if !ok {
		return invalid("target", "target must be mentioned with "+MentionPrefix)
	}
	if name == "" {
		return invalid("target", "target handle is empty")
	}
	if strings.ContainsFunc(name, unicode.IsSpace) {
		return invalid("target", "target handle contains whitespace")
	}
	return nil
}
