package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tejzpr/filerequest-bot/internal/request"
	"gorm.io/gorm"
)

// Store implements request.Store on a gorm connection. Update sections run
// inside a database transaction.
type Store struct {
	db *gorm.DB
}

var _ request.Store = (*Store)(nil)

// NewStore wraps an opened database (see Open).
func NewStore(d *gorm.DB) *Store {
	return &Store{db: d}
}

func (s *Store) Update(ctx context.Context, roomID string, fn func(tx request.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, roomID: roomID})
	})
}

func (s *Store) View(ctx context.Context, roomID string, fn func(tx request.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&gormTx{db: s.db.WithContext(ctx), roomID: roomID, readOnly: true})
}

func (s *Store) Rooms(ctx context.Context) ([]string, error) {
	rooms := []string{}
	err := s.db.WithContext(ctx).Model(&FileRequest{}).Distinct("room_id").Order("room_id").Pluck("room_id", &rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

type gormTx struct {
	db       *gorm.DB
	roomID   string
	readOnly bool
}

func (tx *gormTx) room() *gorm.DB {
	return tx.db.Model(&FileRequest{}).Where("room_id = ?", tx.roomID)
}

func (tx *gormTx) Append(r request.Request) error {
	if tx.readOnly {
		return request.ErrReadOnly
	}
	if r.RoomID != tx.roomID {
		return fmt.Errorf("request %s belongs to room %q, not %q", r.ID, r.RoomID, tx.roomID)
	}
	row := fromRequest(r)
	if err := tx.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert request %s: %w", r.ID, err)
	}
	return nil
}

func (tx *gormTx) find(query *gorm.DB) ([]request.Request, error) {
	var rows []FileRequest
	if err := query.Order("created_at ASC, seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	out := make([]request.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRequest())
	}
	return out, nil
}

func (tx *gormTx) List() ([]request.Request, error) {
	return tx.find(tx.room())
}

func (tx *gormTx) ListPending() ([]request.Request, error) {
	return tx.find(tx.room().Where("status = ?", string(request.StatusPending)))
}

func (tx *gormTx) first(query *gorm.DB, notFound string) (request.Request, error) {
	var row FileRequest
	err := query.Order("created_at ASC, seq ASC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return request.Request{}, fmt.Errorf("%w: %s", request.ErrNotFound, notFound)
	}
	if err != nil {
		return request.Request{}, fmt.Errorf("failed to query request: %w", err)
	}
	return row.toRequest(), nil
}

func (tx *gormTx) Latest() (request.Request, error) {
	var row FileRequest
	err := tx.room().Order("seq DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return request.Request{}, fmt.Errorf("%w: room %s is empty", request.ErrNotFound, tx.roomID)
	}
	if err != nil {
		return request.Request{}, fmt.Errorf("failed to query request: %w", err)
	}
	return row.toRequest(), nil
}

func (tx *gormTx) Get(id string) (request.Request, error) {
	return tx.first(tx.room().Where("request_id = ?", id), id)
}

func (tx *gormTx) FindOldestPendingForTarget(handle string) (request.Request, error) {
	query := tx.room().Where("status = ? AND target = ?", string(request.StatusPending), handle)
	return tx.first(query, "no pending request for "+handle)
}

func (tx *gormTx) Complete(id, fulfiller string, at time.Time) (request.Request, error) {
	if tx.readOnly {
		return request.Request{}, request.ErrReadOnly
	}

	completedAt := at.UTC()
	result := tx.room().Where("request_id = ? AND status = ?", id, string(request.StatusPending)).Updates(map[string]interface{}{
		"status":       string(request.StatusCompleted),
		"fulfiller":    fulfiller,
		"completed_at": &completedAt,
	})
	if result.Error != nil {
		return request.Request{}, fmt.Errorf("failed to update request %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := tx.Get(id)
		if err != nil {
			return request.Request{}, err
		}
		return request.Request{}, fmt.Errorf("%w: request %s is already %s", request.ErrInvalidTransition, id, current.Status)
	}
	return tx.Get(id)
}
