package db

import (
	"time"

	"github.com/tejzpr/filerequest-bot/internal/request"
)

// FileRequest is the row form of request.Request. Seq records insertion
// order and breaks created_at ties.
type FileRequest struct {
	Seq         uint       `gorm:"primaryKey;autoIncrement"`
	RequestID   string     `gorm:"column:request_id;uniqueIndex;not null"`
	RoomID      string     `gorm:"index:idx_room_status_target;not null"`
	Status      string     `gorm:"index:idx_room_status_target;not null;default:pending"`
	Target      string     `gorm:"index:idx_room_status_target;not null"`
	Requester   string     `gorm:"not null"`
	Label       string     `gorm:"not null"`
	Reference   string     `gorm:"type:text;not null"`
	CreatedAt   time.Time  `gorm:"index"`
	CompletedAt *time.Time
	Fulfiller   string `gorm:"not null;default:''"`
}

func (FileRequest) TableName() string {
	return "file_requests"
}

func fromRequest(r request.Request) FileRequest {
	row := FileRequest{
		RequestID: r.ID,
		RoomID:    r.RoomID,
		Status:    string(r.Status),
		Target:    r.Target,
		Requester: r.Requester,
		Label:     r.Label,
		Reference: r.Reference,
		CreatedAt: r.CreatedAt.UTC(),
		Fulfiller: r.Fulfiller,
	}
	if r.CompletedAt != nil {
		at := r.CompletedAt.UTC()
		row.CompletedAt = &at
	}
	return row
}

func (row FileRequest) toRequest() request.Request {
	r := request.Request{
		ID:        row.RequestID,
		RoomID:    row.RoomID,
		Requester: row.Requester,
		Target:    row.Target,
		Label:     row.Label,
		Reference: row.Reference,
		Status:    request.Status(row.Status),
		CreatedAt: row.CreatedAt,
		Fulfiller: row.Fulfiller,
	}
	if row.CompletedAt != nil {
		at := *row.CompletedAt
		r.CompletedAt = &at
	}
	return r
}
