// Package request models file requests raised inside group rooms and the
// lifecycle that resolves them when the targeted member uploads a file.
package request

import "time"

// Status is the lifecycle state of a Request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Request is one outstanding ask for a labeled file upload. Values handed
// out by a Store are snapshots; mutating them has no effect on the Store.
type Request struct {
	ID          string     `json:"id"`
	RoomID      string     `json:"room_id"`
	Requester   string     `json:"requester"`
	Target      string     `json:"target"`
	Label       string     `json:"label"`
	Reference   string     `json:"reference"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Fulfiller   string     `json:"fulfiller,omitempty"`
}

// Pending reports whether the request is still waiting for an upload.
func (r Request) Pending() bool {
	return r.Status == StatusPending
}

// Clone returns a deep copy so that no pointer is shared with r.
func (r Request) Clone() Request {
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}

// complete stamps the terminal state. Callers check Pending first.
func (r *Request) complete(fulfiller string, at time.Time) {
	r.Status = StatusCompleted
	r.Fulfiller = fulfiller
	r.CompletedAt = &at
}
