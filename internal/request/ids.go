package request

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces request ids. Ids must be unique across all rooms for
// the lifetime of the process.
type IDGenerator interface {
	NewID(roomID string) string
}

// SequenceGenerator issues ids of the form "<room>_<n>" where n counts up
// from 1 independently for every room. The counter never contains an
// underscore, so splitting on the last one recovers the pair and ids from
// different rooms cannot collide.
type SequenceGenerator struct {
	mu   sync.Mutex
	next map[string]uint64
}

// NewSequenceGenerator creates a SequenceGenerator with every room at 1.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{next: make(map[string]uint64)}
}

func (g *SequenceGenerator) NewID(roomID string) string {
	g.mu.Lock()
	g.next[roomID]++
	n := g.next[roomID]
	g.mu.Unlock()
	return fmt.Sprintf("%s_%d", roomID, n)
}

// UUIDGenerator issues random version 4 UUIDs and ignores the room.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(string) string {
	return uuid.NewString()
}
