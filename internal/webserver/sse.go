package webserver

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/tejzpr/filerequest-bot/internal/gateway"
)

// Message is one server-sent event.
type Message struct {
	ID    string
	Event string
	Data  []byte
}

// Broker fans lifecycle notifications out to SSE subscribers. Slow
// subscribers miss messages instead of blocking the publisher.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan Message]struct{}
}

var _ gateway.Notifier = (*Broker)(nil)

// NewBroker creates a Broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[chan Message]struct{}),
	}
}

func (b *Broker) Subscribe() chan Message {
	ch := make(chan Message, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan Message) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// Notify implements gateway.Notifier.
func (b *Broker) Notify(n gateway.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	b.Publish(Message{ID: uuid.NewString(), Event: string(n.Kind), Data: data})
}

func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}
