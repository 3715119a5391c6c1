package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber is one live stream connection. The hub writes into the outbox;
// the stream endpoint drains it until Done is closed.
type Subscriber struct {
	id           string
	registeredAt time.Time
	outbox       chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewSubscriber(capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = 1
	}
	return &Subscriber{
		id:     uuid.NewString(),
		outbox: make(chan []byte, capacity),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) ID() string              { return s.id }
func (s *Subscriber) RegisteredAt() time.Time { return s.registeredAt }
func (s *Subscriber) Outbox() <-chan []byte   { return s.outbox }

// Done is closed once the subscriber has been deregistered or evicted.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
