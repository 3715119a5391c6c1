package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/metrics"
)

type Config struct {
	MaxSubscribers  int
	OutboxSize      int
	HeartbeatPeriod time.Duration
	IdleTimeout     time.Duration
}

// Hub fans messages out to every registered subscriber.
// Publishing never blocks: a subscriber whose outbox is full is evicted.
type Hub struct {
	cfg    Config
	logger *jsonlog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	subs   map[string]*Subscriber
	closed bool
}

func NewHub(cfg Config, logger *jsonlog.Logger) *Hub {
	if cfg.MaxSubscribers <= 0 {
		cfg.MaxSubscribers = 1000
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 100
	}
	if cfg.HeartbeatPeriod <= 0 {
		cfg.HeartbeatPeriod = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		clock:  time.Now,
		subs:   make(map[string]*Subscriber),
	}
}

func (h *Hub) NewSubscriber() *Subscriber {
	return NewSubscriber(h.cfg.OutboxSize)
}

// Register adds s to the hub. It reports false when the hub is at capacity or closed.
func (h *Hub) Register(s *Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.subs) >= h.cfg.MaxSubscribers {
		metrics.StreamRejections.Inc()
		return false
	}
	s.registeredAt = h.clock().UTC()
	h.subs[s.id] = s
	metrics.StreamSubscribers.Set(float64(len(h.subs)))
	return true
}

// Deregister removes s. Calling it more than once, or after eviction, is a no-op.
func (h *Hub) Deregister(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		metrics.StreamSubscribers.Set(float64(len(h.subs)))
	}
	h.mu.Unlock()
	s.close()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers m to every current subscriber.
func (h *Hub) Publish(m Message) {
	frame, err := Frame(m)
	if err != nil {
		h.logger.PrintError(err, map[string]string{
			"op":   "broadcast",
			"type": string(m.Type),
		})
		return
	}
	h.fanout(frame)
	metrics.StreamMessages.WithLabelValues(string(m.Type)).Inc()
}

// PublishNotification announces a stored record to all subscribers.
func (h *Hub) PublishNotification(n domain.Notification) {
	h.Publish(NotificationMessage(n, h.clock()))
}

func (h *Hub) Heartbeat() {
	h.Publish(HeartbeatMessage(h.clock()))
}

func (h *Hub) fanout(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.subs {
		select {
		case s.outbox <- frame:
		default:
			delete(h.subs, id)
			s.close()
			metrics.StreamEvictions.Inc()
			h.logger.PrintWarn("stream subscriber evicted", map[string]string{
				"subscriber_id": id,
				"reason":        "outbox full",
			})
		}
	}
	metrics.StreamSubscribers.Set(float64(len(h.subs)))
}

// Run emits a heartbeat every HeartbeatPeriod until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	t := time.NewTicker(h.cfg.HeartbeatPeriod)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			h.Heartbeat()
		}
	}
}

// Close evicts every subscriber and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.close()
	}
	metrics.StreamSubscribers.Set(0)
}

// Pump drains s into write until ctx is done, s is evicted, or nothing arrives
// within IdleTimeout. It always deregisters s before returning.
func (h *Hub) Pump(ctx context.Context, s *Subscriber, write func([]byte) error) error {
	defer h.Deregister(s)

	idle := time.NewTimer(h.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case <-idle.C:
			h.logger.PrintInfo("stream idle timeout", map[string]string{
				"subscriber_id": s.id,
			})
			return nil
		case frame := <-s.outbox:
			if err := write(frame); err != nil {
				return err
			}
			idle.Reset(h.cfg.IdleTimeout)
		}
	}
}
