package screening

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/metrics"
)

var ErrStopped = errors.New("screening supervisor stopped")

type screener interface {
	Screen(ctx context.Context, rec domain.Notification) Session
}

// Supervisor owns every running screening session. Launch returns immediately;
// Stop cancels the sessions and waits for them to unwind.
type Supervisor struct {
	engine screener
	logger *jsonlog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

func NewSupervisor(engine screener, logger *jsonlog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		engine: engine,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
}

// Launch starts a session for rec in the background.
func (s *Supervisor) Launch(rec domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	s.wg.Add(1)
	s.inFlight.Add(1)
	metrics.ScreeningInFlight.Inc()

	go func() {
		defer func() {
			if rv := recover(); rv != nil {
				s.logger.PrintErrorWithTrace(fmt.Errorf("screening panic: %v", rv), map[string]string{
					"component":       "screening_supervisor",
					"notification_id": rec.ID,
				})
			}
			metrics.ScreeningInFlight.Dec()
			s.inFlight.Add(-1)
			s.wg.Done()
		}()
		s.engine.Screen(s.ctx, rec)
	}()
	return nil
}

func (s *Supervisor) InFlight() int {
	return int(s.inFlight.Load())
}

// Stop is idempotent. It returns ctx.Err() if sessions are still unwinding when ctx ends.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
