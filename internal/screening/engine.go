package screening

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/metrics"
)

const statusPending = "PENDING"

var errNotUpdated = errors.New("notification missing or already screened")

type Store interface {
	UpdateScreening(ctx context.Context, id string, res domain.ScreeningResult) (int64, error)
	FindByID(ctx context.Context, id string) (domain.Notification, error)
}

type Publisher interface {
	PublishNotification(n domain.Notification)
}

type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Session is the outcome of one register/poll cycle. It is not persisted.
type Session struct {
	NotificationID string
	VesselIMO      string
	TransactionID  string
	Status         Status
	Attempt        int
	Result         *domain.ScreeningResult
	Err            error
}

// Engine runs the screening workflow for a single notification:
// extract the IMO, register it, poll until a non-pending status, then store and broadcast.
type Engine struct {
	provider  Provider
	store     Store
	publisher Publisher
	logger    *jsonlog.Logger

	clock       func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	maxAttempts int
}

func NewEngine(provider Provider, store Store, publisher Publisher, logger *jsonlog.Logger) *Engine {
	return &Engine{
		provider:    provider,
		store:       store,
		publisher:   publisher,
		logger:      logger,
		clock:       time.Now,
		sleep:       sleepContext,
		maxAttempts: MaxAttempts,
	}
}

// Screen drives rec through the workflow. It never returns an error: failures are logged
// and reported in the returned session. A cancelled ctx ends the session as failed.
func (e *Engine) Screen(ctx context.Context, rec domain.Notification) Session {
	s := Session{NotificationID: rec.ID, Status: StatusPending}

	imo, ok := domain.VesselIMO(rec.Payload)
	if !ok {
		return e.fail(s, ErrMissingIMO)
	}
	s.VesselIMO = imo

	txID, err := e.provider.Register(ctx, imo)
	if err != nil {
		return e.fail(s, fmt.Errorf("register vessel: %w", err))
	}
	if txID == "" {
		return e.fail(s, ErrNoTransactionID)
	}
	s.TransactionID = txID

	obj, done := e.poll(ctx, &s)
	if !done {
		if err := ctx.Err(); err != nil {
			return e.fail(s, fmt.Errorf("screening cancelled: %w", err))
		}
		s.Status = StatusTimedOut
		metrics.ScreeningOutcomes.WithLabelValues(s.Status.String()).Inc()
		e.logger.PrintWarn("screening timed out", e.props(s))
		return s
	}

	// A result the provider already delivered is still recorded during shutdown.
	return e.finalize(context.WithoutCancel(ctx), s, obj)
}

// poll returns the first non-pending transaction object. done is false when the attempts
// ran out or ctx was cancelled.
func (e *Engine) poll(ctx context.Context, s *Session) (obj TransactionObject, done bool) {
	for s.Attempt < e.maxAttempts {
		s.Attempt++

		resp, err := e.provider.Transaction(ctx, s.TransactionID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return TransactionObject{}, false
			}
			metrics.ScreeningPolls.WithLabelValues("error").Inc()
			props := e.props(*s)
			props["error"] = err.Error()
			e.logger.PrintDebug("screening poll failed", props)
		case len(resp.Objects) == 0:
			metrics.ScreeningPolls.WithLabelValues("empty").Inc()
		case string(resp.Objects[0].ScreeningStatus) != statusPending:
			metrics.ScreeningPolls.WithLabelValues("terminal").Inc()
			return resp.Objects[0], true
		default:
			metrics.ScreeningPolls.WithLabelValues("pending").Inc()
		}

		if s.Attempt >= e.maxAttempts {
			break
		}
		if err := e.sleep(ctx, Interval(s.Attempt)); err != nil {
			return TransactionObject{}, false
		}
	}
	return TransactionObject{}, false
}

func (e *Engine) finalize(ctx context.Context, s Session, obj TransactionObject) Session {
	res := BuildResult(s.TransactionID, obj, e.clock())

	matched, err := e.store.UpdateScreening(ctx, s.NotificationID, res)
	if err != nil {
		return e.fail(s, fmt.Errorf("store screening result: %w", err))
	}
	if matched != 1 {
		return e.fail(s, errNotUpdated)
	}

	updated, err := e.store.FindByID(ctx, s.NotificationID)
	if err != nil {
		return e.fail(s, fmt.Errorf("reload screened notification: %w", err))
	}

	s.Status = StatusResolved
	s.Result = &res
	metrics.ScreeningOutcomes.WithLabelValues(s.Status.String()).Inc()

	props := e.props(s)
	props["screening_status"] = res.Status
	e.logger.PrintInfo("screening resolved", props)

	e.publisher.PublishNotification(updated)
	return s
}

func (e *Engine) fail(s Session, err error) Session {
	s.Status = StatusFailed
	s.Err = err
	metrics.ScreeningOutcomes.WithLabelValues(s.Status.String()).Inc()
	e.logger.PrintError(err, e.props(s))
	return s
}

func (e *Engine) props(s Session) map[string]string {
	return map[string]string{
		"component":       "screening",
		"notification_id": s.NotificationID,
		"imo":             s.VesselIMO,
		"transaction_id":  s.TransactionID,
		"attempt":         strconv.Itoa(s.Attempt),
	}
}

// BuildResult maps a terminal transaction object to the stored result.
// Checks are matched by exact tag; the first occurrence wins and missing tags stay nil.
func BuildResult(transactionID string, obj TransactionObject, at time.Time) domain.ScreeningResult {
	checks := make(map[string]string, len(obj.ScreenResults))
	for _, r := range obj.ScreenResults {
		tag := string(r.Check)
		if _, seen := checks[tag]; !seen {
			checks[tag] = string(r.Status)
		}
	}
	lookup := func(tag string) *string {
		v, ok := checks[tag]
		if !ok {
			return nil
		}
		return &v
	}

	return domain.ScreeningResult{
		TransactionID:       transactionID,
		ScreeningID:         string(obj.ID),
		Status:              string(obj.ScreeningStatus),
		OverallSeverity:     string(obj.OverallSeverity),
		CompanySanctions:    lookup(domain.CheckCompanySanctions),
		ShipSanctions:       lookup(domain.CheckShipSanctions),
		ShipMovementHistory: lookup(domain.CheckShipMovementHistory),
		PSCHistory:          lookup(domain.CheckPSCHistory),
		ScreenedAt:          at.UTC(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
