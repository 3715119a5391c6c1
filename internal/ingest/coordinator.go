package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/metrics"
)

//go:generate mockgen -source=coordinator.go -destination=mocks/mocks.go -package=mocks Store,Screener,Publisher

type Store interface {
	Insert(ctx context.Context, n domain.Notification) (string, error)
}

type Screener interface {
	Launch(rec domain.Notification) error
}

type Publisher interface {
	PublishNotification(n domain.Notification)
}

// Ingestor is what the webhook handlers depend on.
type Ingestor interface {
	Ingest(ctx context.Context, kind domain.Kind, raw json.RawMessage) (Result, error)
}

// Coordinator stores a webhook payload and routes the stored record either to the
// screening workflow or straight to the broadcast hub. Only the insert can fail the call.
type Coordinator struct {
	store     Store
	screener  Screener
	publisher Publisher
	logger    *jsonlog.Logger
	clock     func() time.Time
}

func NewCoordinator(store Store, screener Screener, publisher Publisher, logger *jsonlog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		screener:  screener,
		publisher: publisher,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *Coordinator) Ingest(ctx context.Context, kind domain.Kind, raw json.RawMessage) (Result, error) {
	n, err := domain.NewNotification(kind, raw, c.clock())
	if err != nil {
		metrics.NotificationsIngested.WithLabelValues(string(kind), "rejected").Inc()
		return Result{}, err
	}

	id, err := c.store.Insert(ctx, n)
	if err != nil {
		metrics.NotificationsIngested.WithLabelValues(string(kind), "failed").Inc()
		return Result{}, fmt.Errorf("store notification: %w", err)
	}
	n.ID = id
	metrics.NotificationsIngested.WithLabelValues(string(kind), "stored").Inc()

	if !n.ShouldScreen() {
		c.publisher.PublishNotification(n)
		return Result{Notification: n, Route: RouteBroadcast}, nil
	}

	if err := c.screener.Launch(n); err != nil {
		c.logger.PrintError(err, map[string]string{
			"component":       "ingest",
			"notification_id": id,
			"op":              "launch_screening",
		})
		return Result{Notification: n, Route: RouteScreeningRejected}, nil
	}
	return Result{Notification: n, Route: RouteScreening}, nil
}
