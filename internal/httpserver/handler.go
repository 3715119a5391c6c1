package httpserver

import (
	"context"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cun0/vessel-notify/internal/broadcast"
	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/ingest"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/repo"
)

type NotificationStore interface {
	FindByID(ctx context.Context, id string) (domain.Notification, error)
	ListByUser(ctx context.Context, f repo.ListFilter) ([]domain.Notification, error)
	Counts(ctx context.Context, userID string, from, to time.Time) ([]repo.KindCount, error)
	Ping(ctx context.Context) error
}

type StreamHub interface {
	NewSubscriber() *broadcast.Subscriber
	Register(s *broadcast.Subscriber) bool
	Deregister(s *broadcast.Subscriber)
	Pump(ctx context.Context, s *broadcast.Subscriber, write func([]byte) error) error
}

type Handler struct {
	logger   *jsonlog.Logger
	ingest   ingest.Ingestor
	store    NotificationStore
	hub      StreamHub
	validate *validator.Validate
	clock    func() time.Time
}

func New(logger *jsonlog.Logger, ingestor ingest.Ingestor, store NotificationStore, hub StreamHub) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})

	return &Handler{
		logger:   logger,
		ingest:   ingestor,
		store:    store,
		hub:      hub,
		validate: v,
		clock:    time.Now,
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "Welcome to the Insights API server!"})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.PrintError(err, map[string]string{
			"component": "healthz",
		})
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
