package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cun0/vessel-notify/internal/auth"
	"github.com/cun0/vessel-notify/internal/httpserver/middleware"
	"github.com/cun0/vessel-notify/internal/ingest"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/metrics"
)

type Config struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

func BuildHandler(cfg Config, logger *jsonlog.Logger, ingestor ingest.Ingestor, store NotificationStore, hub StreamHub, checker auth.Checker) http.Handler {
	h := New(logger, ingestor, store, hub)

	const maxWebhookBody = 1 << 20 // 1MB

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recover(logger),
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Metrics(),
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id", "X-User-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/", h.Root)
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	authenticate := middleware.Authenticate(checker, logger)

	r.Route("/notifications", func(r chi.Router) {
		// no request timeout: the stream lives as long as the subscriber
		r.With(authenticate).Get("/stream", h.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			r.With(middleware.BodyLimit(maxWebhookBody)).Post("/webhook/zone-port-event", h.PostZonePortEvent)
			r.With(middleware.BodyLimit(maxWebhookBody)).Post("/webhook/vessel-event", h.PostVesselEvent)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Get("/", h.ListNotifications)
				r.Get("/stats", h.GetStats)
				r.Get("/{id}", h.GetNotification)
			})
		})
	})

	return r
}
