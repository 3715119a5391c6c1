package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cun0/vessel-notify/internal/config"
	"github.com/cun0/vessel-notify/internal/jsonlog"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the server until ctx is cancelled. onShutdown runs before the server drains,
// so long-lived streams and background work are released first.
func Serve(ctx context.Context, cfg config.HTTPConfig, logger *jsonlog.Logger, handler http.Handler, onShutdown func(context.Context) error) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ErrorLog:          log.New(logger, "", 0),
		IdleTimeout:       60 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	shutdownError := make(chan error, 1)

	go func() {
		<-ctx.Done()

		logger.PrintInfo("shutting down server", map[string]string{
			"addr": srv.Addr,
		})

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if onShutdown != nil {
			if err := onShutdown(sctx); err != nil {
				logger.PrintError(err, map[string]string{
					"component": "shutdown_hook",
				})
			}
		}

		shutdownError <- srv.Shutdown(sctx)
	}()

	logger.PrintInfo("starting server", map[string]string{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownError; err != nil {
		return err
	}

	logger.PrintInfo("stopped server", map[string]string{
		"addr": srv.Addr,
	})
	return nil
}
