package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/cun0/vessel-notify/internal/broadcast"
	"github.com/cun0/vessel-notify/internal/httpserver/middleware"
)

// Stream serves text/event-stream frames from the broadcast hub until the client
// leaves, the hub evicts the subscriber, or the stream goes idle.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sub := h.hub.NewSubscriber()
	if !h.hub.Register(sub) {
		writeError(w, http.StatusServiceUnavailable, "Too many active connections")
		return
	}

	rc := http.NewResponseController(w)
	// the server-wide write timeout would cut long-lived streams
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.hub.Deregister(sub)
		writeError(w, http.StatusInternalServerError, "stream unavailable")
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	write := func(frame []byte) error {
		if _, err := w.Write(frame); err != nil {
			return err
		}
		return rc.Flush()
	}

	props := map[string]string{
		"request_id":    middleware.GetRequestID(r.Context()),
		"user_id":       middleware.GetUserID(r.Context()),
		"subscriber_id": sub.ID(),
	}

	hello, err := broadcast.Frame(broadcast.ConnectedMessage(sub.ID(), h.clock()))
	if err == nil {
		err = write(hello)
	}
	if err != nil {
		h.hub.Deregister(sub)
		h.logger.PrintError(err, props)
		return
	}

	h.logger.PrintInfo("stream opened", props)
	if err := h.hub.Pump(r.Context(), sub, write); err != nil {
		props["error"] = err.Error()
	}
	h.logger.PrintInfo("stream closed", props)
}
