package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/httpserver/middleware"
)

const statusClientClosedRequest = 499

func (h *Handler) PostZonePortEvent(w http.ResponseWriter, r *http.Request) {
	h.postWebhook(w, r, domain.KindZonePort,
		"Notification stored successfully",
		"Failed to process notification")
}

func (h *Handler) PostVesselEvent(w http.ResponseWriter, r *http.Request) {
	h.postWebhook(w, r, domain.KindVessel,
		"Vessel notification stored successfully",
		"Failed to process vessel notification")
}

func (h *Handler) postWebhook(w http.ResponseWriter, r *http.Request, kind domain.Kind, okMsg, failMsg string) {
	raw, err := readBody(r.Body)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if !domain.IsDocument(raw) {
		writeError(w, http.StatusBadRequest, domain.ErrNotDocument.Error())
		return
	}

	res, err := h.ingest.Ingest(r.Context(), kind, raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotDocument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled):
			writeError(w, statusClientClosedRequest, "client closed request")
		default:
			h.logger.PrintError(err, map[string]string{
				"request_id": middleware.GetRequestID(r.Context()),
				"component":  "webhook",
				"kind":       string(kind),
			})
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", failMsg, err))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"message":         okMsg,
		"notification_id": res.ID(),
	})
}
