package httpserver

import (
	"net/http"
	"time"

	"github.com/cun0/vessel-notify/internal/httpserver/middleware"
)

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	// If not provided: default last 1 hour.
	from, to, ok := h.window(w, r, time.Hour)
	if !ok {
		return
	}

	counts, err := h.store.Counts(r.Context(), userID, from, to)
	if err != nil {
		h.logger.PrintError(err, map[string]string{
			"request_id": middleware.GetRequestID(r.Context()),
			"component":  "get_stats",
		})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type kindRow struct {
		Kind     string `json:"kind"`
		Total    int64  `json:"total"`
		Screened int64  `json:"screened"`
	}

	var total, screened int64
	out := make([]kindRow, 0, len(counts))
	for _, c := range counts {
		out = append(out, kindRow{
			Kind:     string(c.Kind),
			Total:    c.Total,
			Screened: c.Screened,
		})
		total += c.Total
		screened += c.Screened
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"from":      from.Unix(),
		"to":        to.Unix(),
		"total":     total,
		"screened":  screened,
		"group_by":  "kind",
		"breakdown": out,
	})
}
