package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/httpserver/middleware"
	"github.com/cun0/vessel-notify/internal/repo"
)

const (
	defaultListLimit  = 100
	defaultListWindow = 24 * time.Hour
)

// GetNotification returns a record owned by the caller. Records of other users
// are reported as missing.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	n, err := h.store.FindByID(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && (n.UserID == nil || *n.UserID != userID)) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		h.logger.PrintError(err, map[string]string{
			"request_id": middleware.GetRequestID(r.Context()),
			"component":  "get_notification",
		})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, n)
}

type listQuery struct {
	Kind  string `query:"kind" validate:"omitempty,oneof=zone_port_event vessel_event zone-port-event vessel-event"`
	Limit int    `query:"limit" validate:"gte=1,lte=500"`
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lq := listQuery{
		Kind:  strings.TrimSpace(q.Get("kind")),
		Limit: defaultListLimit,
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		lq.Limit = n
	}
	if err := h.validate.Struct(lq); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	from, to, ok := h.window(w, r, defaultListWindow)
	if !ok {
		return
	}

	f := repo.ListFilter{
		UserID: middleware.GetUserID(r.Context()),
		From:   from,
		To:     to,
		Limit:  lq.Limit,
	}
	if lq.Kind != "" {
		kind, err := domain.ParseKind(lq.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid kind")
			return
		}
		f.Kind = kind
	}

	items, err := h.store.ListByUser(r.Context(), f)
	if err != nil {
		h.logger.PrintError(err, map[string]string{
			"request_id": middleware.GetRequestID(r.Context()),
			"component":  "list_notifications",
		})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": f.UserID,
		"from":    from.Unix(),
		"to":      to.Unix(),
		"count":   len(items),
		"items":   items,
	})
}

// window reads from/to (unix seconds or millis). A missing to is now; a missing
// from is span before to.
func (h *Handler) window(w http.ResponseWriter, r *http.Request, span time.Duration) (from, to time.Time, ok bool) {
	q := r.URL.Query()

	from, hasFrom, err := parseUnixParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return time.Time{}, time.Time{}, false
	}
	to, hasTo, err := parseUnixParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return time.Time{}, time.Time{}, false
	}

	if !hasTo {
		to = h.clock().UTC()
	}
	if !hasFrom {
		from = to.Add(-span)
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must be < to")
		return time.Time{}, time.Time{}, false
	}
	return from.UTC(), to.UTC(), true
}

// parseUnixParam accepts seconds or milliseconds.
// return ok=false if empty.
func parseUnixParam(v string) (t time.Time, ok bool, err error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}

	// millis heuristic
	if n >= 1_000_000_000_000 {
		return time.UnixMilli(n).UTC(), true, nil
	}
	return time.Unix(n, 0).UTC(), true, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid query"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "gte", "lte":
		return fe.Field() + " must be between 1 and 500"
	default:
		return "invalid " + fe.Field()
	}
}
