package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cun0/vessel-notify/internal/auth"
	"github.com/cun0/vessel-notify/internal/jsonlog"
)

const userIDHeader = "X-User-Id"

type ctxKeyUserID struct{}

// Authenticate admits a request only when the auth service reports its user as logged in.
// The user comes from the user_id query parameter or the X-User-Id header.
func Authenticate(checker auth.Checker, logger *jsonlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
			if userID == "" {
				userID = strings.TrimSpace(r.Header.Get(userIDHeader))
			}
			if userID == "" {
				writeDetail(w, http.StatusBadRequest, "user_id is required")
				return
			}

			loggedIn, err := checker.IsLoggedIn(r.Context(), userID)
			switch {
			case errors.Is(err, auth.ErrUnknownUser):
				writeDetail(w, http.StatusNotFound, "User not found")
				return
			case err != nil:
				logger.PrintError(err, map[string]string{
					"request_id": GetRequestID(r.Context()),
					"component":  "authenticate",
				})
				writeDetail(w, http.StatusBadGateway, "Authentication service unavailable")
				return
			case !loggedIn:
				writeDetail(w, http.StatusUnauthorized, "User is not logged in")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUserID{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func GetUserID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyUserID{}).(string); ok {
		return s
	}
	return ""
}
