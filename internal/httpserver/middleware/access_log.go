package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cun0/vessel-notify/internal/jsonlog"
)

func AccessLog(logger *jsonlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := wrap(w)

			next.ServeHTTP(sr, r)

			props := map[string]string{
				"request_id":  GetRequestID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      strconv.Itoa(sr.statusCode()),
				"bytes":       strconv.Itoa(sr.bytes),
				"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
				"remote_ip":   clientIP(r),
			}

			if sr.statusCode() >= http.StatusInternalServerError {
				logger.PrintWarn("request failed", props)
				return
			}
			logger.PrintInfo("request completed", props)
		}
		return http.HandlerFunc(fn)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
