package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// quietPaths are scraped constantly. A successful hit is logged once per
// path; failures are always logged.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// RequestLog returns Echo middleware that logs one structured line per
// request. It assigns a request ID when the caller sends none, echoes it in
// the response header, and attaches the trace ID when a span is active.
// 4xx responses log at WARN and 5xx at ERROR.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	var quietSeen sync.Map

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqID := req.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Set(requestIDKey, reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			path := req.URL.Path
			status := c.Response().Status

			if _, quiet := quietPaths[path]; quiet && status < http.StatusBadRequest {
				if _, seen := quietSeen.LoadOrStore(path, struct{}{}); seen {
					return err
				}
			}

			attrs := []any{
				"method", req.Method,
				"path", path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}
			if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}

			log.Log(req.Context(), levelFor(status), "request", attrs...)
			return err
		}
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
