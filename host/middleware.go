package host

import (
	"context"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/json"
	"github.com/leeforge/tenantkit/metrics"
	"github.com/leeforge/tenantkit/session"
)

type contextKey string

const (
	// TraceIDKey is the key for trace ID in context
	TraceIDKey contextKey = "trace_id"
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
)

// TraceIDMiddleware reuses the request's trace ID or generates one, and
// echoes it in the response.
func TraceIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" {
				traceID = uuid.New().String()
			}

			w.Header().Set(TraceIDHeader, traceID)
			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// MetricsMiddleware records the status and duration of every request served
// for tenant.
func MetricsMiddleware(collector *metrics.Collector, tenant string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			collector.RecordRequest(tenant, status, time.Since(start).Seconds())
		})
	}
}

// ClientIPMiddleware stores the remote address for session stores that bind
// sessions to it.
func ClientIPMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			next.ServeHTTP(w, r.WithContext(session.WithClientIP(r.Context(), ip)))
		})
	}
}

// acceptable reports whether an Accept header admits one of allowed. An
// empty allowed list or an empty header admits everything.
func acceptable(accept string, allowed []string) bool {
	if len(allowed) == 0 || strings.TrimSpace(accept) == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil || params["q"] == "0" {
			continue
		}
		for _, a := range allowed {
			if matchMediaType(mt, a) {
				return true
			}
		}
	}
	return false
}

func matchMediaType(pattern, mt string) bool {
	if pattern == "*/*" || strings.EqualFold(pattern, mt) {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		typ, _, _ := strings.Cut(mt, "/")
		return strings.EqualFold(prefix, typ)
	}
	return false
}

// writeError renders err as JSON with the status it carries.
func writeError(w http.ResponseWriter, err error) {
	appErr := errors.FromError(err)
	body, mErr := json.Marshal(appErr)
	if mErr != nil {
		http.Error(w, appErr.Error(), errors.StatusOf(err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(errors.StatusOf(err))
	_, _ = w.Write(body)
}
