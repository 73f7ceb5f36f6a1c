package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxInboundRequestIDLen caps caller-supplied ids so a hostile client cannot
// bloat access logs through the header.
const maxInboundRequestIDLen = 64

type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

// RequestID propagates the caller's request id, or mints one, so an export
// can be traced from access log to pipeline warnings.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if len(rid) > maxInboundRequestIDLen {
			rid = rid[:maxInboundRequestIDLen]
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
