// Package requestinfo carries per-request client metadata (IP address, user
// agent, request URI and method) through context so that managers and the
// audit recorder can attach it to their records without touching net/http.
package requestinfo

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Unknown substitutes for client metadata that could not be determined. A
// deliberate fallback, not a failure.
const Unknown = "Unknown"

const maxUserAgentLen = 512

// Info holds the client metadata captured at the request boundary.
type Info struct {
	IPAddress     string
	UserAgent     string
	RequestURI    string
	RequestMethod string
	RequestID     string
}

// Complete reports whether both IP address and user agent were captured.
func (i Info) Complete() bool {
	return i.IPAddress != "" && i.UserAgent != ""
}

// OrUnknown returns a copy with empty IP/user-agent fields replaced by the
// Unknown placeholder.
func (i Info) OrUnknown() Info {
	if i.IPAddress == "" {
		i.IPAddress = Unknown
	}
	if i.UserAgent == "" {
		i.UserAgent = Unknown
	}
	return i
}

type contextKey string

const infoKey contextKey = "request_info"

// NewContext returns a context carrying the given request info.
func NewContext(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// FromContext retrieves request info from the context. The zero Info is
// returned when none was attached.
func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(infoKey).(Info)
	return info, ok
}

// FromRequest extracts client metadata from an HTTP request and assigns a
// fresh request id.
func FromRequest(r *http.Request) Info {
	return Info{
		IPAddress:     clientIP(r),
		UserAgent:     truncateUserAgent(r.UserAgent()),
		RequestURI:    r.URL.RequestURI(),
		RequestMethod: r.Method,
		RequestID:     uuid.NewString(),
	}
}

// Middleware attaches request info to every request's context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(r.Context(), FromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP resolves the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the originating client.
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return host
}

func truncateUserAgent(ua string) string {
	if len(ua) > maxUserAgentLen {
		return ua[:maxUserAgentLen]
	}
	return ua
}
