package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// ClientInfo is the per-request client metadata attached early in the chain.
// It feeds audit event payloads and submission metadata.
type ClientInfo struct {
	IP       string
	Browser  string
	OS       string
	Mobile   bool
	Bot      bool
	RawAgent string
}

type contextKeyClientInfo struct{}

// ClientMetadata extracts the client IP and a parsed User-Agent and adds them
// to the request context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		ua := useragent.New(raw)
		browser, version := ua.Browser()

		info := ClientInfo{
			IP:       clientIP(r),
			Browser:  strings.TrimSpace(browser + " " + version),
			OS:       ua.OS(),
			Mobile:   ua.Mobile(),
			Bot:      ua.Bot(),
			RawAgent: raw,
		}
		ctx := context.WithValue(r.Context(), contextKeyClientInfo{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientInfoFromContext retrieves the client metadata, if present.
func ClientInfoFromContext(ctx context.Context) (ClientInfo, bool) {
	info, ok := ctx.Value(contextKeyClientInfo{}).(ClientInfo)
	return info, ok
}

// clientIP resolves the original client address behind proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return ""
}
