package middleware

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
)

// PolicyResolver supplies the per-tenant request budget.
type PolicyResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error)
}

// TenantExtractor pulls the tenant id a request is acting on.
type TenantExtractor func(r *http.Request) (id.TenantID, bool)

// TenantRateLimit enforces the tenant's api_rate_limit_per_minute with one
// token bucket per tenant. Requests without a resolvable tenant pass through;
// the handler will reject them on its own terms.
func TenantRateLimit(policies PolicyResolver, extract TenantExtractor) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		buckets = make(map[id.TenantID]*rate.Limiter)
	)
	limiterFor := func(ctx context.Context, tenantID id.TenantID) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if limiter, ok := buckets[tenantID]; ok {
			return limiter
		}
		perMinute := domain.DefaultPolicy(tenantID).APIRateLimitPerMinute
		if policy, err := policies.Resolve(ctx, tenantID); err == nil && policy.APIRateLimitPerMinute > 0 {
			perMinute = policy.APIRateLimitPerMinute
		}
		limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
		buckets[tenantID] = limiter
		return limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := extract(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if !limiterFor(r.Context(), tenantID).Allow() {
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeCapacityExceeded,
					"tenant %s exceeded its request budget", tenantID))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
