package middleware

import (
	"net"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
	"github.com/rs/zerolog"
)

const TooManyRequestsMessage = "Too many requests, please try again later."

// RateLimitMiddleware 依來源 IP 限流，需放在 RealIP 之後
// 限流器本身出錯時放行，不因 redis 異常擋住登入與結帳
func RateLimitMiddleware(limiter ratelimit.Limiter, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("client", key).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "1")
				response.ErrorJSON(w, http.StatusTooManyRequests, response.ResponseError{Error: TooManyRequestsMessage})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
