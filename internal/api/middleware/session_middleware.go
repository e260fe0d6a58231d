package middleware

import (
	"context"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/model"
)

type holderKey struct{}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func userHolderFrom(ctx context.Context) *userHolder {
	h, _ := ctx.Value(holderKey{}).(*userHolder)
	return h
}

type SessionGuard interface {
	Require(navigationID string) (model.User, error)
}

// RequireSession 需要登入的路由，導覽 id 由 X-Navigation-ID 帶入
func RequireSession(guard SessionGuard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := guard.Require(r.Header.Get(constants.NavigationIDHeader))
			if err != nil {
				response.FromError(w, err)
				return
			}
			setUserEmail(r, user)
			ctx := context.WithValue(r.Context(), constants.UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext RequireSession 之後的 handler 使用
func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(constants.UserContextKey).(model.User)
	return user, ok
}
