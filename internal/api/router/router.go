package router

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	m "github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Deps struct {
	Server   *api.Server
	Guard    m.SessionGuard
	Observer m.RequestObserver
	Metrics  http.Handler
	Limiter  ratelimit.Limiter // nil 時不限流
	Logger   zerolog.Logger
}

func SetupRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// 全局中間件
	r.Use(m.RequestIdMiddleware)
	r.Use(middleware.RealIP)
	r.Use(m.LoggerMiddleware(d.Logger))
	if d.Observer != nil {
		r.Use(m.MetricsMiddleware(d.Observer))
	}

	r.Get("/health", handler.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	s := d.Server
	limited := func(r chi.Router) chi.Router {
		if d.Limiter == nil {
			return r
		}
		return r.With(m.RateLimitMiddleware(d.Limiter, d.Logger))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.SessionHandler.Get)
			limited(r).Post("/signin", s.SessionHandler.SignIn)
			limited(r).Post("/signup", s.SessionHandler.SignUp)
			limited(r).Post("/face", s.SessionHandler.Face)
			r.Post("/logout", s.SessionHandler.Logout)
		})

		r.Get("/products", s.ProductHandler.List)

		// 需要登入
		r.Group(func(r chi.Router) {
			r.Use(m.RequireSession(d.Guard))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.CartHandler.Get)
				r.Post("/items", s.CartHandler.Add)
				r.Post("/items/{productID}/increase", s.CartHandler.Increase)
				r.Post("/items/{productID}/decrease", s.CartHandler.Decrease)
				r.Delete("/items/{productID}", s.CartHandler.Remove)
			})
			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", s.WishlistHandler.Get)
				r.Post("/toggle", s.WishlistHandler.Toggle)
			})
			r.Route("/checkout", func(r chi.Router) {
				r.Get("/delivery", s.CheckoutHandler.GetDelivery)
				r.Put("/delivery", s.CheckoutHandler.SaveDelivery)
				limited(r).Post("/", s.CheckoutHandler.Submit)
			})
			r.Get("/orders", s.OrderHandler.List)
		})
	})
	return r
}
