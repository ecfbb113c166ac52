package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/webstead/foyer/internal/httpserver/deps"
	"github.com/webstead/foyer/internal/httpserver/handlers"
	"github.com/webstead/foyer/internal/httpserver/mw"
)

func init() { Register(registerAsk) }

func registerAsk(r chi.Router, d deps.Deps) {
	r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:      d.RateBurst,
		PerMinute:  d.RatePerMin,
		TrustProxy: d.TrustProxy,
	})).Get("/api/ask", handlers.Ask(d))
}
