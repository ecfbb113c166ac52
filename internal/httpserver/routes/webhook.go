package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/webstead/foyer/internal/httpserver/deps"
	"github.com/webstead/foyer/internal/httpserver/handlers"
)

func init() { Register(registerWebhook) }

// Deployment systems call the webhook with whatever method their pipeline
// uses, so the route accepts them all and lets the deploy handler decide.
func registerWebhook(r chi.Router, d deps.Deps) {
	r.Handle("/api/webhook", handlers.Webhook(d))
}
