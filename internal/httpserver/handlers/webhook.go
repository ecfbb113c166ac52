package handlers

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"net/http/httputil"

	"github.com/webstead/foyer/internal/httpserver/deps"
	"github.com/webstead/foyer/internal/logger"
)

// Webhook relays deployment triggers to the deploy handler's socket,
// rewriting the request onto the handler's fixed entry point. Method, body,
// and headers pass through unchanged. When a shared secret is configured
// the relay checks it before forwarding, so an unauthenticated caller never
// reaches the handler at all.
func Webhook(d deps.Deps) http.HandlerFunc {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = "http"
			req.URL.Host = "deploy"
			req.URL.Path = "/hooks/deploy"
			req.URL.RawPath = ""
		},
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", d.WebhookSocket)
			},
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			d.Logger.Error("webhook relay failed",
				logger.String("socket", d.WebhookSocket),
				logger.Error(err))
			http.Error(w, "deploy handler unavailable", http.StatusBadGateway)
		},
	}

	secret := []byte(d.WebhookSecret)

	return func(w http.ResponseWriter, r *http.Request) {
		if len(secret) > 0 {
			token := []byte(r.Header.Get("X-Hook-Token"))
			if subtle.ConstantTimeCompare(token, secret) != 1 {
				d.Logger.Warn("webhook rejected: bad or missing token",
					logger.String("remote_ip", r.RemoteAddr))
				http.Error(w, "invalid webhook token", http.StatusForbidden)
				return
			}
		}

		ctx := r.Context()
		if d.WebhookTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.WebhookTimeout)
			defer cancel()
		}

		proxy.ServeHTTP(w, r.WithContext(ctx))
	}
}
