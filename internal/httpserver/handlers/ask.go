package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/webstead/foyer/internal/httpserver/deps"
)

// Ask answers the TLS terminator's certificate admission query. The
// terminator calls it inline during the first handshake for an unseen
// hostname, so every answer must be immediate and every failure mode must
// read as a refusal.
func Ask(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := url.ParseQuery(r.URL.RawQuery)
		if err != nil {
			http.Error(w, "malformed query", http.StatusBadRequest)
			return
		}

		host := strings.TrimSpace(q.Get("domain"))
		if host == "" {
			http.Error(w, "missing domain parameter", http.StatusBadRequest)
			return
		}

		decision := d.Gate.Admit(host)
		if !decision.Allowed {
			http.Error(w, fmt.Sprintf("domain %q not served here", host), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "domain %q available (site %q)\n", host, decision.Domain)
	}
}
