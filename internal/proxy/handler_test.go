package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/webstead/foyer/internal/logger"
)

func newTestHandler(t *testing.T, deployed ...string) (*Handler, string, string) {
	t.Helper()

	router, root, socketDir := newTestRouter(t, deployed...)
	h := NewHandler(router, 500*time.Millisecond, 2*time.Second, logger.New("error", false))
	return h, root, socketDir
}

func writeAsset(t *testing.T, root, site, rel, content string) {
	t.Helper()

	p := filepath.Join(root, site, "current", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
}

func TestServeStatic(t *testing.T) {
	h, root, _ := newTestHandler(t, "shop.example.com")
	writeAsset(t, root, "shop.example.com", "static/css/app.css", "body { color: red }")

	req := httptest.NewRequest(http.MethodGet, "http://shop.example.com/static/css/app.css", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "body { color: red }" {
		t.Errorf("body = %q", got)
	}
}

func TestServeStaticMissingIsTerminal(t *testing.T) {
	// The socket directory is empty, so any backend dispatch would fail
	// with 502. A 404 here proves the static branch never falls through.
	h, _, _ := newTestHandler(t, "shop.example.com")

	req := httptest.NewRequest(http.MethodGet, "http://shop.example.com/static/missing.css", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestServeStaticDirectoryIsNotFound(t *testing.T) {
	h, root, _ := newTestHandler(t, "shop.example.com")
	writeAsset(t, root, "shop.example.com", "static/css/app.css", "x")

	for _, p := range []string{"/static/", "/static/css"} {
		req := httptest.NewRequest(http.MethodGet, "http://shop.example.com"+p, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", p, rec.Code)
		}
	}
}

func TestNotFoundNamesBothDomains(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "http://shop.stage.example.com/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"shop.stage.example.com"`) {
		t.Errorf("body does not name the requested domain: %q", body)
	}
	if !strings.Contains(body, `"shop.example.com"`) {
		t.Errorf("body does not name the canonical domain: %q", body)
	}
}

func TestNotFoundCanonicalHost(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "http://ghost.example.com/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if strings.Count(body, "ghost.example.com") != 1 {
		t.Errorf("body should name the domain exactly once: %q", body)
	}
}

func TestServeBackendDeadSocket(t *testing.T) {
	h, _, socketDir := newTestHandler(t, "shop.example.com")

	req := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "shop.example.com") {
		t.Errorf("body does not name the domain: %q", body)
	}
	if strings.Contains(body, socketDir) || strings.Contains(body, ".sock") {
		t.Errorf("body leaks socket internals: %q", body)
	}
}

func TestProxyErrorMapping(t *testing.T) {
	h, _, _ := newTestHandler(t)

	d := Decision{Kind: KindBackend, Host: "shop.example.com", Domain: "shop.example.com", Socket: "/run/x.sock"}

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"timeout maps to 504", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"dial failure maps to 502", errors.New("dial unix /run/x.sock: connect: no such file or directory"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
			req = req.WithContext(context.WithValue(req.Context(), decisionKey{}, d))
			rec := httptest.NewRecorder()

			h.proxyError(rec, req, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestProxyErrorClientCancel(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	req = req.WithContext(context.WithValue(req.Context(), decisionKey{},
		Decision{Kind: KindBackend, Host: "shop.example.com"}))
	rec := httptest.NewRecorder()

	h.proxyError(rec, req, context.Canceled)
	if rec.Body.Len() != 0 {
		t.Errorf("cancellation should not write a response, got %q", rec.Body.String())
	}
}
