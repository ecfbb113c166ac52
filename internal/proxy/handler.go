package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"time"

	"github.com/webstead/foyer/internal/logger"
	"github.com/webstead/foyer/internal/utils"
)

// decisionKey carries the routing Decision through the request context so
// the shared reverse proxy's Director and DialContext can read it.
type decisionKey struct{}

// Handler is the data plane: it serves every request arriving on the public
// ports, either from disk or by forwarding to the site's Unix socket. One
// reverse proxy instance is shared across all sites; connections are pooled
// per socket because the outbound URL host is set to the socket name.
type Handler struct {
	router  *Router
	proxy   *httputil.ReverseProxy
	timeout time.Duration
	logger  logger.Logger
}

// NewHandler builds the data plane around router. dialTimeout bounds the
// socket connect, timeout bounds the whole exchange with a backend; zero
// disables the latter.
func NewHandler(router *Router, dialTimeout, timeout time.Duration, log logger.Logger) *Handler {
	h := &Handler{
		router:  router,
		timeout: timeout,
		logger:  log,
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	h.proxy = &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			d, _ := req.Context().Value(decisionKey{}).(Decision)
			req.URL.Scheme = "http"
			req.URL.Host = filepath.Base(d.Socket)
			if d.ForwardHost != "" {
				req.Header.Set("X-Forwarded-Host", d.ForwardHost)
			} else {
				req.Header.Del("X-Forwarded-Host")
			}
			if req.TLS != nil {
				req.Header.Set("X-Forwarded-Proto", "https")
			} else {
				req.Header.Set("X-Forwarded-Proto", "http")
			}
		},
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				d, _ := ctx.Value(decisionKey{}).(Decision)
				return dialer.DialContext(ctx, "unix", d.Socket)
			},
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
		ErrorHandler: h.proxyError,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d := h.router.Route(r.Host, r.URL.Path)

	switch d.Kind {
	case KindStatic:
		h.serveStatic(w, r, d)
	case KindBackend:
		h.serveBackend(w, r, d)
	default:
		h.notFound(w, d)
	}
}

// serveStatic serves the resolved asset, or 404 when it does not exist. A
// missing asset never falls through to the backend: the static prefixes are
// reserved for files.
func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request, d Decision) {
	info, err := os.Stat(d.AssetPath)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(d.AssetPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer utils.Close(f)

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) serveBackend(w http.ResponseWriter, r *http.Request, d Decision) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, decisionKey{}, d)

	h.proxy.ServeHTTP(w, r.WithContext(ctx))
}

// proxyError maps backend failures for the client: timeouts become 504,
// anything else 502, a single attempt either way. Bodies name the requested
// domain only - socket paths stay in the logs.
func (h *Handler) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	d, _ := r.Context().Value(decisionKey{}).(Decision)

	if errors.Is(err, context.Canceled) {
		h.logger.Debug("client disconnected mid-proxy",
			logger.String("host", d.Host),
			logger.String("site", d.Domain))
		return
	}

	status := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		status = http.StatusGatewayTimeout
	}

	h.logger.Error("backend unavailable",
		logger.String("host", d.Host),
		logger.String("site", d.Domain),
		logger.String("socket", d.Socket),
		logger.Int("status", status),
		logger.Error(err))

	http.Error(w, fmt.Sprintf("backend unavailable for %q", d.Host), status)
}

func (h *Handler) notFound(w http.ResponseWriter, d Decision) {
	h.logger.Warn("no site for request",
		logger.String("host", d.Host),
		logger.String("site", d.Domain))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if d.Domain != "" && d.Domain != d.Host {
		fmt.Fprintf(w, "no site for %q (canonical domain %q)\n", d.Host, d.Domain)
	} else {
		fmt.Fprintf(w, "no site for %q\n", d.Host)
	}
}
