package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webstead/foyer/internal/config"
	"github.com/webstead/foyer/internal/httpserver/deps"
	"github.com/webstead/foyer/internal/httpserver/mw"
	"github.com/webstead/foyer/internal/httpserver/routes"
	"github.com/webstead/foyer/internal/logger"
	"github.com/webstead/foyer/internal/tlsgate"
	"github.com/webstead/foyer/internal/utils"
)

// Server is the front door: the plaintext redirect listener, the TLS data
// plane, and the admin listener for admission queries and deploy webhooks.
type Server struct {
	httpSrv  *http.Server
	httpsSrv *http.Server // nil when the TLS issuer is off
	adminSrv *http.Server
	logger   logger.Logger
}

// New wires the three listeners. dataPlane handles site traffic; requests
// on the plaintext port are answered with ACME challenges and a permanent
// redirect, except when the issuer is off, in which case the data plane
// serves plaintext directly.
func New(cfg *config.Config, loggerClient, accessLog logger.Logger, issuer *tlsgate.Issuer, dataPlane http.Handler, d deps.Deps) *Server {
	access := mw.Log(accessLog)

	var plain http.Handler
	if issuer.Enabled() {
		plain = issuer.HTTPHandler(RedirectHTTPS(cfg.HTTPSAddr))
	} else {
		plain = dataPlane
	}

	// No Read/WriteTimeout on the public listeners: backends stream large
	// uploads and responses, and the proxy handler bounds each exchange
	// itself.
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           access(plain),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	var httpsSrv *http.Server
	if issuer.Enabled() {
		httpsSrv = &http.Server{
			Addr:              cfg.HTTPSAddr,
			Handler:           access(dataPlane),
			TLSConfig:         issuer.TLSConfig(),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
	}

	// No WriteTimeout here either: the webhook relay waits on deployments
	// and enforces its own per-request bound.
	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           NewAdminRouter(loggerClient, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{
		httpSrv:  httpSrv,
		httpsSrv: httpsSrv,
		adminSrv: adminSrv,
		logger:   loggerClient,
	}
}

// NewAdminRouter builds the admin-port router: the admission query and the
// deployment webhook, nothing else. Unknown paths and methods answer 400 so
// the port never passes for a site.
func NewAdminRouter(loggerClient logger.Logger, d deps.Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID) // X-Request-ID on each request
	r.Use(middleware.Recoverer) // never crash the process on panic
	r.Use(mw.Log(loggerClient))
	r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, loggerClient))

	routes.RegisterAll(r, d)

	r.NotFound(badRequest)
	r.MethodNotAllowed(badRequest)

	return r
}

func badRequest(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "bad request", http.StatusBadRequest)
}

// RedirectHTTPS answers every plaintext request with a permanent redirect
// to the same URL on the TLS port.
func RedirectHTTPS(httpsAddr string) http.Handler {
	suffix := ""
	if _, port, err := net.SplitHostPort(httpsAddr); err == nil && port != "" && port != "443" {
		suffix = ":" + port
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := utils.ParseHostNoPort(r.Host)
		if host == "" {
			http.Error(w, "missing host", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+host+suffix+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// Start runs all listeners and blocks until the first one fails or every
// one closes. http.ErrServerClosed is expected on graceful shutdown.
func (s *Server) Start() error {
	errCh := make(chan error, 3)

	s.serve(errCh, "http", s.httpSrv, (*http.Server).ListenAndServe)
	if s.httpsSrv != nil {
		s.serve(errCh, "https", s.httpsSrv, func(srv *http.Server) error {
			return srv.ListenAndServeTLS("", "")
		})
	}
	s.serve(errCh, "admin", s.adminSrv, (*http.Server).ListenAndServe)

	return <-errCh
}

func (s *Server) serve(errCh chan<- error, name string, srv *http.Server, run func(*http.Server) error) {
	s.logger.Infof("%s listener on %s", name, srv.Addr)
	go func() {
		err := run(srv)
		if err == http.ErrServerClosed {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("%s listener: %w", name, err)
		}
		errCh <- err
	}()
}

// Stop gracefully shuts down every listener with the provided context
// deadline, returning the first error encountered.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("front door shutting down...")

	var firstErr error
	for _, srv := range []*http.Server{s.httpSrv, s.httpsSrv, s.adminSrv} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
