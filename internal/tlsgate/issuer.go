package tlsgate

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"

	"github.com/webstead/foyer/internal/config"
	"github.com/webstead/foyer/internal/logger"
)

// Issuer owns the TLS configuration of the front door. In acme mode
// certificates are requested on demand at the first handshake for a
// hostname, with the gate consulted before issuance; selfsigned mints
// throwaway per-host certificates for development, still behind the gate;
// off disables the TLS listener entirely.
type Issuer struct {
	mode    string
	manager *autocert.Manager
	self    *selfSigner
	logger  logger.Logger
}

type Options struct {
	Mode      string // config.IssuerACME | config.IssuerSelfSigned | config.IssuerOff
	Email     string // ACME account contact
	Directory string // ACME directory URL, empty = Let's Encrypt production
	Cache     autocert.Cache
}

func NewIssuer(gate *Gate, opts Options, log logger.Logger) (*Issuer, error) {
	switch opts.Mode {
	case config.IssuerOff:
		log.Warn("TLS issuer disabled, serving plain HTTP only")
		return &Issuer{mode: opts.Mode, logger: log}, nil

	case config.IssuerSelfSigned:
		log.Info("TLS issuer in selfsigned mode, certificates are not publicly trusted")
		return &Issuer{mode: opts.Mode, self: newSelfSigner(gate), logger: log}, nil

	case config.IssuerACME:
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Email:      opts.Email,
			HostPolicy: gate.HostPolicy(),
			Cache:      opts.Cache,
		}
		if opts.Directory != "" {
			m.Client = &acme.Client{DirectoryURL: opts.Directory}
			log.Info("TLS issuer in acme mode", logger.String("directory", opts.Directory))
		} else {
			log.Info("TLS issuer in acme mode", logger.String("directory", acme.LetsEncryptURL))
		}
		return &Issuer{mode: opts.Mode, manager: m, logger: log}, nil

	default:
		return nil, fmt.Errorf("unknown TLS issuer mode %q", opts.Mode)
	}
}

// Enabled reports whether a TLS listener should run at all.
func (i *Issuer) Enabled() bool {
	return i.mode != config.IssuerOff
}

// TLSConfig returns the tls.Config for the HTTPS listener, or nil when the
// issuer is off.
func (i *Issuer) TLSConfig() *tls.Config {
	switch i.mode {
	case config.IssuerACME:
		return i.manager.TLSConfig()
	case config.IssuerSelfSigned:
		return &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: i.self.GetCertificate,
		}
	default:
		return nil
	}
}

// HTTPHandler wraps fallback so ACME HTTP-01 challenges are answered on the
// plaintext port in acme mode; in other modes fallback is returned unchanged.
func (i *Issuer) HTTPHandler(fallback http.Handler) http.Handler {
	if i.mode == config.IssuerACME {
		return i.manager.HTTPHandler(fallback)
	}
	return fallback
}
