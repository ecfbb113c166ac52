package tlsgate

import (
	"context"
	"fmt"

	"golang.org/x/crypto/acme/autocert"

	"github.com/webstead/foyer/internal/domain"
	"github.com/webstead/foyer/internal/logger"
	"github.com/webstead/foyer/internal/sites"
)

// Decision records the outcome of one admission check.
type Decision struct {
	Host    string // hostname as requested
	Domain  string // canonical site identifier it normalized to
	Allowed bool
	Reason  string
}

// Gate decides whether a certificate may be issued for a hostname. An open
// gate lets an attacker burn ACME rate limits with throwaway hostnames, so
// every failure mode resolves to deny; the allow-any-host override widens
// admission but never bypasses identifier validation.
type Gate struct {
	normalizer *domain.Normalizer
	resolver   *sites.Resolver
	allowAny   bool
	logger     logger.Logger
}

func New(n *domain.Normalizer, r *sites.Resolver, allowAny bool, log logger.Logger) *Gate {
	return &Gate{
		normalizer: n,
		resolver:   r,
		allowAny:   allowAny,
		logger:     log,
	}
}

// Admit decides certificate issuance for host.
func (g *Gate) Admit(host string) Decision {
	id := g.normalizer.Normalize(host)

	switch {
	case id == "":
		return g.deny(host, id, "empty canonical identifier")
	case !domain.ValidSiteID(id):
		return g.deny(host, id, "invalid canonical identifier")
	case g.resolver.Exists(id):
		return g.allow(host, id, "site deployed")
	case g.allowAny:
		return g.allow(host, id, "allow-any-host override")
	default:
		return g.deny(host, id, "no such site")
	}
}

// HostPolicy adapts the gate for the on-demand certificate manager: nil
// admits the handshake, an error aborts issuance.
func (g *Gate) HostPolicy() autocert.HostPolicy {
	return func(_ context.Context, host string) error {
		if d := g.Admit(host); !d.Allowed {
			return fmt.Errorf("acme: host %q not allowed", host)
		}
		return nil
	}
}

func (g *Gate) allow(host, id, reason string) Decision {
	g.logger.Info("certificate admission granted",
		logger.String("host", host),
		logger.String("site", id),
		logger.String("reason", reason))
	return Decision{Host: host, Domain: id, Allowed: true, Reason: reason}
}

func (g *Gate) deny(host, id, reason string) Decision {
	g.logger.Warn("certificate admission denied",
		logger.String("host", host),
		logger.String("site", id),
		logger.String("reason", reason))
	return Decision{Host: host, Domain: id, Allowed: false, Reason: reason}
}
