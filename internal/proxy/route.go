package proxy

import (
	"path/filepath"
	"strings"

	"github.com/webstead/foyer/internal/domain"
	"github.com/webstead/foyer/internal/sites"
	"github.com/webstead/foyer/internal/utils"
)

// Kind classifies how a request is handled.
type Kind int

const (
	// KindNotFound means no site serves the request.
	KindNotFound Kind = iota
	// KindStatic serves a file straight off disk.
	KindStatic
	// KindBackend forwards to a site's Unix socket.
	KindBackend
)

// Decision is the routing outcome for one request. It is computed per
// request and never persisted.
type Decision struct {
	Kind        Kind
	Host        string // requested hostname, port stripped
	Domain      string // canonical site identifier
	AssetPath   string // static only: resolved file path
	Socket      string // backend only: Unix socket path
	ForwardHost string // backend only: X-Forwarded-Host value, empty = leave untouched
}

// Router turns (host, path) pairs into routing decisions. Decisions are
// pure: the only I/O behind Route is the resolver's cached directory probe,
// so it is safe to call concurrently from every request goroutine.
type Router struct {
	normalizer *domain.Normalizer
	resolver   *sites.Resolver
	sitesRoot  string
	socketDir  string
}

func NewRouter(n *domain.Normalizer, r *sites.Resolver, sitesRoot, socketDir string) *Router {
	return &Router{
		normalizer: n,
		resolver:   r,
		sitesRoot:  sitesRoot,
		socketDir:  socketDir,
	}
}

// Route decides how to serve a request, in priority order: static asset
// prefixes first, then the .local development bypass, then socket dispatch
// for deployed sites. Hostnames that normalize to an invalid identifier
// never touch the filesystem or socket namespace.
func (rt *Router) Route(host, path string) Decision {
	id := rt.normalizer.Normalize(host)
	d := Decision{
		Kind:   KindNotFound,
		Host:   utils.ParseHostNoPort(strings.ToLower(strings.TrimSpace(host))),
		Domain: id,
	}

	if !domain.ValidSiteID(id) {
		return d
	}

	if asset, ok := rt.staticPath(id, path); ok {
		d.Kind = KindStatic
		d.AssetPath = asset
		return d
	}

	// Development hosts bypass the deployment gate: the socket is named by
	// the raw label and the Host header is forwarded untouched, so a site
	// can be exercised locally before its directory exists.
	if label, ok := domain.LocalLabel(host); ok {
		if !domain.ValidSiteID(label) {
			return d
		}
		d.Kind = KindBackend
		d.Socket = filepath.Join(rt.socketDir, label+".sock")
		return d
	}

	if rt.resolver.Exists(id) {
		d.Kind = KindBackend
		d.Socket = filepath.Join(rt.socketDir, id+".sock")
		d.ForwardHost = id
		return d
	}

	return d
}

// staticPath maps /static/* and /media/* requests to a file below the
// site's current deployment. The join is purely syntactic - existence is
// checked at serve time - but the cleaned path can never escape the asset
// directory.
func (rt *Router) staticPath(id, reqPath string) (string, bool) {
	var dir, rest string
	switch {
	case strings.HasPrefix(reqPath, "/static/"):
		dir, rest = "static", strings.TrimPrefix(reqPath, "/static/")
	case strings.HasPrefix(reqPath, "/media/"):
		dir, rest = "media", strings.TrimPrefix(reqPath, "/media/")
	default:
		return "", false
	}

	base := filepath.Join(rt.sitesRoot, id, "current", dir)
	asset := filepath.Join(base, filepath.Clean("/"+rest))
	if asset != base && !strings.HasPrefix(asset, base+string(filepath.Separator)) {
		return "", false
	}
	return asset, true
}
