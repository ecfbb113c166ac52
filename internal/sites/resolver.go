package sites

import (
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/webstead/foyer/internal/domain"
	"github.com/webstead/foyer/internal/logger"
)

const (
	// DefaultHitTTL is how long a positive directory probe is trusted.
	DefaultHitTTL = 30 * time.Second
	// DefaultMissTTL is how long a negative probe is trusted. Kept short so
	// a fresh deploy becomes reachable quickly even without the watcher.
	DefaultMissTTL = 5 * time.Second
)

// Resolver answers whether a canonical site identifier is deployed under
// the sites root. Probes are single stat calls cached with separate TTLs
// for hits and misses, so a burst of TLS handshakes for unknown hostnames
// cannot hammer the filesystem.
type Resolver struct {
	root    string
	cache   *gocache.Cache
	hitTTL  time.Duration
	missTTL time.Duration
	logger  logger.Logger
}

func NewResolver(root string, hitTTL, missTTL time.Duration, log logger.Logger) *Resolver {
	if hitTTL <= 0 {
		hitTTL = DefaultHitTTL
	}
	if missTTL <= 0 {
		missTTL = DefaultMissTTL
	}
	return &Resolver{
		root:    root,
		cache:   gocache.New(hitTTL, 2*hitTTL),
		hitTTL:  hitTTL,
		missTTL: missTTL,
		logger:  log,
	}
}

// Exists reports whether id names a deployed site directory. Identifiers
// that fail validation never exist, regardless of filesystem contents, and
// probe errors count as absent: admission stays fail-closed.
func (r *Resolver) Exists(id string) bool {
	if !domain.ValidSiteID(id) {
		return false
	}

	if v, ok := r.cache.Get(id); ok {
		return v.(bool)
	}

	ok := r.probe(id)
	ttl := r.missTTL
	if ok {
		ttl = r.hitTTL
	}
	r.cache.Set(id, ok, ttl)
	r.logger.Debug("site probe",
		logger.String("site", id),
		logger.Bool("exists", ok))
	return ok
}

func (r *Resolver) probe(id string) bool {
	info, err := os.Stat(filepath.Join(r.root, id))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Invalidate drops the cached answer for id so the next lookup probes the
// filesystem again.
func (r *Resolver) Invalidate(id string) {
	r.cache.Delete(id)
}

// Flush drops every cached answer.
func (r *Resolver) Flush() {
	r.cache.Flush()
}

// Root returns the sites root path.
func (r *Resolver) Root() string {
	return r.root
}
