package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TLS issuer modes accepted by FOYER_TLS_ISSUER.
const (
	IssuerACME       = "acme"       // on-demand certificates from an ACME directory
	IssuerSelfSigned = "selfsigned" // per-host throwaway certificates for dev
	IssuerOff        = "off"        // no TLS listener, data plane served on the plain port
)

type Config struct {
	HTTPAddr        string        // ex: ":80"
	HTTPSAddr       string        // ex: ":443"
	AdminAddr       string        // ex: ":9090"
	ShutdownTimeout time.Duration // ex: 5s

	Debug     bool   // forces debug log level
	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	AccessLogPath       string // rotating access log file; empty = log to the main logger
	AccessLogMaxSizeMB  int    // size per rotated file
	AccessLogMaxBackups int    // old files kept

	SitesRoot string // directory holding one subdirectory per deployed site
	SocketDir string // directory holding one backend socket per site ({id}.sock)

	TLSIssuer     string // "acme" | "selfsigned" | "off"
	CertEmail     string // ACME account contact, required in acme mode
	ACMEDirectory string // ACME directory URL; empty = Let's Encrypt production
	CertDir       string // local certificate cache directory
	AllowAnyHost  bool   // admit certificate issuance for any hostname (dev override)

	CanonicalWWW bool   // rewrite bare second-level domains to their www. form
	RulesFile    string // optional YAML file with extra hostname rewrite rules

	SiteCacheTTL    time.Duration // how long a positive directory probe is cached
	SiteNegCacheTTL time.Duration // how long a negative directory probe is cached

	BackendDialTimeout time.Duration // socket connect budget, single attempt
	BackendTimeout     time.Duration // whole proxied request budget; 0 = unbounded

	WebhookSocket  string        // deploy handler socket
	WebhookSecret  string        // optional shared secret checked before relaying
	WebhookTimeout time.Duration // relay budget

	AdminAllowedCIDRS []string // optional, restrict admin port to specific IPs/CIDRs
	AdminRateBurst    int      // token bucket burst for /api/ask
	AdminRatePerMin   int      // token bucket refill for /api/ask
	TrustProxy        bool     // true => trust X-Forwarded-For on the admin port

	// Redis (optional). When RedisAddr is set, issued certificates are cached
	// in Redis so several edge replicas share them instead of racing the
	// ACME endpoint; otherwise certificates live in CertDir.
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisWarnThreshold  int           // warn after this many attempts
}

func Load() *Config {
	socketDir := getenv("FOYER_SOCKET_DIR", "/run/foyer")

	cfg := &Config{
		// Listeners
		HTTPAddr:        getenv("FOYER_HTTP_ADDR", ":80"),
		HTTPSAddr:       getenv("FOYER_HTTPS_ADDR", ":443"),
		AdminAddr:       getenv("FOYER_ADMIN_ADDR", ":9090"),
		ShutdownTimeout: mustDuration("FOYER_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		Debug:     mustBool("FOYER_DEBUG", false),
		LogLevel:  getenv("FOYER_LOG_LEVEL", "info"),
		PrettyLog: mustBool("FOYER_PRETTY_LOG", false),

		AccessLogPath:       getenv("FOYER_ACCESS_LOG", ""),
		AccessLogMaxSizeMB:  getenvInt("FOYER_ACCESS_LOG_MAX_SIZE_MB", 100),
		AccessLogMaxBackups: getenvInt("FOYER_ACCESS_LOG_MAX_BACKUPS", 5),

		// Hosting namespace
		SitesRoot: getenv("FOYER_SITES_ROOT", "/srv/sites"),
		SocketDir: socketDir,

		// TLS
		TLSIssuer:     getenv("FOYER_TLS_ISSUER", IssuerACME),
		CertEmail:     getenv("FOYER_CERT_EMAIL", ""),
		ACMEDirectory: getenv("FOYER_ACME_DIRECTORY", ""),
		CertDir:       getenv("FOYER_CERT_DIR", "/var/lib/foyer/certs"),
		AllowAnyHost:  mustBool("FOYER_ALLOW_ANY_HOST", false),

		// Hostname normalization
		CanonicalWWW: mustBool("FOYER_CANONICAL_WWW", false),
		RulesFile:    getenv("FOYER_RULES_FILE", ""),

		// Site directory cache
		SiteCacheTTL:    mustDuration("FOYER_SITE_CACHE_TTL", 30*time.Second),
		SiteNegCacheTTL: mustDuration("FOYER_SITE_NEG_CACHE_TTL", 5*time.Second),

		// Backend dispatch
		BackendDialTimeout: mustDuration("FOYER_BACKEND_DIAL_TIMEOUT", 2*time.Second),
		BackendTimeout:     mustDuration("FOYER_BACKEND_TIMEOUT", 30*time.Second),

		// Webhook relay
		WebhookSocket:  getenv("FOYER_WEBHOOK_SOCKET", filepath.Join(socketDir, "deploy.sock")),
		WebhookSecret:  getenv("FOYER_WEBHOOK_SECRET", ""),
		WebhookTimeout: mustDuration("FOYER_WEBHOOK_TIMEOUT", 60*time.Second),

		// Admin port restrictions
		AdminAllowedCIDRS: parseAllowedIPs(getenv("FOYER_ADMIN_ALLOWED_CIDRS", "")),
		AdminRateBurst:    getenvInt("FOYER_ADMIN_RATE_BURST", 20),
		AdminRatePerMin:   getenvInt("FOYER_ADMIN_RATE_PER_MIN", 60),
		TrustProxy:        mustBool("FOYER_TRUST_PROXY", false),

		// Redis settings (optional shared certificate cache)
		RedisAddr:           getenv("FOYER_REDIS_ADDR", ""),
		RedisUser:           getenv("FOYER_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("FOYER_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("FOYER_REDIS_DB", 0),
		RedisDT:             mustDuration("FOYER_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("FOYER_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("FOYER_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("FOYER_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("FOYER_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("FOYER_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("FOYER_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("FOYER_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisWarnThreshold:  getenvInt("FOYER_REDIS_WARN_THRESHOLD", 3),
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	switch cfg.TLSIssuer {
	case IssuerACME, IssuerSelfSigned, IssuerOff:
	default:
		panic(fmt.Sprintf("❌ FATAL: FOYER_TLS_ISSUER must be one of acme|selfsigned|off, got %q", cfg.TLSIssuer))
	}

	// An ACME account without a contact is refused by most CAs and leaves
	// expiry warnings with nowhere to go.
	if cfg.TLSIssuer == IssuerACME && cfg.CertEmail == "" {
		panic("❌ FATAL: FOYER_CERT_EMAIL is required when FOYER_TLS_ISSUER=acme")
	}

	if cfg.SitesRoot == "" {
		panic("❌ FATAL: FOYER_SITES_ROOT must not be empty")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.WebhookSecret != "" {
			cfgCopy.WebhookSecret = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
