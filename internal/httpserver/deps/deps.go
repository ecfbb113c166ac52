package deps

import (
	"time"

	"github.com/webstead/foyer/internal/logger"
	"github.com/webstead/foyer/internal/tlsgate"
)

type Deps struct {
	Logger         logger.Logger
	Gate           *tlsgate.Gate // answers certificate admission queries
	WebhookSocket  string        // Unix socket of the deployment handler
	WebhookSecret  string        // shared secret for webhook callers, empty = no check
	WebhookTimeout time.Duration // bound on one relayed deployment request
	TrustProxy     bool          // resolve client IPs from proxy headers
	AllowedCIDRS   []string      // IPs allowed to reach the admin port
	RateBurst      int           // admission query burst per client
	RatePerMin     int           // admission query refill per client per minute
}
