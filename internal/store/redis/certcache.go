package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/acme/autocert"
)

// CertCache stores issued certificates, the ACME account key, and pending
// challenge tokens in Redis so that every edge node in a fleet sees the same
// material. Entries never expire: the certificate manager renews and deletes
// on its own schedule, and the account key must outlive any certificate.
type CertCache struct {
	client *redis.Client
}

var _ autocert.Cache = (*CertCache)(nil)

// NewCertCache creates a certificate cache on top of an established client.
func NewCertCache(client *redis.Client) *CertCache {
	return &CertCache{client: client}
}

// Get retrieves a cached blob by name.
func (c *CertCache) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := c.client.Get(ctx, CertKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autocert.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get certificate entry %q: %w", name, err)
	}
	return data, nil
}

// Put stores a blob under name.
func (c *CertCache) Put(ctx context.Context, name string, data []byte) error {
	if err := c.client.Set(ctx, CertKey(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store certificate entry %q: %w", name, err)
	}
	return nil
}

// Delete removes the blob under name. Deleting a missing entry is not an
// error.
func (c *CertCache) Delete(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, CertKey(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete certificate entry %q: %w", name, err)
	}
	return nil
}
