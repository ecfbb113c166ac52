package redis

// KeyPrefixCert is the prefix for certificate cache entries.
const KeyPrefixCert = "foyer:cert:"

// CertKey returns the Redis key for a cached certificate, ACME account blob,
// or pending-challenge token. Names come straight from the certificate
// manager; they are opaque here.
func CertKey(name string) string {
	return KeyPrefixCert + name
}
