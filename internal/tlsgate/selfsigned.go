package tlsgate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// selfSigner mints short-lived per-host certificates for development. The
// admission gate is still consulted on every new hostname so dev behaves
// like the real issuer, just without a CA.
type selfSigner struct {
	gate  *Gate
	mu    sync.Mutex
	certs map[string]*tls.Certificate
}

func newSelfSigner(gate *Gate) *selfSigner {
	return &selfSigner{
		gate:  gate,
		certs: make(map[string]*tls.Certificate),
	}
}

func (s *selfSigner) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	host := hello.ServerName
	if host == "" {
		return nil, errors.New("tls: no server name in client hello")
	}
	if d := s.gate.Admit(host); !d.Allowed {
		return nil, fmt.Errorf("tls: host %q not allowed", host)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cert, ok := s.certs[host]; ok {
		if time.Now().Before(cert.Leaf.NotAfter.Add(-24 * time.Hour)) {
			return cert, nil
		}
	}

	cert, err := mintCertificate(host)
	if err != nil {
		return nil, err
	}
	s.certs[host] = cert
	return cert, nil
}

func mintCertificate(host string) (*tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: host,
		},
		DNSNames:  []string{host},
		NotBefore: now.Add(-1 * time.Hour),
		NotAfter:  now.Add(90 * 24 * time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, nil
}
