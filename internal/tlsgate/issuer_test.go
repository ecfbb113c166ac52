package tlsgate

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/webstead/foyer/internal/config"
	"github.com/webstead/foyer/internal/logger"
)

func TestNewIssuerUnknownMode(t *testing.T) {
	gate := newTestGate(t, false)
	if _, err := NewIssuer(gate, Options{Mode: "letsencrypt"}, logger.New("error", false)); err == nil {
		t.Fatal("NewIssuer(unknown mode) = nil error, want error")
	}
}

func TestIssuerOff(t *testing.T) {
	gate := newTestGate(t, false)
	issuer, err := NewIssuer(gate, Options{Mode: config.IssuerOff}, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	if issuer.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if cfg := issuer.TLSConfig(); cfg != nil {
		t.Errorf("TLSConfig() = %v, want nil", cfg)
	}

	mux := http.NewServeMux()
	if got := issuer.HTTPHandler(mux); got != http.Handler(mux) {
		t.Error("HTTPHandler() should return the fallback unchanged when off")
	}
}

func TestIssuerACME(t *testing.T) {
	gate := newTestGate(t, false, "shop.example.com")
	issuer, err := NewIssuer(gate, Options{
		Mode:  config.IssuerACME,
		Email: "ops@example.com",
		Cache: autocert.DirCache(t.TempDir()),
	}, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	if !issuer.Enabled() {
		t.Error("Enabled() = false, want true")
	}
	cfg := issuer.TLSConfig()
	if cfg == nil {
		t.Fatal("TLSConfig() = nil, want config")
	}
	if cfg.GetCertificate == nil {
		t.Error("TLSConfig().GetCertificate is nil")
	}

	mux := http.NewServeMux()
	if got := issuer.HTTPHandler(mux); got == http.Handler(mux) {
		t.Error("HTTPHandler() should wrap the fallback with challenge handling in acme mode")
	}
}

func TestIssuerSelfSigned(t *testing.T) {
	gate := newTestGate(t, false, "shop.example.com")
	issuer, err := NewIssuer(gate, Options{Mode: config.IssuerSelfSigned}, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	cfg := issuer.TLSConfig()
	if cfg == nil {
		t.Fatal("TLSConfig() = nil, want config")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}

	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{ServerName: "shop.example.com"})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if cert == nil || cert.Leaf == nil {
		t.Fatal("GetCertificate returned nil certificate")
	}
}

func TestSelfSignerGetCertificate(t *testing.T) {
	gate := newTestGate(t, false, "shop.example.com")
	signer := newSelfSigner(gate)

	cert, err := signer.GetCertificate(&tls.ClientHelloInfo{ServerName: "shop.example.com"})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}

	leaf := cert.Leaf
	if leaf.Subject.CommonName != "shop.example.com" {
		t.Errorf("CommonName = %q, want shop.example.com", leaf.Subject.CommonName)
	}
	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "shop.example.com" {
		t.Errorf("DNSNames = %v, want [shop.example.com]", leaf.DNSNames)
	}
	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		t.Errorf("certificate not currently valid: %v .. %v", leaf.NotBefore, leaf.NotAfter)
	}
	if leaf.IsCA {
		t.Error("leaf certificate must not be a CA")
	}
	hasServerAuth := false
	for _, u := range leaf.ExtKeyUsage {
		if u == x509.ExtKeyUsageServerAuth {
			hasServerAuth = true
		}
	}
	if !hasServerAuth {
		t.Error("certificate lacks server-auth extended key usage")
	}
	if err := leaf.CheckSignature(leaf.SignatureAlgorithm, leaf.RawTBSCertificate, leaf.Signature); err != nil {
		t.Errorf("self-signature does not verify: %v", err)
	}

	// Repeated handshakes for the same hostname reuse the minted certificate.
	again, err := signer.GetCertificate(&tls.ClientHelloInfo{ServerName: "shop.example.com"})
	if err != nil {
		t.Fatalf("GetCertificate (cached): %v", err)
	}
	if again != cert {
		t.Error("expected cached certificate on second handshake")
	}
}

func TestSelfSignerDenies(t *testing.T) {
	gate := newTestGate(t, false, "shop.example.com")
	signer := newSelfSigner(gate)

	if _, err := signer.GetCertificate(&tls.ClientHelloInfo{ServerName: "ghost.example.com"}); err == nil {
		t.Error("GetCertificate(unknown host) = nil error, want error")
	}
	if _, err := signer.GetCertificate(&tls.ClientHelloInfo{ServerName: ""}); err == nil {
		t.Error("GetCertificate(no SNI) = nil error, want error")
	}
}
