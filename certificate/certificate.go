// Package certificate loads A1 (PKCS#12) signing material and produces
// and verifies the XMLDSig enveloped signatures SIFEN requires.
package certificate

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

var (
	// ErrCertificateExpired marks key material outside its validity window.
	ErrCertificateExpired = errors.New("certificate: outside validity period")
	// ErrKeyMismatch marks a private key that does not belong to the
	// certificate's public key.
	ErrKeyMismatch = errors.New("certificate: private key does not match certificate")
)

// Certificate is the signing material contract: an end-entity X.509
// certificate plus its RSA private key.
type Certificate interface {
	Certificate() *x509.Certificate
	PrivateKey() *rsa.PrivateKey
	Subject() string
	IsValid() bool
	ValidityPeriod() (notBefore, notAfter time.Time)
}

// A1Certificate is file-based (PKCS#12) signing material.
type A1Certificate struct {
	cert *x509.Certificate
	key  *rsa.PrivateKey
}

// LoadA1 decodes a PKCS#12 keystore. The end-entity certificate and its
// RSA key are extracted; CA certificates in the bundle are ignored.
func LoadA1(data []byte, password string) (*A1Certificate, error) {
	key, cert, _, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("certificate: decode pkcs12: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("certificate: keystore holds a %T, only RSA keys are supported", key)
	}
	if !rsaKey.PublicKey.Equal(cert.PublicKey) {
		return nil, ErrKeyMismatch
	}
	return &A1Certificate{cert: cert, key: rsaKey}, nil
}

// LoadA1FromFile reads and decodes a PKCS#12 keystore file.
func LoadA1FromFile(path, password string) (*A1Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certificate: read %s: %w", path, err)
	}
	return LoadA1(data, password)
}

// Certificate returns the end-entity certificate.
func (a *A1Certificate) Certificate() *x509.Certificate { return a.cert }

// PrivateKey returns the RSA private key.
func (a *A1Certificate) PrivateKey() *rsa.PrivateKey { return a.key }

// Subject returns the certificate subject in RFC 2253 form.
func (a *A1Certificate) Subject() string { return a.cert.Subject.String() }

// IsValid reports whether the certificate is inside its validity window.
func (a *A1Certificate) IsValid() bool {
	now := time.Now()
	return !now.Before(a.cert.NotBefore) && !now.After(a.cert.NotAfter)
}

// ValidityPeriod returns the certificate validity window.
func (a *A1Certificate) ValidityPeriod() (time.Time, time.Time) {
	return a.cert.NotBefore, a.cert.NotAfter
}

// NewMockCertificate generates a self-signed RSA certificate for tests
// and demos. It is never trusted by the real SET.
func NewMockCertificate() (*A1Certificate, error) {
	return newMockCertificate(time.Now().Add(-time.Hour), time.Now().Add(365*24*time.Hour))
}

func newMockCertificate(notBefore, notAfter time.Time) (*A1Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("certificate: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("certificate: serial: %w", err)
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "SIFEN Mock Signer",
			Organization: []string{"Pruebas"},
			Country:      []string{"PY"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("certificate: self-sign: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("certificate: parse generated certificate: %w", err)
	}
	return &A1Certificate{cert: cert, key: key}, nil
}
