package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

func TestMockCertificate(t *testing.T) {
	cert, err := NewMockCertificate()
	require.NoError(t, err)
	assert.True(t, cert.IsValid())
	assert.Contains(t, cert.Subject(), "SIFEN Mock Signer")
	assert.NotNil(t, cert.PrivateKey())

	notBefore, notAfter := cert.ValidityPeriod()
	assert.True(t, notBefore.Before(time.Now()))
	assert.True(t, notAfter.After(time.Now()))
}

func TestLoadA1RoundTrip(t *testing.T) {
	mock, err := NewMockCertificate()
	require.NoError(t, err)

	pfx, err := pkcs12.Modern.Encode(mock.PrivateKey(), mock.Certificate(), nil, "secreto")
	require.NoError(t, err)

	loaded, err := LoadA1(pfx, "secreto")
	require.NoError(t, err)
	assert.Equal(t, mock.Subject(), loaded.Subject())
	assert.True(t, loaded.PrivateKey().PublicKey.Equal(mock.Certificate().PublicKey))
}

func TestLoadA1WrongPassword(t *testing.T) {
	mock, err := NewMockCertificate()
	require.NoError(t, err)
	pfx, err := pkcs12.Modern.Encode(mock.PrivateKey(), mock.Certificate(), nil, "secreto")
	require.NoError(t, err)

	_, err = LoadA1(pfx, "incorrecto")
	assert.Error(t, err)
}

func TestLoadA1FromMissingFile(t *testing.T) {
	_, err := LoadA1FromFile("/nonexistent/firma.p12", "x")
	assert.Error(t, err)
}

func TestExpiredCertificateIsInvalid(t *testing.T) {
	expired, err := newMockCertificate(time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, expired.IsValid())
}
