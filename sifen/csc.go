package sifen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// cscMax is the inclusive upper bound of the security code space.
const cscMax = 999_999_999

// GenerateSecurityCode returns a nine digit CSC uniformly sampled from
// [1, 999999999], zero padded on the left.
func GenerateSecurityCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(cscMax))
	if err != nil {
		return "", fmt.Errorf("csc: entropy source failed: %w", err)
	}
	// rand.Int yields [0, cscMax); shift to [1, cscMax].
	return fmt.Sprintf("%09d", n.Int64()+1), nil
}

// CSCVault holds per-document security codes keyed by fingerprint so the
// CSC of an issued document is recoverable only from the issuer's private
// state. It is safe for concurrent use.
type CSCVault struct {
	mu    sync.RWMutex
	codes map[string]string
}

// NewCSCVault creates an empty vault.
func NewCSCVault() *CSCVault {
	return &CSCVault{codes: make(map[string]string)}
}

// Issue generates a fresh security code, records it under the fingerprint
// and returns it. An existing code for the same fingerprint is returned
// unchanged so re-signing attempts keep the original CDC stable.
func (v *CSCVault) Issue(fingerprint string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if code, ok := v.codes[fingerprint]; ok {
		return code, nil
	}
	code, err := GenerateSecurityCode()
	if err != nil {
		return "", err
	}
	v.codes[fingerprint] = code
	return code, nil
}

// Lookup returns the recorded code for a fingerprint, if any.
func (v *CSCVault) Lookup(fingerprint string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	code, ok := v.codes[fingerprint]
	return code, ok
}

// Forget discards the code recorded for a fingerprint.
func (v *CSCVault) Forget(fingerprint string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.codes, fingerprint)
}
