package certificate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

const unsignedRDE = `<?xml version="1.0" encoding="UTF-8"?>
<rDE xmlns="http://ekuatia.set.gov.py/sifen/xsd" version="150" Id="80012345301001002000012320260115121234567890">
  <gDatGral>
    <iTipDE>1</iTipDE>
    <dFeEmiDE>2026-01-15T10:30:00</dFeEmiDE>
    <dNumDoc>001-002-0000123</dNumDoc>
  </gDatGral>
  <gTotales>
    <dTotGralOpe>110000</dTotGralOpe>
  </gTotales>
</rDE>`

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	cert, err := NewMockCertificate()
	require.NoError(t, err)
	signer, err := NewSigner(cert)
	require.NoError(t, err)
	return signer
}

func TestSignAndVerify(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := signer.Sign(context.Background(), []byte(unsignedRDE))
	require.NoError(t, err)

	result, err := Verify(signed)
	require.NoError(t, err)
	assert.True(t, result.Valid, "reason: %s", result.Reason)
	assert.Contains(t, result.Subject, "SIFEN Mock Signer")
	assert.True(t, result.NotAfter.After(time.Now()))
}

func TestSignatureShape(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := signer.Sign(context.Background(), []byte(unsignedRDE))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	root := doc.Root()

	children := root.ChildElements()
	require.NotEmpty(t, children)
	sig := children[len(children)-1]
	assert.Equal(t, "Signature", sig.Tag, "Signature must be the last child of rDE")
	assert.Equal(t, sifen.DSigNamespace, sig.SelectAttrValue("xmlns", ""))

	ref := sig.FindElement("SignedInfo/Reference")
	require.NotNil(t, ref)
	attr := ref.SelectAttr("URI")
	require.NotNil(t, attr)
	assert.Equal(t, "", attr.Value, "the reference covers the whole document")

	var algos []string
	for _, tr := range ref.FindElements("Transforms/Transform") {
		algos = append(algos, tr.SelectAttrValue("Algorithm", ""))
	}
	assert.Equal(t, []string{algoEnveloped, algoC14NExclusive}, algos)
	require.NotNil(t, sig.FindElement("KeyInfo/X509Data/X509Certificate"))
}

func TestVerifyDetectsTampering(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := signer.Sign(context.Background(), []byte(unsignedRDE))
	require.NoError(t, err)

	tampered := strings.Replace(string(signed), "110000", "990000", 1)
	require.NotEqual(t, string(signed), tampered)

	result, err := Verify([]byte(tampered))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "digest mismatch")
	assert.Contains(t, result.Subject, "SIFEN Mock Signer", "metadata is reported even on failure")
}

func TestVerifyDetectsForgedSignatureValue(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := signer.Sign(context.Background(), []byte(unsignedRDE))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	sv := doc.Root().FindElement("Signature/SignatureValue")
	require.NotNil(t, sv)
	sv.SetText("QmFkU2lnbmF0dXJl") // valid base64, wrong signature
	forged, err := doc.WriteToBytes()
	require.NoError(t, err)

	result, err := Verify(forged)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "signature value")
}

func TestSignRejectsDoubleSigning(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := signer.Sign(context.Background(), []byte(unsignedRDE))
	require.NoError(t, err)
	_, err = signer.Sign(context.Background(), signed)
	assert.ErrorIs(t, err, ErrParse)
}

func TestSignRejectsMalformedInput(t *testing.T) {
	signer := newTestSigner(t)
	_, err := signer.Sign(context.Background(), []byte("<rDE>"))
	assert.ErrorIs(t, err, ErrParse)

	_, err = signer.Sign(context.Background(), []byte("<otherRoot/>"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestSignHonorsContext(t *testing.T) {
	signer := newTestSigner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := signer.Sign(ctx, []byte(unsignedRDE))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSignerRejectsExpired(t *testing.T) {
	expired, err := newMockCertificate(time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	_, err = NewSigner(expired)
	assert.ErrorIs(t, err, ErrCertificateExpired)
}

func TestVerifyRequiresSignature(t *testing.T) {
	_, err := Verify([]byte(unsignedRDE))
	assert.ErrorIs(t, err, ErrParse)
}
