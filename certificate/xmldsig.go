package certificate

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"sync"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// XMLDSig algorithm identifiers for the signature SIFEN mandates.
const (
	algoC14NExclusive = "http://www.w3.org/2001/10/xml-exc-c14n#"
	algoRSASHA256     = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	algoEnveloped     = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	algoSHA256        = "http://www.w3.org/2001/04/xmlenc#sha256"
)

var (
	// ErrParse marks XML that could not be read for signing.
	ErrParse = errors.New("xmldsig: malformed xml")
	// ErrCanonicalization marks a canonicalization failure.
	ErrCanonicalization = errors.New("xmldsig: canonicalization failed")
)

// Signer produces enveloped XMLDSig signatures over rDE documents. It is
// safe for concurrent use; signing operations are serialized.
type Signer struct {
	mu   sync.Mutex
	cert Certificate
}

// NewSigner wraps the signing material. Expired or not-yet-valid
// certificates are rejected up front.
func NewSigner(cert Certificate) (*Signer, error) {
	if cert.PrivateKey() == nil || cert.Certificate() == nil {
		return nil, ErrKeyMismatch
	}
	if !cert.IsValid() {
		notBefore, notAfter := cert.ValidityPeriod()
		return nil, fmt.Errorf("%w: valid %s to %s", ErrCertificateExpired,
			notBefore.Format("2006-01-02"), notAfter.Format("2006-01-02"))
	}
	if !cert.PrivateKey().PublicKey.Equal(cert.Certificate().PublicKey) {
		return nil, ErrKeyMismatch
	}
	return &Signer{cert: cert}, nil
}

// Sign canonicalizes the document, digests it with SHA-256, signs the
// SignedInfo with RSA-SHA256 and appends the Signature as the last child
// of rDE. The returned bytes are the signed document; the input is not
// modified.
func (s *Signer) Sign(ctx context.Context, xmlData []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "rDE" {
		return nil, fmt.Errorf("%w: root element must be rDE", ErrParse)
	}
	if root.FindElement("Signature") != nil {
		return nil, fmt.Errorf("%w: document is already signed", ErrParse)
	}

	canonical, err := canonicalize(xmlData)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(canonical)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signedInfo := buildSignedInfo(base64.StdEncoding.EncodeToString(digest[:]))
	siBytes, err := serializeElement(signedInfo)
	if err != nil {
		return nil, err
	}
	siCanonical, err := canonicalize(siBytes)
	if err != nil {
		return nil, err
	}
	siDigest := sha256.Sum256(siCanonical)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sigValue, err := rsa.SignPKCS1v15(nil, s.cert.PrivateKey(), crypto.SHA256, siDigest[:])
	if err != nil {
		return nil, fmt.Errorf("xmldsig: rsa signature: %w", err)
	}

	signature := etree.NewElement("Signature")
	signature.CreateAttr("xmlns", sifen.DSigNamespace)
	signature.AddChild(signedInfo)
	sv := signature.CreateElement("SignatureValue")
	sv.SetText(base64.StdEncoding.EncodeToString(sigValue))
	keyInfo := signature.CreateElement("KeyInfo")
	x509Data := keyInfo.CreateElement("X509Data")
	x509Cert := x509Data.CreateElement("X509Certificate")
	x509Cert.SetText(base64.StdEncoding.EncodeToString(s.cert.Certificate().Raw))

	root.AddChild(signature)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xmldsig: serialize signed document: %w", err)
	}
	return out, nil
}

// buildSignedInfo assembles the SignedInfo the SET profile requires:
// exclusive C14N, RSA-SHA256, one enveloped reference with an empty URI.
func buildSignedInfo(digestValue string) *etree.Element {
	si := etree.NewElement("SignedInfo")
	si.CreateAttr("xmlns", sifen.DSigNamespace)

	cm := si.CreateElement("CanonicalizationMethod")
	cm.CreateAttr("Algorithm", algoC14NExclusive)
	sm := si.CreateElement("SignatureMethod")
	sm.CreateAttr("Algorithm", algoRSASHA256)

	ref := si.CreateElement("Reference")
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("Transforms")
	t1 := transforms.CreateElement("Transform")
	t1.CreateAttr("Algorithm", algoEnveloped)
	t2 := transforms.CreateElement("Transform")
	t2.CreateAttr("Algorithm", algoC14NExclusive)
	dm := ref.CreateElement("DigestMethod")
	dm.CreateAttr("Algorithm", algoSHA256)
	dv := ref.CreateElement("DigestValue")
	dv.SetText(digestValue)
	return si
}

// canonicalize applies exclusive C14N without comments.
func canonicalize(data []byte) ([]byte, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	out, err := c14n.Canonicalize(decoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalization, err)
	}
	return out, nil
}

// serializeElement renders a detached element as a standalone document.
func serializeElement(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.AddChild(el.Copy())
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xmldsig: serialize element: %w", err)
	}
	return out, nil
}
