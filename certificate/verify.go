package certificate

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// VerificationResult is the outcome of verifying a signed document.
// Valid is false with a populated Reason for cryptographic failures;
// structural failures return an error instead.
type VerificationResult struct {
	Valid    bool
	Subject  string
	NotAfter time.Time
	Reason   string
}

// Verify checks the enveloped signature of a signed rDE document: the
// RSA-SHA256 signature over SignedInfo and the SHA-256 digest of the
// document with the Signature element removed. A digest mismatch is
// diagnosed as post-signing modification.
func Verify(xmlData []byte) (*VerificationResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "rDE" {
		return nil, fmt.Errorf("%w: root element must be rDE", ErrParse)
	}
	signature := root.SelectElement("Signature")
	if signature == nil {
		return nil, fmt.Errorf("%w: document carries no Signature", ErrParse)
	}

	cert, err := extractCertificate(signature)
	if err != nil {
		return nil, err
	}
	result := &VerificationResult{
		Subject:  cert.Subject.String(),
		NotAfter: cert.NotAfter,
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		result.Reason = fmt.Sprintf("unsupported public key type %T", cert.PublicKey)
		return result, nil
	}

	signedInfo := signature.SelectElement("SignedInfo")
	sigValueEl := signature.SelectElement("SignatureValue")
	if signedInfo == nil || sigValueEl == nil {
		return nil, fmt.Errorf("%w: Signature is missing SignedInfo or SignatureValue", ErrParse)
	}
	sigValue, err := base64.StdEncoding.DecodeString(sigValueEl.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: SignatureValue is not base64", ErrParse)
	}

	siBytes, err := serializeElement(withDSigNamespace(signedInfo))
	if err != nil {
		return nil, err
	}
	siCanonical, err := canonicalize(siBytes)
	if err != nil {
		return nil, err
	}
	siDigest := sha256.Sum256(siCanonical)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, siDigest[:], sigValue); err != nil {
		result.Reason = "signature value does not verify against the embedded certificate"
		return result, nil
	}

	declaredDigest := ""
	if dv := signedInfo.FindElement("Reference/DigestValue"); dv != nil {
		declaredDigest = dv.Text()
	}
	recomputed, err := digestWithoutSignature(doc)
	if err != nil {
		return nil, err
	}
	if declaredDigest != recomputed {
		result.Reason = "digest mismatch: the document was modified after signing"
		return result, nil
	}

	result.Valid = true
	return result, nil
}

func extractCertificate(signature *etree.Element) (*x509.Certificate, error) {
	el := signature.FindElement("KeyInfo/X509Data/X509Certificate")
	if el == nil {
		return nil, fmt.Errorf("%w: Signature carries no X509Certificate", ErrParse)
	}
	der, err := base64.StdEncoding.DecodeString(el.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: X509Certificate is not base64", ErrParse)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: embedded certificate does not parse: %v", ErrParse, err)
	}
	return cert, nil
}

// withDSigNamespace returns a copy of the element carrying the explicit
// dsig namespace declaration the signer emits, so canonical bytes match
// even when the declaration was inherited from Signature.
func withDSigNamespace(signedInfo *etree.Element) *etree.Element {
	cp := signedInfo.Copy()
	if cp.SelectAttr("xmlns") == nil {
		if parent := signedInfo.Parent(); parent != nil {
			if ns := parent.SelectAttrValue("xmlns", ""); ns != "" {
				cp.CreateAttr("xmlns", ns)
			}
		}
	}
	return cp
}

// digestWithoutSignature applies the enveloped transform and returns the
// base64 SHA-256 digest of the remaining document.
func digestWithoutSignature(doc *etree.Document) (string, error) {
	stripped := doc.Copy()
	root := stripped.Root()
	if sig := root.SelectElement("Signature"); sig != nil {
		root.RemoveChild(sig)
	}
	data, err := stripped.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("xmldsig: serialize stripped document: %w", err)
	}
	canonical, err := canonicalize(data)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(digest[:]), nil
}
