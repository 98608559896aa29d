package webservices

import (
	"strconv"
)

// CodeAccepted is the SET approval code.
const CodeAccepted = "0260"

// Category buckets SET result codes by how the sender must react.
type Category int

const (
	CategoryUnknown Category = iota
	CategorySuccess
	CategorySigning
	CategoryValidation
	CategoryTransient
	CategoryThrottle
	CategoryRejected
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySuccess:
		return "success"
	case CategorySigning:
		return "signing"
	case CategoryValidation:
		return "validation"
	case CategoryTransient:
		return "transient"
	case CategoryThrottle:
		return "throttle"
	case CategoryRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Classification is the sender-facing reading of one SET code.
type Classification struct {
	Code      string
	Category  Category
	Retryable bool
	// ThrottlePerRUC distinguishes 5002 (per-RUC window) from 5003
	// (per-IP window) for bucket attribution.
	ThrottlePerRUC bool
	Hint           string
}

// Classify maps a SET result code to its classification. Unknown codes
// are final rejections: retrying an unrecognized "no" would duplicate
// documents.
func Classify(code string) Classification {
	c := Classification{Code: code}
	n, err := strconv.Atoi(code)
	if err != nil {
		c.Category = CategoryRejected
		c.Hint = "unrecognized result code; inspect the raw response"
		return c
	}

	if hint, ok := rejectionHints[code]; ok {
		c.Hint = hint
	}

	switch {
	case code == CodeAccepted:
		c.Category = CategorySuccess
	case n >= 141 && n <= 149:
		c.Category = CategorySigning
		if c.Hint == "" {
			c.Hint = "check certificate validity and the signature envelope"
		}
	case n >= 1000 && n <= 1099:
		c.Category = CategoryValidation
		if c.Hint == "" {
			c.Hint = "regenerate the CDC from the document fields"
		}
	case n >= 1100 && n <= 1199:
		c.Category = CategoryValidation
		if c.Hint == "" {
			c.Hint = "verify the timbrado number, series and validity window"
		}
	case n >= 1250 && n <= 1299:
		c.Category = CategoryValidation
		if c.Hint == "" {
			c.Hint = "verify the issuer RUC and its check digit against the SET registry"
		}
	case n >= 1400 && n <= 1499:
		c.Category = CategoryValidation
		if c.Hint == "" {
			c.Hint = "check issuance and reference dates"
		}
	case n >= 1500 && n <= 1599:
		c.Category = CategoryValidation
		if c.Hint == "" {
			c.Hint = "recompute totals from the line items"
		}
	case n >= 4000 && n <= 4999:
		c.Category = CategoryTransient
		c.Retryable = true
		if c.Hint == "" {
			c.Hint = "communication failure; the submission is retried with backoff"
		}
	case n == 5000 || n == 5001:
		c.Category = CategoryTransient
		c.Retryable = true
		if c.Hint == "" {
			c.Hint = "service unavailable; the submission is retried with backoff"
		}
	case n == 5002:
		c.Category = CategoryThrottle
		c.Retryable = true
		c.ThrottlePerRUC = true
		if c.Hint == "" {
			c.Hint = "per-RUC request window exhausted; wait for the next window"
		}
	case n == 5003:
		c.Category = CategoryThrottle
		c.Retryable = true
		if c.Hint == "" {
			c.Hint = "per-IP request window exhausted; wait for the next window"
		}
	default:
		c.Category = CategoryRejected
		if c.Hint == "" {
			c.Hint = "final rejection; correct the document before resubmitting"
		}
	}
	return c
}

// rejectionHints carries per-code remediation for the codes SET returns
// most often. Ranges without a specific entry fall back to the range hint.
var rejectionHints = map[string]string{
	"0141": "the signing certificate is expired",
	"0142": "the signing certificate is revoked or untrusted",
	"0143": "the signature does not verify; do not re-sign with altered bytes",
	"0144": "the SignedInfo canonicalization diverges from the SET profile",
	"1001": "the CDC check digit does not match its prefix",
	"1002": "the CDC kind segment does not match iTipDE",
	"1003": "the CDC date segment does not match dFeEmiDE",
	"1101": "the timbrado is not registered for the issuer",
	"1102": "the timbrado validity window does not cover the issuance date",
	"1103": "the document sequence was already used for this series",
	"1251": "the issuer RUC is not registered as an electronic issuer",
	"1252": "the issuer RUC is suspended",
	"1401": "the issuance timestamp is in the future",
	"1402": "the referenced document postdates the referring one",
	"1501": "declared totals do not match the line items",
	"1502": "IVA breakdown does not match the declared affectations",
}
