package sifen

import (
	"fmt"
	"time"
)

// CDC segment widths, in order. The full code is 44 digits.
const (
	cdcLen          = 44
	cdcPrefixLen    = 43
	cdcDateLayout   = "20060102"
	cdcSegRUC       = 8
	cdcSegDV        = 1
	cdcSegKind      = 2
	cdcSegEst       = 3
	cdcSegExp       = 3
	cdcSegNumber    = 7
	cdcSegDate      = 8
	cdcSegEmission  = 1
	cdcSegTaxpayer  = 1
	cdcSegSecurity  = 9
	cdcSegCheck     = 1
)

// CDC is the decomposed Código de Control: the 44 digit identifier that
// uniquely names a document in SIFEN and is bound to DE/@Id.
type CDC struct {
	RUC             string       // 8 digits, issuer base RUC
	DV              int          // issuer RUC check digit
	Kind            DocumentKind // document kind (2 digits)
	Establishment   string       // 3 digits
	ExpeditionPoint string       // 3 digits
	Number          string       // 7 digits
	IssueDate       time.Time    // date portion only, YYYYMMDD
	Emission        EmissionType // 1 digit
	Taxpayer        TaxpayerType // 1 digit
	SecurityCode    string       // 9 digits (CSC)
	CheckDigit      int
}

// CDCRequest carries the inputs for CDC generation.
type CDCRequest struct {
	IssuerRUC       RUC
	Kind            DocumentKind
	Establishment   string
	ExpeditionPoint string
	Number          string
	IssueDate       time.Time
	Emission        EmissionType
	Taxpayer        TaxpayerType // defaults to legal entity when zero
	SecurityCode    string       // 9 digits; generated when empty
}

// CDCError reports which positional segment of a CDC failed validation.
type CDCError struct {
	Segment string
	Reason  string
}

func (e *CDCError) Error() string {
	return fmt.Sprintf("cdc: segment %s: %s", e.Segment, e.Reason)
}

// GenerateCDC pads and concatenates the positional fields, computes the
// modulo-11 check digit over the 43 digit prefix and returns the full
// 44 digit code.
func GenerateCDC(req CDCRequest) (string, error) {
	if !req.IssuerRUC.Valid() {
		return "", &CDCError{Segment: "ruc", Reason: fmt.Sprintf("invalid issuer ruc %s", req.IssuerRUC)}
	}
	if !req.Kind.Valid() {
		return "", &CDCError{Segment: "kind", Reason: fmt.Sprintf("invalid document kind %d", req.Kind)}
	}
	est, err := padNumeric(req.Establishment, cdcSegEst, "establishment")
	if err != nil {
		return "", err
	}
	exp, err := padNumeric(req.ExpeditionPoint, cdcSegExp, "expedition point")
	if err != nil {
		return "", err
	}
	num, err := padNumeric(req.Number, cdcSegNumber, "document number")
	if err != nil {
		return "", err
	}
	if req.IssueDate.IsZero() {
		return "", &CDCError{Segment: "date", Reason: "issue date is required"}
	}
	if req.Emission != EmissionNormal && req.Emission != EmissionContingency {
		return "", &CDCError{Segment: "emission", Reason: fmt.Sprintf("invalid emission type %d", req.Emission)}
	}
	taxpayer := req.Taxpayer
	if taxpayer == 0 {
		taxpayer = TaxpayerLegal
	}
	if !taxpayer.Valid() {
		return "", &CDCError{Segment: "taxpayer type", Reason: fmt.Sprintf("invalid taxpayer type %d", req.Taxpayer)}
	}
	csc := req.SecurityCode
	if csc == "" {
		csc, err = GenerateSecurityCode()
		if err != nil {
			return "", err
		}
	}
	if len(csc) != cdcSegSecurity || !allDigits(csc) {
		return "", &CDCError{Segment: "security code", Reason: fmt.Sprintf("must be 9 digits, got %q", csc)}
	}

	prefix := req.IssuerRUC.Base +
		fmt.Sprintf("%d", req.IssuerRUC.DV) +
		req.Kind.String() +
		est + exp + num +
		req.IssueDate.In(AsuncionLocation).Format(cdcDateLayout) +
		req.Emission.String() +
		taxpayer.String() +
		csc
	if len(prefix) != cdcPrefixLen {
		return "", &CDCError{Segment: "prefix", Reason: fmt.Sprintf("assembled prefix has %d digits, want %d", len(prefix), cdcPrefixLen)}
	}
	return prefix + fmt.Sprintf("%d", cdcCheckDigit(prefix)), nil
}

// cdcCheckDigit computes the modulo-11 check digit over the 43 digit
// prefix using factors cycling 2..7 applied right to left. r < 2 yields 0.
func cdcCheckDigit(prefix string) int {
	sum := 0
	factor := 2
	for i := len(prefix) - 1; i >= 0; i-- {
		sum += int(prefix[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// ParseCDC decomposes any 44 digit numeric string into its positional
// segments. Decomposition is total: only non-numeric input or a wrong
// length fail here; segment range checks belong to ValidateCDC.
func ParseCDC(s string) (*CDC, error) {
	if len(s) != cdcLen {
		return nil, &CDCError{Segment: "length", Reason: fmt.Sprintf("cdc must be 44 digits, got %d", len(s))}
	}
	if !allDigits(s) {
		return nil, &CDCError{Segment: "charset", Reason: "cdc must be numeric"}
	}
	pos := 0
	next := func(n int) string {
		seg := s[pos : pos+n]
		pos += n
		return seg
	}
	ruc := next(cdcSegRUC)
	dv := int(next(cdcSegDV)[0] - '0')
	kind := DocumentKind(atoiSeg(next(cdcSegKind)))
	est := next(cdcSegEst)
	exp := next(cdcSegExp)
	num := next(cdcSegNumber)
	dateStr := next(cdcSegDate)
	emission := EmissionType(atoiSeg(next(cdcSegEmission)))
	taxpayer := TaxpayerType(atoiSeg(next(cdcSegTaxpayer)))
	csc := next(cdcSegSecurity)
	check := int(next(cdcSegCheck)[0] - '0')

	// The date may be malformed in an arbitrary 44 digit string; a zero
	// time marks that and ValidateCDC reports it.
	issueDate, _ := time.ParseInLocation(cdcDateLayout, dateStr, AsuncionLocation)

	return &CDC{
		RUC:             ruc,
		DV:              dv,
		Kind:            kind,
		Establishment:   est,
		ExpeditionPoint: exp,
		Number:          num,
		IssueDate:       issueDate,
		Emission:        emission,
		Taxpayer:        taxpayer,
		SecurityCode:    csc,
		CheckDigit:      check,
	}, nil
}

// ValidateCDC parses the code, re-runs the check digit computation and
// verifies each segment's range predicate. The returned error names the
// failing segment.
func ValidateCDC(s string) error {
	c, err := ParseCDC(s)
	if err != nil {
		return err
	}
	if got := cdcCheckDigit(s[:cdcPrefixLen]); got != c.CheckDigit {
		return &CDCError{Segment: "check digit", Reason: fmt.Sprintf("got %d, want %d", c.CheckDigit, got)}
	}
	if want, err := ComputeRUCCheckDigit(c.RUC); err != nil || want != c.DV {
		return &CDCError{Segment: "ruc", Reason: fmt.Sprintf("issuer dv %d does not match ruc %s", c.DV, c.RUC)}
	}
	if !c.Kind.Valid() {
		return &CDCError{Segment: "kind", Reason: fmt.Sprintf("unknown document kind %02d", int(c.Kind))}
	}
	if c.IssueDate.IsZero() {
		return &CDCError{Segment: "date", Reason: "not a valid calendar date"}
	}
	if c.Emission != EmissionNormal && c.Emission != EmissionContingency {
		return &CDCError{Segment: "emission", Reason: fmt.Sprintf("unknown emission type %d", int(c.Emission))}
	}
	if !c.Taxpayer.Valid() {
		return &CDCError{Segment: "taxpayer type", Reason: fmt.Sprintf("unknown taxpayer type %d", int(c.Taxpayer))}
	}
	return nil
}

// Reassemble re-encodes the decomposed CDC back into its 44 digit form.
func (c *CDC) Reassemble() string {
	prefix := c.RUC +
		fmt.Sprintf("%d", c.DV) +
		c.Kind.String() +
		c.Establishment + c.ExpeditionPoint + c.Number +
		c.IssueDate.In(AsuncionLocation).Format(cdcDateLayout) +
		c.Emission.String() +
		c.Taxpayer.String() +
		c.SecurityCode
	return prefix + fmt.Sprintf("%d", c.CheckDigit)
}

func padNumeric(s string, width int, name string) (string, error) {
	if s == "" || !allDigits(s) {
		return "", &CDCError{Segment: name, Reason: fmt.Sprintf("must be numeric, got %q", s)}
	}
	if len(s) > width {
		return "", &CDCError{Segment: name, Reason: fmt.Sprintf("exceeds %d digits: %q", width, s)}
	}
	for len(s) < width {
		s = "0" + s
	}
	return s, nil
}

func atoiSeg(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
