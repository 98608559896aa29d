package sifen

import (
	"fmt"
	"strings"
)

// rucFactors are the modulo-11 weights applied right to left over the
// eight base digits of a RUC.
var rucFactors = [8]int{2, 3, 4, 5, 6, 7, 2, 3}

// RUC is a Paraguayan taxpayer identifier: eight digits plus one
// modulo-11 check digit. The normalized presentation is "XXXXXXXX-D".
type RUC struct {
	Base string // eight digits
	DV   int    // check digit
}

// ComputeRUCCheckDigit computes the check digit for an eight digit base.
func ComputeRUCCheckDigit(base string) (int, error) {
	if len(base) != 8 || !allDigits(base) {
		return 0, fmt.Errorf("ruc base must be exactly 8 digits, got %q", base)
	}
	sum := 0
	for i := 0; i < 8; i++ {
		d := int(base[7-i] - '0')
		sum += d * rucFactors[i]
	}
	r := sum % 11
	if r < 2 {
		return 0, nil
	}
	return 11 - r, nil
}

// ParseRUC accepts "XXXXXXXX-D", "XXXXXXXXD" or a bare 8 digit base
// (in which case the check digit is computed) and returns the parsed RUC.
func ParseRUC(s string) (RUC, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "")
	switch len(s) {
	case 8:
		dv, err := ComputeRUCCheckDigit(s)
		if err != nil {
			return RUC{}, err
		}
		return RUC{Base: s, DV: dv}, nil
	case 9:
		if !allDigits(s) {
			return RUC{}, fmt.Errorf("ruc must be numeric, got %q", s)
		}
		base, dv := s[:8], int(s[8]-'0')
		want, err := ComputeRUCCheckDigit(base)
		if err != nil {
			return RUC{}, err
		}
		if dv != want {
			return RUC{}, fmt.Errorf("ruc %s-%d: invalid check digit (expected %d)", base, dv, want)
		}
		return RUC{Base: base, DV: dv}, nil
	default:
		return RUC{}, fmt.Errorf("ruc must have 8 or 9 digits, got %q", s)
	}
}

// String returns the normalized presentation "XXXXXXXX-D".
func (r RUC) String() string {
	return fmt.Sprintf("%s-%d", r.Base, r.DV)
}

// Valid reports whether the base is eight digits and the check digit matches.
func (r RUC) Valid() bool {
	want, err := ComputeRUCCheckDigit(r.Base)
	return err == nil && want == r.DV
}

// ValidateRUC reports whether a formatted RUC string is structurally
// valid and carries a correct check digit.
func ValidateRUC(s string) bool {
	_, err := ParseRUC(s)
	return err == nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
