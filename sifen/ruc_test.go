package sifen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRUCCheckDigit(t *testing.T) {
	tests := []struct {
		base string
		want int
	}{
		{"80012345", 3},
		{"04554737", 0}, // remainder below 2 collapses to 0
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := ComputeRUCCheckDigit(tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRUCCheckDigitRejectsBadBase(t *testing.T) {
	for _, base := range []string{"", "1234567", "123456789", "8001234X"} {
		_, err := ComputeRUCCheckDigit(base)
		assert.Error(t, err, "base %q", base)
	}
}

func TestParseRUC(t *testing.T) {
	tests := []struct {
		in      string
		want    RUC
		wantErr bool
	}{
		{in: "80012345-3", want: RUC{Base: "80012345", DV: 3}},
		{in: "800123453", want: RUC{Base: "80012345", DV: 3}},
		{in: "80012345", want: RUC{Base: "80012345", DV: 3}},
		{in: " 04554737-0 ", want: RUC{Base: "04554737", DV: 0}},
		{in: "80012345-7", wantErr: true}, // wrong check digit
		{in: "8001234", wantErr: true},
		{in: "80012345-3X", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRUC(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestRUCString(t *testing.T) {
	r := RUC{Base: "80012345", DV: 3}
	assert.Equal(t, "80012345-3", r.String())
	assert.True(t, ValidateRUC("80012345-3"))
	assert.False(t, ValidateRUC("80012345-4"))
}
