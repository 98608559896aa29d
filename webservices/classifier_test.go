package webservices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		retryable bool
		perRUC    bool
	}{
		{"0260", CategorySuccess, false, false},
		{"0141", CategorySigning, false, false},
		{"0149", CategorySigning, false, false},
		{"1001", CategoryValidation, false, false},
		{"1099", CategoryValidation, false, false},
		{"1101", CategoryValidation, false, false},
		{"1251", CategoryValidation, false, false},
		{"1401", CategoryValidation, false, false},
		{"1501", CategoryValidation, false, false},
		{"4000", CategoryTransient, true, false},
		{"4999", CategoryTransient, true, false},
		{"5000", CategoryTransient, true, false},
		{"5001", CategoryTransient, true, false},
		{"5002", CategoryThrottle, true, true},
		{"5003", CategoryThrottle, true, false},
		// Codes outside every known range are final rejections.
		{"0001", CategoryRejected, false, false},
		{"1200", CategoryRejected, false, false},
		{"9999", CategoryRejected, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c := Classify(tt.code)
			assert.Equal(t, tt.category, c.Category)
			assert.Equal(t, tt.retryable, c.Retryable)
			assert.Equal(t, tt.perRUC, c.ThrottlePerRUC)
			assert.Equal(t, tt.code, c.Code)
		})
	}
}

func TestClassifyNonNumericIsNeverRetried(t *testing.T) {
	c := Classify("ERR")
	assert.Equal(t, CategoryRejected, c.Category)
	assert.False(t, c.Retryable)
}

func TestClassifyCarriesRemediationHints(t *testing.T) {
	assert.NotEmpty(t, Classify("0141").Hint)
	assert.NotEmpty(t, Classify("1501").Hint)
	assert.NotEmpty(t, Classify("5002").Hint)
	// Codes without a specific entry fall back to the range hint.
	assert.NotEmpty(t, Classify("1050").Hint)
}
