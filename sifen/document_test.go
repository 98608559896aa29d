package sifen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumeroParts(t *testing.T) {
	d := Documento{Numero: "001-002-0000123"}
	est, exp, seq, ok := d.NumeroParts()
	require.True(t, ok)
	assert.Equal(t, "001", est)
	assert.Equal(t, "002", exp)
	assert.Equal(t, "0000123", seq)
	assert.Equal(t, SeriesKey{Establecimiento: "001", PuntoExpedicion: "002"}, d.SeriesKey())

	for _, bad := range []string{"", "001-002-123", "0010020000123XX", "00A-002-0000123"} {
		d := Documento{Numero: bad}
		_, _, _, ok := d.NumeroParts()
		assert.False(t, ok, "number %q", bad)
	}
}

func TestFingerprintStability(t *testing.T) {
	d := testDocumento(t, KindInvoice)
	fp := d.Fingerprint()
	assert.Len(t, fp, 16)

	// Signing metadata does not change the identity of the submission.
	signed := d
	signed.CDC = "something"
	assert.Equal(t, fp, signed.Fingerprint())

	// A different sequence is a different submission.
	other := d
	other.Numero = "001-002-0000124"
	assert.NotEqual(t, fp, other.Fingerprint())
}

func TestDocumentoGenerateCDC(t *testing.T) {
	d := testDocumento(t, KindInvoice)

	out, err := d.GenerateCDC()
	require.NoError(t, err)
	assert.NoError(t, ValidateCDC(out.CDC))
	assert.Equal(t, "123456789", out.CodigoSeguridad)

	// The receiver is a value; the original stays untouched.
	assert.Empty(t, d.CDC)

	parsed, err := ParseCDC(out.CDC)
	require.NoError(t, err)
	assert.Equal(t, d.Emisor.RUC.Base, parsed.RUC)
	assert.Equal(t, KindInvoice, parsed.Kind)
	assert.Equal(t, "0000123", parsed.Number)
	assert.Equal(t, d.Emision.Format("20060102"), parsed.IssueDate.Format("20060102"))
}

func TestDocumentoGenerateCDCFillsCSC(t *testing.T) {
	d := testDocumento(t, KindInvoice)
	d.CodigoSeguridad = ""
	out, err := d.GenerateCDC()
	require.NoError(t, err)
	assert.Len(t, out.CodigoSeguridad, 9)
	assert.NoError(t, ValidateCDC(out.CDC))
}

func TestDocumentoGenerateCDCBadNumber(t *testing.T) {
	d := testDocumento(t, KindInvoice)
	d.Numero = "123"
	_, err := d.GenerateCDC()
	assert.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Asuncion", NormalizeText("  Asunción ", true, 0))
	assert.Equal(t, "Asunción", NormalizeText("Asunción", false, 0))
	assert.Equal(t, "ab", NormalizeText("abcd", false, 2))
	assert.Equal(t, "Ñeembucú", NormalizeText("Ñeembucú", false, 20))
}
