package sifen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTimbrado() Timbrado {
	return Timbrado{
		Numero:          "12345678",
		Establecimiento: "001",
		PuntoExpedicion: "002",
		FechaInicio:     time.Date(2025, 1, 1, 0, 0, 0, 0, AsuncionLocation),
		FechaFin:        time.Date(2026, 12, 31, 0, 0, 0, 0, AsuncionLocation),
	}
}

func TestTimbradoValidate(t *testing.T) {
	require.NoError(t, testTimbrado().Validate())

	tests := []struct {
		name   string
		mutate func(*Timbrado)
	}{
		{"short number", func(tb *Timbrado) { tb.Numero = "1234" }},
		{"alpha establishment", func(tb *Timbrado) { tb.Establecimiento = "0A1" }},
		{"missing start", func(tb *Timbrado) { tb.FechaInicio = time.Time{} }},
		{"inverted window", func(tb *Timbrado) { tb.FechaFin = tb.FechaInicio.AddDate(0, 0, -1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := testTimbrado()
			tt.mutate(&tb)
			assert.Error(t, tb.Validate())
		})
	}
}

func TestTimbradoCoversDate(t *testing.T) {
	tb := testTimbrado()
	assert.False(t, tb.CoversDate(time.Date(2024, 12, 31, 23, 0, 0, 0, AsuncionLocation)))
	assert.True(t, tb.CoversDate(tb.FechaInicio))
	assert.True(t, tb.CoversDate(time.Date(2026, 12, 31, 23, 59, 59, 0, AsuncionLocation)))
	assert.False(t, tb.CoversDate(time.Date(2027, 1, 1, 0, 0, 1, 0, AsuncionLocation)))

	openEnded := tb
	openEnded.FechaFin = time.Time{}
	assert.True(t, openEnded.CoversDate(time.Date(2030, 6, 1, 0, 0, 0, 0, AsuncionLocation)))
}

func TestSequenceRegistry(t *testing.T) {
	reg := NewSequenceRegistry()
	key := SeriesKey{Establecimiento: "001", PuntoExpedicion: "002"}

	assert.Equal(t, int64(1), reg.Next(key))
	assert.Equal(t, int64(2), reg.Next(key))
	assert.Equal(t, int64(2), reg.Last(key))

	// An independent series starts over.
	other := SeriesKey{Establecimiento: "001", PuntoExpedicion: "003"}
	assert.Equal(t, int64(1), reg.Next(other))

	require.NoError(t, reg.Observe(key, 10))
	assert.Error(t, reg.Observe(key, 10), "repeating a sequence must fail")
	assert.Error(t, reg.Observe(key, 5), "going backwards must fail")
	assert.Error(t, reg.Observe(key, 0))
	assert.Equal(t, int64(11), reg.Next(key))
}
