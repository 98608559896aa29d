package sifen

import (
	"fmt"
	"sync"
	"time"
)

// Timbrado is the SET authorization record under which documents are
// issued: an eight digit number scoped to an establishment and an
// expedition point, with a validity window.
type Timbrado struct {
	Numero          string    // 8 digits
	Establecimiento string    // 3 digits
	PuntoExpedicion string    // 3 digits
	FechaInicio     time.Time // validity start
	FechaFin        time.Time // validity end; zero means open-ended
}

// Validate checks the structural invariants of the timbrado record.
func (t Timbrado) Validate() error {
	if len(t.Numero) != 8 || !allDigits(t.Numero) {
		return fmt.Errorf("timbrado: number must be 8 digits, got %q", t.Numero)
	}
	if len(t.Establecimiento) != 3 || !allDigits(t.Establecimiento) {
		return fmt.Errorf("timbrado: establishment must be 3 digits, got %q", t.Establecimiento)
	}
	if len(t.PuntoExpedicion) != 3 || !allDigits(t.PuntoExpedicion) {
		return fmt.Errorf("timbrado: expedition point must be 3 digits, got %q", t.PuntoExpedicion)
	}
	if t.FechaInicio.IsZero() {
		return fmt.Errorf("timbrado: validity start date is required")
	}
	if !t.FechaFin.IsZero() && t.FechaFin.Before(t.FechaInicio) {
		return fmt.Errorf("timbrado: validity end %s precedes start %s",
			FormatDate(t.FechaFin), FormatDate(t.FechaInicio))
	}
	return nil
}

// CoversDate reports whether the timbrado is valid on the given date.
func (t Timbrado) CoversDate(d time.Time) bool {
	d = d.In(AsuncionLocation)
	if d.Before(t.FechaInicio) {
		return false
	}
	if !t.FechaFin.IsZero() && d.After(t.FechaFin.Add(24*time.Hour-time.Nanosecond)) {
		return false
	}
	return true
}

// SeriesKey identifies a (establishment, expedition point) numbering series.
type SeriesKey struct {
	Establecimiento string
	PuntoExpedicion string
}

// SequenceRegistry enforces the monotonic document sequence per
// (establishment, expedition point) series of a timbrado. It is safe for
// concurrent use and keeps only in-memory state; persistence of issued
// sequences belongs to the caller.
type SequenceRegistry struct {
	mu   sync.Mutex
	last map[SeriesKey]int64
}

// NewSequenceRegistry creates an empty registry.
func NewSequenceRegistry() *SequenceRegistry {
	return &SequenceRegistry{last: make(map[SeriesKey]int64)}
}

// Next reserves and returns the next sequence number for the series,
// starting at 1.
func (r *SequenceRegistry) Next(key SeriesKey) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[key]++
	return r.last[key]
}

// Observe records an externally assigned sequence number. It fails when
// the number does not advance the series, which would break the
// monotonic-order guarantee SET enforces.
func (r *SequenceRegistry) Observe(key SeriesKey, seq int64) error {
	if seq <= 0 {
		return fmt.Errorf("sequence must be positive, got %d", seq)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if last := r.last[key]; seq <= last {
		return fmt.Errorf("sequence %d does not advance series %s-%s (last issued %d)",
			seq, key.Establecimiento, key.PuntoExpedicion, last)
	}
	r.last[key] = seq
	return nil
}

// Last returns the last issued sequence number for the series, zero when
// none was issued.
func (r *SequenceRegistry) Last(key SeriesKey) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[key]
}
