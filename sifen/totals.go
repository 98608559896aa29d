package sifen

import (
	"github.com/shopspring/decimal"
)

// Totales is the monetary summary of a document: per-rate subtotals,
// IVA per rate, and the overall figures.
type Totales struct {
	SubtotalExento decimal.Decimal // sum of exempt amounts
	Subtotal5      decimal.Decimal // sum of 5%-taxed line totals
	Subtotal10     decimal.Decimal // sum of 10%-taxed line totals
	IVA5           decimal.Decimal
	IVA10          decimal.Decimal
	TotalIVA       decimal.Decimal
	TotalOperacion decimal.Decimal // sum of line totals
	TotalGeneral   decimal.Decimal // amount owed
}

// ToleranceFor returns the per-currency tolerance used when comparing
// declared against recomputed amounts: one whole unit for PYG, one cent
// for decimal currencies.
func ToleranceFor(currency string) decimal.Decimal {
	if CurrencyFractionDigits(currency) == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.New(1, -2)
}

// RecomputeTotals derives the totals from the line items for the given
// currency. Remission notes produce all-zero totals by construction since
// their prices are zero.
func RecomputeTotals(items []Item, currency string) Totales {
	var t Totales
	scale := int32(CurrencyFractionDigits(currency))
	for _, it := range items {
		total := it.TotalLinea(currency)
		t.TotalOperacion = t.TotalOperacion.Add(total)
		t.SubtotalExento = t.SubtotalExento.Add(it.MontoExenta(currency))
		switch it.TasaIVA {
		case 5:
			if it.Afectacion == IVATaxed || it.Afectacion == IVAMixed {
				t.Subtotal5 = t.Subtotal5.Add(total.Sub(it.MontoExenta(currency)))
				t.IVA5 = t.IVA5.Add(it.MontoIVA(currency))
			}
		case 10:
			if it.Afectacion == IVATaxed || it.Afectacion == IVAMixed {
				t.Subtotal10 = t.Subtotal10.Add(total.Sub(it.MontoExenta(currency)))
				t.IVA10 = t.IVA10.Add(it.MontoIVA(currency))
			}
		}
	}
	t.IVA5 = t.IVA5.Round(scale)
	t.IVA10 = t.IVA10.Round(scale)
	t.TotalIVA = t.IVA5.Add(t.IVA10)
	t.TotalOperacion = t.TotalOperacion.Round(scale)
	t.TotalGeneral = t.TotalOperacion
	return t
}

// CoherentWith reports whether the declared totals match those recomputed
// from the items within the currency tolerance. The first mismatching
// field name is returned for diagnostics.
func (t Totales) CoherentWith(items []Item, currency string) (bool, string) {
	want := RecomputeTotals(items, currency)
	tol := ToleranceFor(currency)
	checks := []struct {
		name string
		got  decimal.Decimal
		want decimal.Decimal
	}{
		{"dSubExe", t.SubtotalExento, want.SubtotalExento},
		{"dSub5", t.Subtotal5, want.Subtotal5},
		{"dSub10", t.Subtotal10, want.Subtotal10},
		{"dIVA5", t.IVA5, want.IVA5},
		{"dIVA10", t.IVA10, want.IVA10},
		{"dTotIVA", t.TotalIVA, want.TotalIVA},
		{"dTotOpe", t.TotalOperacion, want.TotalOperacion},
		{"dTotGralOpe", t.TotalGeneral, want.TotalGeneral},
	}
	for _, c := range checks {
		if c.got.Sub(c.want).Abs().GreaterThan(tol) {
			return false, c.name
		}
	}
	return true, ""
}

// IsZero reports whether every monetary field is zero, as a remission
// note requires.
func (t Totales) IsZero() bool {
	return t.SubtotalExento.IsZero() && t.Subtotal5.IsZero() && t.Subtotal10.IsZero() &&
		t.IVA5.IsZero() && t.IVA10.IsZero() && t.TotalIVA.IsZero() &&
		t.TotalOperacion.IsZero() && t.TotalGeneral.IsZero()
}

// FormatAmount renders a monetary value with the currency's mandated
// number of fractional digits.
func FormatAmount(v decimal.Decimal, currency string) string {
	return v.StringFixed(int32(CurrencyFractionDigits(currency)))
}

// FormatQuantity renders a quantity with four fractional digits.
func FormatQuantity(v decimal.Decimal) string {
	return v.StringFixed(4)
}
