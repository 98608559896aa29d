package sifen

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	five    = decimal.NewFromInt(5)
	ten     = decimal.NewFromInt(10)
)

// Item is one line of an electronic document. Prices are understood as
// IVA-inclusive, as SIFEN mandates for retail documents.
type Item struct {
	Codigo         string
	Descripcion    string
	Cantidad       decimal.Decimal // up to 4 fractional digits
	UnidadMedida   string          // SET unit code, e.g. "77" (unidad)
	PrecioUnitario decimal.Decimal
	Afectacion     IVAAffectation
	TasaIVA        int // 0, 5 or 10
	ProporcionIVA  int // percentage of the base that is taxed; 100 unless mixed

	// Optional traceability attributes.
	Lote       string
	Serie      string
	NCM        string
	PaisOrigen string // ISO 3166-1 alpha-3
}

// TotalLinea returns quantity × unit price rounded to the currency's
// fractional digits.
func (it Item) TotalLinea(currency string) decimal.Decimal {
	return it.Cantidad.Mul(it.PrecioUnitario).Round(int32(CurrencyFractionDigits(currency)))
}

// BaseGravada returns the taxable base of the line. For IVA-inclusive
// totals the base is total×100/(100+rate), scaled by the taxed
// proportion; exempt and untaxed lines have a zero base.
func (it Item) BaseGravada(currency string) decimal.Decimal {
	if !it.taxed() || it.TasaIVA == 0 {
		return decimal.Zero
	}
	total := it.TotalLinea(currency)
	prop := decimal.NewFromInt(int64(it.proportion())).Div(hundred)
	rate := decimal.NewFromInt(int64(100 + it.TasaIVA))
	return total.Mul(prop).Mul(hundred).Div(rate).Round(int32(CurrencyFractionDigits(currency)))
}

// MontoIVA returns the IVA amount of the line: base × rate / 100.
func (it Item) MontoIVA(currency string) decimal.Decimal {
	if !it.taxed() || it.TasaIVA == 0 {
		return decimal.Zero
	}
	base := it.BaseGravada(currency)
	rate := decimal.NewFromInt(int64(it.TasaIVA))
	return base.Mul(rate).Div(hundred).Round(int32(CurrencyFractionDigits(currency)))
}

// MontoExenta returns the exempt portion of the line total.
func (it Item) MontoExenta(currency string) decimal.Decimal {
	total := it.TotalLinea(currency)
	if !it.taxed() {
		return total
	}
	if it.Afectacion == IVAMixed {
		prop := decimal.NewFromInt(int64(100 - it.proportion())).Div(hundred)
		return total.Mul(prop).Round(int32(CurrencyFractionDigits(currency)))
	}
	return decimal.Zero
}

func (it Item) taxed() bool {
	return it.Afectacion == IVATaxed || it.Afectacion == IVAMixed
}

func (it Item) proportion() int {
	if it.ProporcionIVA <= 0 || it.ProporcionIVA > 100 {
		return 100
	}
	return it.ProporcionIVA
}
