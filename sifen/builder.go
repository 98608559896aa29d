package sifen

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Builder assembles a Documento incrementally with early validation of
// each part, mirroring how upstream code usually constructs documents.
// A Builder may be reused after Build; it is safe for concurrent use.
type Builder struct {
	mu            sync.Mutex
	doc           Documento
	removeAccents bool
}

// NewBuilder creates a builder for the given document kind. Currency
// defaults to PYG and emission type to normal.
func NewBuilder(kind DocumentKind) *Builder {
	return &Builder{doc: Documento{
		Kind:        kind,
		TipoEmision: EmissionNormal,
		Moneda:      "PYG",
	}}
}

// SetRemoveAccents enables diacritic stripping on free text fields.
func (b *Builder) SetRemoveAccents(remove bool) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeAccents = remove
	return b
}

// SetEmision sets the issuance timestamp.
func (b *Builder) SetEmision(t time.Time) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc.Emision = t.In(AsuncionLocation)
	return b
}

// SetTipoEmision sets normal or contingency issuance.
func (b *Builder) SetTipoEmision(et EmissionType) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc.TipoEmision = et
	return b
}

// SetNumero sets the document number in NNN-NNN-NNNNNNN form.
func (b *Builder) SetNumero(numero string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc.Numero = numero
	return b
}

// SetTimbrado sets the authorization record.
func (b *Builder) SetTimbrado(t Timbrado) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := t.Validate(); err != nil {
		return err
	}
	b.doc.Timbrado = t
	return nil
}

// SetEmisor sets the issuer.
func (b *Builder) SetEmisor(e Emisor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !e.RUC.Valid() {
		return fmt.Errorf("issuer ruc %s is invalid", e.RUC)
	}
	if e.RazonSocial == "" {
		return fmt.Errorf("issuer name is required")
	}
	e.RazonSocial = NormalizeText(e.RazonSocial, b.removeAccents, 255)
	e.NombreFantasia = NormalizeText(e.NombreFantasia, b.removeAccents, 255)
	e.Direccion = NormalizeText(e.Direccion, b.removeAccents, 255)
	b.doc.Emisor = e
	return nil
}

// SetReceptor sets the receiving party.
func (b *Builder) SetReceptor(r Receptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Naturaleza == ReceiverTaxpayer && (r.RUC == nil || !r.RUC.Valid()) {
		return fmt.Errorf("taxpayer receiver requires a valid ruc")
	}
	if r.Pais == "" {
		r.Pais = "PRY"
	}
	r.RazonSocial = NormalizeText(r.RazonSocial, b.removeAccents, 255)
	r.Direccion = NormalizeText(r.Direccion, b.removeAccents, 255)
	b.doc.Receptor = r
	return nil
}

// SetMoneda sets the currency and, for non-PYG documents, the exchange rate.
func (b *Builder) SetMoneda(code string, tipoCambio decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !ValidCurrency(code) {
		return fmt.Errorf("unknown currency %q", code)
	}
	if code != "PYG" && tipoCambio.IsZero() {
		return fmt.Errorf("currency %s requires an exchange rate", code)
	}
	b.doc.Moneda = code
	b.doc.TipoCambio = tipoCambio
	return nil
}

// AddItem appends a line item.
func (b *Builder) AddItem(it Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if it.Codigo == "" || it.Descripcion == "" {
		return fmt.Errorf("item code and description are required")
	}
	if !it.Cantidad.IsPositive() {
		return fmt.Errorf("item quantity must be positive")
	}
	it.Descripcion = NormalizeText(it.Descripcion, b.removeAccents, 120)
	b.doc.Items = append(b.doc.Items, it)
	return nil
}

// SetDocAsociado sets the referenced document for credit and debit notes.
func (b *Builder) SetDocAsociado(a DocumentoAsociado) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc.Kind != KindCreditNote && b.doc.Kind != KindDebitNote {
		return fmt.Errorf("associated document applies only to credit and debit notes")
	}
	if err := ValidateCDC(a.CDC); err != nil {
		return fmt.Errorf("associated document: %w", err)
	}
	b.doc.DocAsociado = &a
	return nil
}

// SetVendedorExterior sets the foreign seller record for auto-invoices.
func (b *Builder) SetVendedorExterior(v VendedorExterior) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc.Kind != KindAutoInvoice {
		return fmt.Errorf("foreign seller record applies only to auto-invoices")
	}
	b.doc.VendedorExterior = &v
	return nil
}

// SetTransporte sets the transport record for remission notes.
func (b *Builder) SetTransporte(t Transporte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc.Kind != KindRemissionNote {
		return fmt.Errorf("transport record applies only to remission notes")
	}
	if len(t.Vehiculos) == 0 {
		return fmt.Errorf("transport record requires at least one vehicle")
	}
	b.doc.Transporte = &t
	return nil
}

// SetCondicionPago sets the payment conditions group.
func (b *Builder) SetCondicionPago(c CondicionPago) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc.CondicionPago = &c
	return b
}

// Build recomputes the totals, generates the CDC and returns an immutable
// snapshot of the document plus any remaining modular violations.
func (b *Builder) Build() (Documento, []Violation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc := b.doc
	if doc.Emision.IsZero() {
		doc.Emision = NowAsuncion()
	}
	doc.Totales = RecomputeTotals(doc.Items, doc.Moneda)
	doc, err := doc.GenerateCDC()
	if err != nil {
		return doc, nil, err
	}
	return doc, doc.Validate(), nil
}
