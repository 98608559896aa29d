package sifen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Emisor identifies the issuing taxpayer.
type Emisor struct {
	RUC               RUC
	TipoContribuyente TaxpayerType // defaults to legal entity
	RazonSocial       string
	NombreFantasia    string
	Direccion         string
	Departamento      int
	Ciudad            string
	Telefono          string
	Email             string
}

// Receptor identifies the receiving party. Non-taxpayers carry an
// identity document instead of a RUC.
type Receptor struct {
	Naturaleza      ReceiverNature
	RUC             *RUC // taxpayers only
	TipoDocumento   IdentityDocumentType
	NumeroDocumento string
	RazonSocial     string
	Direccion       string
	Email           string
	Pais            string // ISO 3166-1 alpha-3, defaults to PRY
}

// VendedorExterior is the foreign-seller sub-record an auto-invoice (AFE)
// must carry: the importer self-issues on behalf of a seller abroad.
type VendedorExterior struct {
	Naturaleza      int // SET table: 1 = no contribuyente, 2 = extranjero
	TipoDocumento   IdentityDocumentType
	NumeroDocumento string
	Nombre          string
	Direccion       string
	DepartamentoVen int
	CiudadVen       string
	// Transaction location.
	DireccionTrans    string
	DepartamentoTrans int
	CiudadTrans       string
}

// DocumentoAsociado references the earlier document a credit or debit
// note modifies, by CDC value.
type DocumentoAsociado struct {
	CDC             string // 44 digits
	Kind            DocumentKind
	Timbrado        string // 8 digits
	Establecimiento string
	PuntoExpedicion string
	Numero          string
	FechaEmision    time.Time
}

// Conductor identifies the vehicle driver on a remission note.
type Conductor struct {
	Nombre          string
	NumeroDocumento string
	Direccion       string
}

// Vehiculo is one transport vehicle on a remission note.
type Vehiculo struct {
	Tipo      string // e.g. camión, furgón
	Marca     string
	NumeroID  string // chapa or chassis
	Conductor Conductor
}

// Transporte is the mandatory transport record of a remission note.
type Transporte struct {
	Modalidad        TransportMode
	Responsable      FreightResponsible
	DireccionSalida  string
	DireccionLlegada string
	FechaInicio      time.Time
	FechaFin         time.Time
	Vehiculos        []Vehiculo
}

// CuotaPago is one installment of a credit operation.
type CuotaPago struct {
	Monto       decimal.Decimal
	Moneda      string
	Vencimiento time.Time
}

// CondicionPago carries the payment conditions group.
type CondicionPago struct {
	Condicion PaymentCondition
	Cuotas    []CuotaPago
}

// Documento is an immutable snapshot of one electronic document. The
// core never mutates a caller's value: transformations return new values.
type Documento struct {
	Kind         DocumentKind
	Emision      time.Time
	TipoEmision  EmissionType
	Numero       string // "NNN-NNN-NNNNNNN"
	Timbrado     Timbrado
	Emisor       Emisor
	Receptor     Receptor
	Items        []Item
	Totales      Totales
	Moneda       string
	TipoCambio   decimal.Decimal // required for non-PYG documents

	CodigoSeguridad string // 9 digit CSC; generated when empty
	CDC             string // assigned after generation

	// Kind-specific sub-records.
	DocAsociado      *DocumentoAsociado // NCE/NDE
	VendedorExterior *VendedorExterior  // AFE
	Transporte       *Transporte        // NRE
	CondicionPago    *CondicionPago
}

// NumeroParts splits the "NNN-NNN-NNNNNNN" document number into
// establishment, expedition point and sequence. ok is false when the
// number does not match the pattern.
func (d *Documento) NumeroParts() (est, exp, seq string, ok bool) {
	if len(d.Numero) != 15 || d.Numero[3] != '-' || d.Numero[7] != '-' {
		return "", "", "", false
	}
	est, exp, seq = d.Numero[:3], d.Numero[4:7], d.Numero[8:]
	if !allDigits(est) || !allDigits(exp) || !allDigits(seq) {
		return "", "", "", false
	}
	return est, exp, seq, true
}

// SeriesKey returns the numbering series the document belongs to.
func (d *Documento) SeriesKey() SeriesKey {
	est, exp, _, _ := d.NumeroParts()
	return SeriesKey{Establecimiento: est, PuntoExpedicion: exp}
}

// Fingerprint returns a stable identifier derived from issuer, timbrado,
// sequence and issuance timestamp. It survives re-validation and signing
// and correlates retries of the same submission.
func (d *Documento) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s",
		d.Emisor.RUC.String(),
		d.Timbrado.Numero,
		d.Numero,
		d.Kind,
		d.Emision.In(AsuncionLocation).Format(DateTimeLayout))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateCDC assigns the document's CDC (and security code, when absent)
// and returns a copy with both populated. The receiver is not modified.
func (d Documento) GenerateCDC() (Documento, error) {
	est, exp, seq, ok := d.NumeroParts()
	if !ok {
		return d, fmt.Errorf("document number %q does not match NNN-NNN-NNNNNNN", d.Numero)
	}
	csc := d.CodigoSeguridad
	if csc == "" {
		var err error
		csc, err = GenerateSecurityCode()
		if err != nil {
			return d, err
		}
	}
	cdc, err := GenerateCDC(CDCRequest{
		IssuerRUC:       d.Emisor.RUC,
		Kind:            d.Kind,
		Establishment:   est,
		ExpeditionPoint: exp,
		Number:          seq,
		IssueDate:       d.Emision,
		Emission:        d.TipoEmision,
		Taxpayer:        d.Emisor.TipoContribuyente,
		SecurityCode:    csc,
	})
	if err != nil {
		return d, err
	}
	d.CodigoSeguridad = csc
	d.CDC = cdc
	return d, nil
}
