package sifen

import (
	"fmt"
)

// ViolationKind groups validation findings for programmatic handling.
type ViolationKind string

const (
	ViolationStructure ViolationKind = "structure"
	ViolationIdentity  ViolationKind = "identity"
	ViolationDates     ViolationKind = "dates"
	ViolationAmounts   ViolationKind = "amounts"
	ViolationTransport ViolationKind = "transport"
	ViolationReference ViolationKind = "reference"
)

// Violation is one structured validation finding. Validate never fails
// with an error for data defects; it reports them as violations.
type Violation struct {
	Kind    ViolationKind
	Path    string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Kind, v.Path, v.Message)
}

// kindValidators dispatches kind-specific rules; the shared head rules
// run for every document.
var kindValidators = map[DocumentKind]func(*Documento) []Violation{
	KindInvoice:       validateInvoice,
	KindAutoInvoice:   validateAutoInvoice,
	KindCreditNote:    validateNote,
	KindDebitNote:     validateNote,
	KindRemissionNote: validateRemission,
}

// Validate runs every modular business rule over the document and
// returns the violations found. An empty slice means the document is
// admissible for signing.
func (d *Documento) Validate() []Violation {
	var vs []Violation
	vs = append(vs, d.validateHead()...)
	vs = append(vs, d.validateItems()...)
	vs = append(vs, d.validateTotals()...)
	if fn, ok := kindValidators[d.Kind]; ok {
		vs = append(vs, fn(d)...)
	} else {
		vs = append(vs, Violation{ViolationStructure, "iTipDE", fmt.Sprintf("unknown document kind %d", d.Kind)})
	}
	return vs
}

func (d *Documento) validateHead() []Violation {
	var vs []Violation

	est, exp, seq, ok := d.NumeroParts()
	if !ok {
		vs = append(vs, Violation{ViolationStructure, "dNumDoc",
			fmt.Sprintf("document number %q does not match NNN-NNN-NNNNNNN", d.Numero)})
	} else {
		if atoiSeg(seq) <= 0 {
			vs = append(vs, Violation{ViolationStructure, "dNumDoc", "sequence must be positive"})
		}
		if est != d.Timbrado.Establecimiento {
			vs = append(vs, Violation{ViolationStructure, "dEst",
				fmt.Sprintf("establishment %s does not match timbrado establishment %s", est, d.Timbrado.Establecimiento)})
		}
		if exp != d.Timbrado.PuntoExpedicion {
			vs = append(vs, Violation{ViolationStructure, "dPunExp",
				fmt.Sprintf("expedition point %s does not match timbrado expedition point %s", exp, d.Timbrado.PuntoExpedicion)})
		}
	}

	if err := d.Timbrado.Validate(); err != nil {
		vs = append(vs, Violation{ViolationStructure, "gTimb", err.Error()})
	} else if !d.Emision.IsZero() && !d.Timbrado.CoversDate(d.Emision) {
		vs = append(vs, Violation{ViolationDates, "gTimb",
			fmt.Sprintf("issuance date %s falls outside timbrado validity", FormatDate(d.Emision))})
	}

	if d.Emision.IsZero() {
		vs = append(vs, Violation{ViolationDates, "dFeEmiDE", "issuance timestamp is required"})
	} else if d.Emision.After(NowAsuncion()) {
		vs = append(vs, Violation{ViolationDates, "dFeEmiDE",
			fmt.Sprintf("issuance timestamp %s is in the future", FormatDateTime(d.Emision))})
	}

	if d.TipoEmision != EmissionNormal && d.TipoEmision != EmissionContingency {
		vs = append(vs, Violation{ViolationStructure, "iTipEmi", fmt.Sprintf("invalid emission type %d", d.TipoEmision)})
	}

	if !d.Emisor.RUC.Valid() {
		vs = append(vs, Violation{ViolationIdentity, "gEmis/dRucEm",
			fmt.Sprintf("issuer ruc %s has an invalid check digit", d.Emisor.RUC)})
	}
	if d.Emisor.RazonSocial == "" {
		vs = append(vs, Violation{ViolationIdentity, "gEmis/dNomEmi", "issuer name is required"})
	}

	switch d.Receptor.Naturaleza {
	case ReceiverTaxpayer:
		if d.Receptor.RUC == nil || !d.Receptor.RUC.Valid() {
			vs = append(vs, Violation{ViolationIdentity, "gDatRec/dRucRec", "taxpayer receiver requires a valid ruc"})
		}
	case ReceiverNonTaxpayer:
		if d.Receptor.TipoDocumento != IdentityInnominate && d.Receptor.NumeroDocumento == "" {
			vs = append(vs, Violation{ViolationIdentity, "gDatRec/dNumIDRec", "non-taxpayer receiver requires an identity document"})
		}
	default:
		vs = append(vs, Violation{ViolationIdentity, "gDatRec/iNatRec",
			fmt.Sprintf("invalid receiver nature %d", d.Receptor.Naturaleza)})
	}

	if d.Moneda == "" {
		vs = append(vs, Violation{ViolationStructure, "cMoneOpe", "currency code is required"})
	} else if !ValidCurrency(d.Moneda) {
		vs = append(vs, Violation{ViolationStructure, "cMoneOpe", fmt.Sprintf("unknown currency %q", d.Moneda)})
	} else if d.Moneda != "PYG" && d.TipoCambio.IsZero() {
		vs = append(vs, Violation{ViolationAmounts, "dTiCam", "non-PYG documents require an exchange rate"})
	}

	if d.CodigoSeguridad != "" && (len(d.CodigoSeguridad) != 9 || !allDigits(d.CodigoSeguridad)) {
		vs = append(vs, Violation{ViolationStructure, "dCodSeg",
			fmt.Sprintf("security code must be 9 digits, got %q", d.CodigoSeguridad)})
	}
	return vs
}

func (d *Documento) validateItems() []Violation {
	var vs []Violation
	if len(d.Items) == 0 {
		vs = append(vs, Violation{ViolationStructure, "gCamItem", "at least one line item is required"})
		return vs
	}
	for i, it := range d.Items {
		path := fmt.Sprintf("gCamItem[%d]", i+1)
		if it.Codigo == "" {
			vs = append(vs, Violation{ViolationStructure, path + "/dCodInt", "item code is required"})
		}
		if it.Descripcion == "" {
			vs = append(vs, Violation{ViolationStructure, path + "/dDesProSer", "item description is required"})
		}
		if !it.Cantidad.IsPositive() {
			vs = append(vs, Violation{ViolationAmounts, path + "/dCantProSer", "quantity must be greater than zero"})
		}
		if it.Cantidad.Exponent() < -4 {
			vs = append(vs, Violation{ViolationAmounts, path + "/dCantProSer", "quantity allows at most 4 fractional digits"})
		}
		if it.PrecioUnitario.IsNegative() {
			vs = append(vs, Violation{ViolationAmounts, path + "/dPUniProSer", "unit price must not be negative"})
		}
		if d.Kind == KindRemissionNote {
			if !it.PrecioUnitario.IsZero() {
				vs = append(vs, Violation{ViolationAmounts, path + "/dPUniProSer", "remission note lines carry zero prices"})
			}
		} else if it.PrecioUnitario.IsZero() {
			vs = append(vs, Violation{ViolationAmounts, path + "/dPUniProSer", "unit price must be greater than zero"})
		}
		switch it.TasaIVA {
		case 0, 5, 10:
		default:
			vs = append(vs, Violation{ViolationAmounts, path + "/dTasaIVA", fmt.Sprintf("invalid IVA rate %d", it.TasaIVA)})
		}
		if (it.Afectacion == IVATaxed || it.Afectacion == IVAMixed) && it.TasaIVA == 0 {
			vs = append(vs, Violation{ViolationAmounts, path + "/dTasaIVA", "taxed lines require a 5 or 10 percent rate"})
		}
		// Amount format: the overall integer part is capped at 15 digits.
		if len(it.TotalLinea(d.Moneda).Truncate(0).Abs().String()) > 15 {
			vs = append(vs, Violation{ViolationAmounts, path + "/dTotOpeItem", "amount integer part exceeds 15 digits"})
		}
	}
	return vs
}

func (d *Documento) validateTotals() []Violation {
	var vs []Violation
	if d.Moneda == "" || !ValidCurrency(d.Moneda) {
		return vs // currency violations already reported
	}
	if ok, field := d.Totales.CoherentWith(d.Items, d.Moneda); !ok {
		vs = append(vs, Violation{ViolationAmounts, "gTotSub/" + field,
			"declared totals do not match amounts recomputed from the line items"})
	}
	if len(d.Totales.TotalGeneral.Truncate(0).Abs().String()) > 15 {
		vs = append(vs, Violation{ViolationAmounts, "gTotSub/dTotGralOpe", "amount integer part exceeds 15 digits"})
	}
	return vs
}

func validateInvoice(d *Documento) []Violation {
	// The ordinary sale has no sub-record beyond the shared head.
	return nil
}

func validateAutoInvoice(d *Documento) []Violation {
	var vs []Violation
	if d.Receptor.RUC == nil || d.Receptor.RUC.String() != d.Emisor.RUC.String() {
		vs = append(vs, Violation{ViolationIdentity, "gDatRec/dRucRec",
			"auto-invoice receiver ruc must equal the issuer ruc"})
	}
	v := d.VendedorExterior
	if v == nil {
		vs = append(vs, Violation{ViolationStructure, "gCamAE", "auto-invoice requires the foreign seller record"})
		return vs
	}
	if v.Nombre == "" || v.NumeroDocumento == "" {
		vs = append(vs, Violation{ViolationIdentity, "gCamAE", "foreign seller identity is incomplete"})
	}
	if v.Direccion == "" {
		vs = append(vs, Violation{ViolationStructure, "gCamAE/dDirVen", "foreign seller address is required"})
	}
	if v.DireccionTrans == "" || v.CiudadTrans == "" {
		vs = append(vs, Violation{ViolationStructure, "gCamAE/dDirProv", "transaction location is incomplete"})
	}
	return vs
}

func validateNote(d *Documento) []Violation {
	var vs []Violation
	a := d.DocAsociado
	if a == nil {
		vs = append(vs, Violation{ViolationReference, "gDocAso", "credit and debit notes require an associated document"})
		return vs
	}
	if err := ValidateCDC(a.CDC); err != nil {
		vs = append(vs, Violation{ViolationReference, "gDocAso/dCdCDERef",
			fmt.Sprintf("associated document cdc is invalid: %v", err)})
	}
	if a.FechaEmision.IsZero() {
		vs = append(vs, Violation{ViolationReference, "gDocAso/dFecEmiDI", "associated document issuance date is required"})
	} else if !d.Emision.IsZero() && !a.FechaEmision.Before(d.Emision) {
		vs = append(vs, Violation{ViolationDates, "gDocAso/dFecEmiDI",
			"associated document must have been issued strictly before this document"})
	}
	return vs
}

func validateRemission(d *Documento) []Violation {
	var vs []Violation
	if !d.Totales.IsZero() {
		vs = append(vs, Violation{ViolationAmounts, "gTotSub", "remission note totals must be exactly zero"})
	}
	t := d.Transporte
	if t == nil {
		vs = append(vs, Violation{ViolationTransport, "gCamTrans", "remission note requires the transport record"})
		return vs
	}
	if t.DireccionSalida == "" {
		vs = append(vs, Violation{ViolationTransport, "gCamTrans/gCamSal", "transport start address is required"})
	}
	if t.DireccionLlegada == "" {
		vs = append(vs, Violation{ViolationTransport, "gCamTrans/gCamEnt", "transport end address is required"})
	}
	if len(t.Vehiculos) == 0 {
		vs = append(vs, Violation{ViolationTransport, "gCamTrans/gVehTras", "at least one vehicle is required"})
	}
	for i, v := range t.Vehiculos {
		path := fmt.Sprintf("gCamTrans/gVehTras[%d]", i+1)
		if v.NumeroID == "" {
			vs = append(vs, Violation{ViolationTransport, path + "/dNroIDVeh", "vehicle identification is required"})
		}
		if v.Conductor.Nombre == "" || v.Conductor.NumeroDocumento == "" {
			vs = append(vs, Violation{ViolationTransport, path + "/gCamCond", "driver identity is required"})
		}
	}
	return vs
}
