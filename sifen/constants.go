// Package sifen provides the document model, identifiers and validation
// rules for Paraguay's SIFEN electronic documents (SET schema v150).
package sifen

// Version is the current version of the library.
const Version = "0.1.0"

// XML namespace and layout constants.
const (
	SifenNamespace = "http://ekuatia.set.gov.py/sifen/xsd"
	DSigNamespace  = "http://www.w3.org/2000/09/xmldsig#"

	XMLEncoding   = "UTF-8"
	LayoutVersion = "150"
)

// Environment selects the SET environment.
type Environment int

const (
	// EnvironmentTest is the SET homologation environment (sifen-test).
	EnvironmentTest Environment = iota + 1
	// EnvironmentProduction is the live SET environment.
	EnvironmentProduction
)

// String returns the string representation of Environment.
func (e Environment) String() string {
	switch e {
	case EnvironmentProduction:
		return "prod"
	default:
		return "test"
	}
}

// DocumentKind identifies one of the five electronic document variants.
type DocumentKind int

const (
	KindInvoice       DocumentKind = 1 // FE - Factura electrónica
	KindAutoInvoice   DocumentKind = 4 // AFE - Autofactura electrónica
	KindCreditNote    DocumentKind = 5 // NCE - Nota de crédito electrónica
	KindDebitNote     DocumentKind = 6 // NDE - Nota de débito electrónica
	KindRemissionNote DocumentKind = 7 // NRE - Nota de remisión electrónica
)

// Valid reports whether k names one of the five document variants.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindInvoice, KindAutoInvoice, KindCreditNote, KindDebitNote, KindRemissionNote:
		return true
	}
	return false
}

// String returns the two-character code used inside the CDC.
func (k DocumentKind) String() string {
	switch k {
	case KindInvoice:
		return "01"
	case KindAutoInvoice:
		return "04"
	case KindCreditNote:
		return "05"
	case KindDebitNote:
		return "06"
	case KindRemissionNote:
		return "07"
	default:
		return "00"
	}
}

// Description returns the official SET description for the document kind.
func (k DocumentKind) Description() string {
	if d, ok := documentKindDescriptions[k]; ok {
		return d
	}
	return "Desconocido"
}

var documentKindDescriptions = map[DocumentKind]string{
	KindInvoice:       "Factura electrónica",
	KindAutoInvoice:   "Autofactura electrónica",
	KindCreditNote:    "Nota de crédito electrónica",
	KindDebitNote:     "Nota de débito electrónica",
	KindRemissionNote: "Nota de remisión electrónica",
}

// EmissionType distinguishes normal from contingency issuance.
type EmissionType int

const (
	EmissionNormal      EmissionType = 1
	EmissionContingency EmissionType = 2
)

// String returns the single digit used inside the CDC.
func (et EmissionType) String() string {
	switch et {
	case EmissionContingency:
		return "2"
	default:
		return "1"
	}
}

// Description returns the official description for the emission type.
func (et EmissionType) Description() string {
	switch et {
	case EmissionContingency:
		return "Contingencia"
	default:
		return "Normal"
	}
}

// TaxpayerType classifies the issuer as a physical person or a legal
// entity. It occupies one digit of the CDC.
type TaxpayerType int

const (
	TaxpayerPhysical TaxpayerType = 1 // Persona física
	TaxpayerLegal    TaxpayerType = 2 // Persona jurídica
)

// Valid reports whether t is one of the two taxpayer classes.
func (t TaxpayerType) Valid() bool {
	return t == TaxpayerPhysical || t == TaxpayerLegal
}

// String returns the single digit used inside the CDC.
func (t TaxpayerType) String() string {
	if t == TaxpayerPhysical {
		return "1"
	}
	return "2"
}

// IVAAffectation classifies the IVA treatment of a line item.
type IVAAffectation int

const (
	IVATaxed   IVAAffectation = 1 // Gravado IVA
	IVAExempt  IVAAffectation = 2 // Exonerado
	IVAUntaxed IVAAffectation = 3 // Exento
	IVAMixed   IVAAffectation = 4 // Gravado parcial
)

// String returns the single digit code for the affectation.
func (a IVAAffectation) String() string {
	switch a {
	case IVATaxed:
		return "1"
	case IVAExempt:
		return "2"
	case IVAUntaxed:
		return "3"
	case IVAMixed:
		return "4"
	default:
		return "1"
	}
}

// Description returns the official description for the affectation.
func (a IVAAffectation) Description() string {
	switch a {
	case IVATaxed:
		return "Gravado IVA"
	case IVAExempt:
		return "Exonerado (Art. 83- Ley 125/91)"
	case IVAUntaxed:
		return "Exento"
	case IVAMixed:
		return "Gravado parcial (Grav- Exento)"
	default:
		return "Gravado IVA"
	}
}

// TransportMode classifies how goods travel on a remission note.
type TransportMode int

const (
	TransportLand  TransportMode = 1 // Terrestre
	TransportRiver TransportMode = 2 // Fluvial
	TransportAir   TransportMode = 3 // Aéreo
	TransportMixed TransportMode = 4 // Multimodal
)

// String returns the single digit code for the transport mode.
func (m TransportMode) String() string {
	switch m {
	case TransportRiver:
		return "2"
	case TransportAir:
		return "3"
	case TransportMixed:
		return "4"
	default:
		return "1"
	}
}

// FreightResponsible identifies who answers for the goods in transit.
type FreightResponsible int

const (
	FreightIssuer   FreightResponsible = 1 // Emisor de la factura
	FreightReceiver FreightResponsible = 2 // Poseedor de la factura y la mercadería
	FreightCarrier  FreightResponsible = 3 // Empresa transportista
	FreightDriver   FreightResponsible = 4 // Despachante de aduanas
	FreightOther    FreightResponsible = 5 // Agente de transporte o intermediario
)

// PaymentCondition distinguishes cash from credit operations.
type PaymentCondition int

const (
	PaymentCash   PaymentCondition = 1 // Contado
	PaymentCredit PaymentCondition = 2 // Crédito
)

// Common currency codes accepted by SIFEN (ISO 4217).
var CurrencyDescriptions = map[string]string{
	"PYG": "Guaraní",
	"USD": "US Dollar",
	"EUR": "Euro",
	"BRL": "Real brasileño",
	"ARS": "Peso argentino",
}

// ValidCurrency reports whether the code appears in the SET currency table.
func ValidCurrency(code string) bool {
	_, ok := CurrencyDescriptions[code]
	return ok
}

// CurrencyFractionDigits returns the number of fractional digits mandated
// for amounts in the given currency. PYG carries no fraction; every other
// accepted currency uses two decimal places.
func CurrencyFractionDigits(code string) int {
	if code == "PYG" {
		return 0
	}
	return 2
}

// Paraguayan department codes (SET table).
var DepartmentDescriptions = map[int]string{
	1:  "Concepción",
	2:  "San Pedro",
	3:  "Cordillera",
	4:  "Guairá",
	5:  "Caaguazú",
	6:  "Caazapá",
	7:  "Itapúa",
	8:  "Misiones",
	9:  "Paraguarí",
	10: "Alto Paraná",
	11: "Central",
	12: "Ñeembucú",
	13: "Amambay",
	14: "Canindeyú",
	15: "Presidente Hayes",
	16: "Boquerón",
	17: "Alto Paraguay",
	18: "Capital",
}

// ReceiverNature classifies the receiver as taxpayer or not.
type ReceiverNature int

const (
	ReceiverTaxpayer    ReceiverNature = 1 // Contribuyente
	ReceiverNonTaxpayer ReceiverNature = 2 // No contribuyente
)

// IdentityDocumentType is the SET table for non-RUC identity documents.
type IdentityDocumentType int

const (
	IdentityCedula        IdentityDocumentType = 1 // Cédula paraguaya
	IdentityPassport      IdentityDocumentType = 2 // Pasaporte
	IdentityForeignCedula IdentityDocumentType = 3 // Cédula extranjera
	IdentityResidence     IdentityDocumentType = 4 // Carnet de residencia
	IdentityInnominate    IdentityDocumentType = 5 // Innominado
	IdentityTaxIDOther    IdentityDocumentType = 6 // Identificación tributaria extranjera
)
