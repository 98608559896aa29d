package sifen

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDocumento returns a document that passes every modular rule for
// the given kind. Tests mutate it to trigger specific violations.
func testDocumento(t *testing.T, kind DocumentKind) Documento {
	t.Helper()
	receiver, err := ParseRUC("04554737-0")
	require.NoError(t, err)

	d := Documento{
		Kind:        kind,
		Emision:     time.Date(2026, 1, 15, 10, 30, 0, 0, AsuncionLocation),
		TipoEmision: EmissionNormal,
		Numero:      "001-002-0000123",
		Timbrado:    testTimbrado(),
		Emisor: Emisor{
			RUC:         RUC{Base: "80012345", DV: 3},
			RazonSocial: "Comercial Asunción S.A.",
			Direccion:   "Avda. Mariscal López 1234",
		},
		Receptor: Receptor{
			Naturaleza:  ReceiverTaxpayer,
			RUC:         &receiver,
			RazonSocial: "Cliente S.R.L.",
			Pais:        "PRY",
		},
		Items: []Item{{
			Codigo:         "A1",
			Descripcion:    "Producto gravado",
			Cantidad:       decimal.NewFromInt(1),
			PrecioUnitario: decimal.NewFromInt(110000),
			Afectacion:     IVATaxed,
			TasaIVA:        10,
		}},
		Moneda:          "PYG",
		CodigoSeguridad: "123456789",
	}

	switch kind {
	case KindAutoInvoice:
		issuer := d.Emisor.RUC
		d.Receptor.RUC = &issuer
		d.VendedorExterior = &VendedorExterior{
			Naturaleza:      2,
			TipoDocumento:   IdentityTaxIDOther,
			NumeroDocumento: "BR-99887766",
			Nombre:          "Exportadora do Sul Ltda.",
			Direccion:       "Rua das Flores 100, Foz do Iguaçu",
			DireccionTrans:  "Ruta 7 km 30",
			CiudadTrans:     "Ciudad del Este",
		}
	case KindCreditNote, KindDebitNote:
		ref, err := GenerateCDC(testCDCRequest())
		require.NoError(t, err)
		d.DocAsociado = &DocumentoAsociado{
			CDC:          ref,
			Kind:         KindInvoice,
			FechaEmision: time.Date(2026, 1, 10, 9, 0, 0, 0, AsuncionLocation),
		}
	case KindRemissionNote:
		for i := range d.Items {
			d.Items[i].PrecioUnitario = decimal.Zero
		}
		d.Transporte = &Transporte{
			Modalidad:        TransportLand,
			Responsable:      FreightIssuer,
			DireccionSalida:  "Depósito central, Asunción",
			DireccionLlegada: "Sucursal Encarnación",
			FechaInicio:      d.Emision,
			Vehiculos: []Vehiculo{{
				Tipo:     "camión",
				Marca:    "Volvo",
				NumeroID: "ABC123",
				Conductor: Conductor{
					Nombre:          "Juan Benítez",
					NumeroDocumento: "1234567",
				},
			}},
		}
	}

	d.Totales = RecomputeTotals(d.Items, d.Moneda)
	return d
}

func TestValidateAcceptsEveryKind(t *testing.T) {
	kinds := []DocumentKind{KindInvoice, KindAutoInvoice, KindCreditNote, KindDebitNote, KindRemissionNote}
	for _, kind := range kinds {
		t.Run(kind.Description(), func(t *testing.T) {
			d := testDocumento(t, kind)
			assert.Empty(t, d.Validate())
		})
	}
}

func assertViolation(t *testing.T, vs []Violation, path string) {
	t.Helper()
	for _, v := range vs {
		if v.Path == path {
			return
		}
	}
	t.Errorf("expected a violation at %s, got %v", path, vs)
}

func TestValidateHead(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Documento)
		path   string
	}{
		{"bad number shape", func(d *Documento) { d.Numero = "1-2-3" }, "dNumDoc"},
		{"zero sequence", func(d *Documento) { d.Numero = "001-002-0000000" }, "dNumDoc"},
		{"establishment mismatch", func(d *Documento) { d.Numero = "009-002-0000123" }, "dEst"},
		{"expedition mismatch", func(d *Documento) { d.Numero = "001-009-0000123" }, "dPunExp"},
		{"outside timbrado window", func(d *Documento) {
			d.Emision = time.Date(2024, 6, 1, 0, 0, 0, 0, AsuncionLocation)
		}, "gTimb"},
		{"future issuance", func(d *Documento) { d.Emision = NowAsuncion().Add(48 * time.Hour) }, "dFeEmiDE"},
		{"missing issuance", func(d *Documento) { d.Emision = time.Time{} }, "dFeEmiDE"},
		{"bad emission type", func(d *Documento) { d.TipoEmision = 9 }, "iTipEmi"},
		{"bad issuer ruc", func(d *Documento) { d.Emisor.RUC.DV = 9 }, "gEmis/dRucEm"},
		{"missing issuer name", func(d *Documento) { d.Emisor.RazonSocial = "" }, "gEmis/dNomEmi"},
		{"taxpayer without ruc", func(d *Documento) { d.Receptor.RUC = nil }, "gDatRec/dRucRec"},
		{"unknown currency", func(d *Documento) { d.Moneda = "XXX" }, "cMoneOpe"},
		{"missing exchange rate", func(d *Documento) { d.Moneda = "USD" }, "dTiCam"},
		{"malformed csc", func(d *Documento) { d.CodigoSeguridad = "12" }, "dCodSeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDocumento(t, KindInvoice)
			tt.mutate(&d)
			assertViolation(t, d.Validate(), tt.path)
		})
	}
}

func TestValidateNonTaxpayerReceiver(t *testing.T) {
	d := testDocumento(t, KindInvoice)
	d.Receptor = Receptor{
		Naturaleza:      ReceiverNonTaxpayer,
		TipoDocumento:   IdentityCedula,
		NumeroDocumento: "4123456",
		RazonSocial:     "María González",
	}
	assert.Empty(t, d.Validate())

	d.Receptor.NumeroDocumento = ""
	assertViolation(t, d.Validate(), "gDatRec/dNumIDRec")

	// Innominate sales carry no identity document at all.
	d.Receptor.TipoDocumento = IdentityInnominate
	assert.Empty(t, d.Validate())
}

func TestValidateItems(t *testing.T) {
	t.Run("no items", func(t *testing.T) {
		d := testDocumento(t, KindInvoice)
		d.Items = nil
		d.Totales = RecomputeTotals(d.Items, d.Moneda)
		assertViolation(t, d.Validate(), "gCamItem")
	})
	t.Run("zero quantity", func(t *testing.T) {
		d := testDocumento(t, KindInvoice)
		d.Items[0].Cantidad = decimal.Zero
		d.Totales = RecomputeTotals(d.Items, d.Moneda)
		assertViolation(t, d.Validate(), "gCamItem[1]/dCantProSer")
	})
	t.Run("too many quantity decimals", func(t *testing.T) {
		d := testDocumento(t, KindInvoice)
		d.Items[0].Cantidad = decimal.RequireFromString("1.00001")
		d.Totales = RecomputeTotals(d.Items, d.Moneda)
		assertViolation(t, d.Validate(), "gCamItem[1]/dCantProSer")
	})
	t.Run("invalid rate", func(t *testing.T) {
		d := testDocumento(t, KindInvoice)
		d.Items[0].TasaIVA = 7
		d.Totales = RecomputeTotals(d.Items, d.Moneda)
		assertViolation(t, d.Validate(), "gCamItem[1]/dTasaIVA")
	})
	t.Run("taxed line without rate", func(t *testing.T) {
		d := testDocumento(t, KindInvoice)
		d.Items[0].TasaIVA = 0
		d.Totales = RecomputeTotals(d.Items, d.Moneda)
		assertViolation(t, d.Validate(), "gCamItem[1]/dTasaIVA")
	})
}

func TestValidateTotalsCoherence(t *testing.T) {
	d := testDocumento(t, KindInvoice)
	d.Totales.TotalGeneral = d.Totales.TotalGeneral.Add(decimal.NewFromInt(500))
	assertViolation(t, d.Validate(), "gTotSub/dTotGralOpe")
}

func TestValidateAutoInvoice(t *testing.T) {
	t.Run("receiver must equal issuer", func(t *testing.T) {
		d := testDocumento(t, KindAutoInvoice)
		other, err := ParseRUC("04554737-0")
		require.NoError(t, err)
		d.Receptor.RUC = &other
		assertViolation(t, d.Validate(), "gDatRec/dRucRec")
	})
	t.Run("missing foreign seller", func(t *testing.T) {
		d := testDocumento(t, KindAutoInvoice)
		d.VendedorExterior = nil
		assertViolation(t, d.Validate(), "gCamAE")
	})
	t.Run("incomplete transaction location", func(t *testing.T) {
		d := testDocumento(t, KindAutoInvoice)
		d.VendedorExterior.CiudadTrans = ""
		assertViolation(t, d.Validate(), "gCamAE/dDirProv")
	})
}

func TestValidateNotes(t *testing.T) {
	for _, kind := range []DocumentKind{KindCreditNote, KindDebitNote} {
		t.Run(kind.Description(), func(t *testing.T) {
			d := testDocumento(t, kind)
			d.DocAsociado = nil
			assertViolation(t, d.Validate(), "gDocAso")

			d = testDocumento(t, kind)
			d.DocAsociado.CDC = "123"
			assertViolation(t, d.Validate(), "gDocAso/dCdCDERef")

			// The referenced document may not postdate the note.
			d = testDocumento(t, kind)
			d.DocAsociado.FechaEmision = d.Emision.Add(time.Hour)
			assertViolation(t, d.Validate(), "gDocAso/dFecEmiDI")
		})
	}
}

func TestValidateRemission(t *testing.T) {
	t.Run("prices must be zero", func(t *testing.T) {
		d := testDocumento(t, KindRemissionNote)
		d.Items[0].PrecioUnitario = decimal.NewFromInt(1000)
		assertViolation(t, d.Validate(), "gCamItem[1]/dPUniProSer")
	})
	t.Run("missing transport", func(t *testing.T) {
		d := testDocumento(t, KindRemissionNote)
		d.Transporte = nil
		assertViolation(t, d.Validate(), "gCamTrans")
	})
	t.Run("missing driver", func(t *testing.T) {
		d := testDocumento(t, KindRemissionNote)
		d.Transporte.Vehiculos[0].Conductor = Conductor{}
		assertViolation(t, d.Validate(), "gCamTrans/gVehTras[1]/gCamCond")
	})
	t.Run("nonzero totals", func(t *testing.T) {
		d := testDocumento(t, KindRemissionNote)
		d.Totales.TotalGeneral = decimal.NewFromInt(1)
		assertViolation(t, d.Validate(), "gTotSub")
	})
}
