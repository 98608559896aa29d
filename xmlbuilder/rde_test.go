package xmlbuilder

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// testDocumento returns a valid, CDC-bearing document of the given kind.
func testDocumento(t *testing.T, kind sifen.DocumentKind) *sifen.Documento {
	t.Helper()
	receiver, err := sifen.ParseRUC("04554737-0")
	require.NoError(t, err)

	d := sifen.Documento{
		Kind:        kind,
		Emision:     time.Date(2026, 1, 15, 10, 30, 0, 0, sifen.AsuncionLocation),
		TipoEmision: sifen.EmissionNormal,
		Numero:      "001-002-0000123",
		Timbrado: sifen.Timbrado{
			Numero:          "12345678",
			Establecimiento: "001",
			PuntoExpedicion: "002",
			FechaInicio:     time.Date(2025, 1, 1, 0, 0, 0, 0, sifen.AsuncionLocation),
		},
		Emisor: sifen.Emisor{
			RUC:         sifen.RUC{Base: "80012345", DV: 3},
			RazonSocial: "Comercial Asunción S.A.",
			Direccion:   "Avda. Mariscal López 1234",
		},
		Receptor: sifen.Receptor{
			Naturaleza:  sifen.ReceiverTaxpayer,
			RUC:         &receiver,
			RazonSocial: "Cliente S.R.L.",
			Pais:        "PRY",
		},
		Items: []sifen.Item{{
			Codigo:         "A1",
			Descripcion:    "Producto gravado",
			Cantidad:       decimal.NewFromInt(1),
			PrecioUnitario: decimal.NewFromInt(110000),
			Afectacion:     sifen.IVATaxed,
			TasaIVA:        10,
			ProporcionIVA:  100,
		}},
		Moneda:          "PYG",
		CodigoSeguridad: "123456789",
	}

	switch kind {
	case sifen.KindAutoInvoice:
		issuer := d.Emisor.RUC
		d.Receptor.RUC = &issuer
		d.VendedorExterior = &sifen.VendedorExterior{
			Naturaleza:      2,
			TipoDocumento:   sifen.IdentityTaxIDOther,
			NumeroDocumento: "BR-99887766",
			Nombre:          "Exportadora do Sul Ltda.",
			Direccion:       "Rua das Flores 100",
			DireccionTrans:  "Ruta 7 km 30",
			CiudadTrans:     "Ciudad del Este",
		}
	case sifen.KindCreditNote, sifen.KindDebitNote:
		ref, err := sifen.GenerateCDC(sifen.CDCRequest{
			IssuerRUC:       d.Emisor.RUC,
			Kind:            sifen.KindInvoice,
			Establishment:   "001",
			ExpeditionPoint: "002",
			Number:          "99",
			IssueDate:       time.Date(2026, 1, 10, 0, 0, 0, 0, sifen.AsuncionLocation),
			Emission:        sifen.EmissionNormal,
			SecurityCode:    "987654321",
		})
		require.NoError(t, err)
		d.DocAsociado = &sifen.DocumentoAsociado{
			CDC:          ref,
			Kind:         sifen.KindInvoice,
			FechaEmision: time.Date(2026, 1, 10, 0, 0, 0, 0, sifen.AsuncionLocation),
		}
	case sifen.KindRemissionNote:
		for i := range d.Items {
			d.Items[i].PrecioUnitario = decimal.Zero
		}
		d.Transporte = &sifen.Transporte{
			Modalidad:        sifen.TransportLand,
			Responsable:      sifen.FreightIssuer,
			DireccionSalida:  "Depósito central",
			DireccionLlegada: "Sucursal Encarnación",
			Vehiculos: []sifen.Vehiculo{{
				Tipo:     "camión",
				NumeroID: "ABC123",
				Conductor: sifen.Conductor{
					Nombre:          "Juan Benítez",
					NumeroDocumento: "1234567",
				},
			}},
		}
	}

	d.Totales = sifen.RecomputeTotals(d.Items, d.Moneda)
	out, err := d.GenerateCDC()
	require.NoError(t, err)
	return &out
}

func TestBuildModularShape(t *testing.T) {
	d := testDocumento(t, sifen.KindInvoice)
	doc, err := BuildModular(d)
	require.NoError(t, err)

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "rDE", root.Tag)
	assert.Equal(t, sifen.SifenNamespace, root.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "150", root.SelectAttrValue("version", ""))
	assert.Equal(t, d.CDC, root.SelectAttrValue("Id", ""))

	var tags []string
	for _, c := range root.ChildElements() {
		tags = append(tags, c.Tag)
	}
	assert.Equal(t, []string{"gDatGral", "gTimbrado", "gDatEmi", "gDatRec", "gItems", "gTotales"}, tags)

	g := root.SelectElement("gDatGral")
	require.NotNil(t, g)
	assert.Equal(t, "1", g.SelectElement("iTipDE").Text())
	assert.Equal(t, "2026-01-15T10:30:00", g.SelectElement("dFeEmiDE").Text())
	assert.Equal(t, "PYG", g.SelectElement("cMoneOpe").Text())
	assert.Nil(t, g.SelectElement("dTiCam"), "PYG documents carry no exchange rate element")

	items := root.SelectElement("gItems")
	require.NotNil(t, items)
	item := items.SelectElement("gItem")
	require.NotNil(t, item)
	assert.Equal(t, "1.0000", item.SelectElement("dCantProSer").Text())
	assert.Equal(t, "110000", item.SelectElement("dTotOpeItem").Text())
	assert.Equal(t, "100000", item.SelectElement("dBasGravIVA").Text())
	assert.Equal(t, "10000", item.SelectElement("dLiqIVAItem").Text())
	assert.Nil(t, item.SelectElement("dNumLote"), "absent optionals are omitted")
}

func TestBuildModularOptionalGroups(t *testing.T) {
	fe := testDocumento(t, sifen.KindInvoice)
	doc, err := BuildModular(fe)
	require.NoError(t, err)
	assert.Nil(t, doc.Root().SelectElement("gDocAso"))
	assert.Nil(t, doc.Root().SelectElement("gTransporte"))
	assert.Nil(t, doc.Root().SelectElement("gAutoFact"))

	nce := testDocumento(t, sifen.KindCreditNote)
	doc, err = BuildModular(nce)
	require.NoError(t, err)
	aso := doc.Root().SelectElement("gDocAso")
	require.NotNil(t, aso)
	assert.Equal(t, nce.DocAsociado.CDC, aso.SelectElement("dCdCDERef").Text())

	nre := testDocumento(t, sifen.KindRemissionNote)
	doc, err = BuildModular(nre)
	require.NoError(t, err)
	trans := doc.Root().SelectElement("gTransporte")
	require.NotNil(t, trans)
	require.NotNil(t, trans.SelectElement("gVehiculo"))
	assert.Equal(t, "0", doc.Root().SelectElement("gTotales").SelectElement("dTotGralOpe").Text())
}

func TestBuildModularRequiresCDC(t *testing.T) {
	d := testDocumento(t, sifen.KindInvoice)
	d.CDC = ""
	_, err := BuildModular(d)
	assert.Error(t, err)
}

func TestSerializeNoBOM(t *testing.T) {
	d := testDocumento(t, sifen.KindInvoice)
	doc, err := BuildModular(d)
	require.NoError(t, err)
	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.True(t, bytes.HasPrefix(out, []byte("<?xml")))
	assert.Contains(t, string(out), `encoding="UTF-8"`)
}
