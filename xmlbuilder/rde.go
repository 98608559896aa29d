// Package xmlbuilder renders documents into XML against the SET v150
// schema and transforms between the modular shape used for construction
// and the official shape required on the wire.
package xmlbuilder

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// BuildModular renders the document into the modular XML shape: flat
// groups under rDE, ordered per the v150 schema. The document must carry
// a CDC; optional elements are omitted entirely rather than emitted empty.
func BuildModular(d *sifen.Documento) (*etree.Document, error) {
	if d.CDC == "" {
		return nil, fmt.Errorf("xmlbuilder: document has no cdc; generate it before assembly")
	}
	if err := sifen.ValidateCDC(d.CDC); err != nil {
		return nil, fmt.Errorf("xmlbuilder: %w", err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	rde := doc.CreateElement("rDE")
	rde.CreateAttr("xmlns", sifen.SifenNamespace)
	rde.CreateAttr("version", sifen.LayoutVersion)
	rde.CreateAttr("Id", d.CDC)

	buildDatGral(rde, d)
	buildTimbrado(rde, d)
	buildEmisor(rde, d)
	buildReceptor(rde, d)
	if d.DocAsociado != nil {
		buildDocAsociado(rde, d.DocAsociado)
	}
	if d.VendedorExterior != nil {
		buildAutoFact(rde, d.VendedorExterior)
	}
	buildItems(rde, d)
	if d.Transporte != nil {
		buildTransporte(rde, d.Transporte)
	}
	buildTotales(rde, d)
	if d.CondicionPago != nil {
		buildCamGen(rde, d)
	}
	return doc, nil
}

// Serialize renders the document as UTF-8 bytes without a BOM.
func Serialize(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xmlbuilder: serialize: %w", err)
	}
	return out, nil
}

func addText(parent *etree.Element, tag, text string) *etree.Element {
	e := parent.CreateElement(tag)
	e.SetText(text)
	return e
}

func addOpt(parent *etree.Element, tag, text string) {
	if text != "" {
		addText(parent, tag, text)
	}
}

func buildDatGral(rde *etree.Element, d *sifen.Documento) {
	g := rde.CreateElement("gDatGral")
	addText(g, "iTipDE", strconv.Itoa(int(d.Kind)))
	addText(g, "dDesTipDE", d.Kind.Description())
	addText(g, "dFeEmiDE", sifen.FormatDateTime(d.Emision))
	addText(g, "iTipEmi", d.TipoEmision.String())
	addText(g, "dNumDoc", d.Numero)
	addText(g, "cMoneOpe", d.Moneda)
	if d.Moneda != "PYG" && !d.TipoCambio.IsZero() {
		addText(g, "dTiCam", d.TipoCambio.String())
	}
	addText(g, "dCodSeg", d.CodigoSeguridad)
}

func buildTimbrado(rde *etree.Element, d *sifen.Documento) {
	g := rde.CreateElement("gTimbrado")
	addText(g, "dNumTim", d.Timbrado.Numero)
	addText(g, "dEst", d.Timbrado.Establecimiento)
	addText(g, "dPunExp", d.Timbrado.PuntoExpedicion)
	addText(g, "dFeIniT", sifen.FormatDate(d.Timbrado.FechaInicio))
	if !d.Timbrado.FechaFin.IsZero() {
		addText(g, "dFeFinT", sifen.FormatDate(d.Timbrado.FechaFin))
	}
}

func buildEmisor(rde *etree.Element, d *sifen.Documento) {
	g := rde.CreateElement("gDatEmi")
	addText(g, "dRucEm", d.Emisor.RUC.Base)
	addText(g, "dDVEmi", strconv.Itoa(d.Emisor.RUC.DV))
	if d.Emisor.TipoContribuyente != 0 {
		addText(g, "iTipCont", strconv.Itoa(int(d.Emisor.TipoContribuyente)))
	}
	addText(g, "dNomEmi", d.Emisor.RazonSocial)
	addOpt(g, "dNomFanEmi", d.Emisor.NombreFantasia)
	addOpt(g, "dDirEmi", d.Emisor.Direccion)
	if d.Emisor.Departamento != 0 {
		addText(g, "cDepEmi", strconv.Itoa(d.Emisor.Departamento))
		addOpt(g, "dDesDepEmi", sifen.DepartmentDescriptions[d.Emisor.Departamento])
	}
	addOpt(g, "dCiuEmi", d.Emisor.Ciudad)
	addOpt(g, "dTelEmi", d.Emisor.Telefono)
	addOpt(g, "dEmailE", d.Emisor.Email)
}

func buildReceptor(rde *etree.Element, d *sifen.Documento) {
	g := rde.CreateElement("gDatRec")
	r := d.Receptor
	addText(g, "iNatRec", strconv.Itoa(int(r.Naturaleza)))
	if r.Naturaleza == sifen.ReceiverTaxpayer && r.RUC != nil {
		addText(g, "dRucRec", r.RUC.Base)
		addText(g, "dDVRec", strconv.Itoa(r.RUC.DV))
	}
	if r.Naturaleza == sifen.ReceiverNonTaxpayer && r.TipoDocumento != 0 {
		addText(g, "iTipIDRec", strconv.Itoa(int(r.TipoDocumento)))
		addOpt(g, "dNumIDRec", r.NumeroDocumento)
	}
	addOpt(g, "dNomRec", r.RazonSocial)
	addOpt(g, "dDirRec", r.Direccion)
	addOpt(g, "dEmailRec", r.Email)
	pais := r.Pais
	if pais == "" {
		pais = "PRY"
	}
	addText(g, "cPaisRec", pais)
}

func buildDocAsociado(rde *etree.Element, a *sifen.DocumentoAsociado) {
	g := rde.CreateElement("gDocAso")
	addText(g, "dCdCDERef", a.CDC)
	if a.Kind != 0 {
		addText(g, "iTipDocAso", strconv.Itoa(int(a.Kind)))
	}
	addOpt(g, "dNumTimDI", a.Timbrado)
	addOpt(g, "dEstDocAso", a.Establecimiento)
	addOpt(g, "dPExpDocAso", a.PuntoExpedicion)
	addOpt(g, "dNumDocAso", a.Numero)
	if !a.FechaEmision.IsZero() {
		addText(g, "dFecEmiDI", sifen.FormatDate(a.FechaEmision))
	}
}

func buildAutoFact(rde *etree.Element, v *sifen.VendedorExterior) {
	g := rde.CreateElement("gAutoFact")
	addText(g, "iNatVen", strconv.Itoa(v.Naturaleza))
	addText(g, "iTipIDVen", strconv.Itoa(int(v.TipoDocumento)))
	addText(g, "dNumIDVen", v.NumeroDocumento)
	addText(g, "dNomVen", v.Nombre)
	addText(g, "dDirVen", v.Direccion)
	if v.DepartamentoVen != 0 {
		addText(g, "cDepVen", strconv.Itoa(v.DepartamentoVen))
	}
	addOpt(g, "dCiuVen", v.CiudadVen)
	addText(g, "dDirProv", v.DireccionTrans)
	if v.DepartamentoTrans != 0 {
		addText(g, "cDepProv", strconv.Itoa(v.DepartamentoTrans))
	}
	addOpt(g, "dCiuProv", v.CiudadTrans)
}

func buildItems(rde *etree.Element, d *sifen.Documento) {
	items := rde.CreateElement("gItems")
	for _, it := range d.Items {
		g := items.CreateElement("gItem")
		addText(g, "dCodInt", it.Codigo)
		addText(g, "dDesProSer", it.Descripcion)
		addOpt(g, "cUniMed", it.UnidadMedida)
		addText(g, "dCantProSer", sifen.FormatQuantity(it.Cantidad))
		addText(g, "dPUniProSer", sifen.FormatAmount(it.PrecioUnitario, d.Moneda))
		addText(g, "dTotOpeItem", sifen.FormatAmount(it.TotalLinea(d.Moneda), d.Moneda))
		addText(g, "iAfecIVA", it.Afectacion.String())
		addText(g, "dDesAfecIVA", it.Afectacion.Description())
		if it.Afectacion == sifen.IVATaxed || it.Afectacion == sifen.IVAMixed {
			prop := it.ProporcionIVA
			if prop <= 0 || prop > 100 {
				prop = 100
			}
			addText(g, "dPropIVA", strconv.Itoa(prop))
			addText(g, "dTasaIVA", strconv.Itoa(it.TasaIVA))
			addText(g, "dBasGravIVA", sifen.FormatAmount(it.BaseGravada(d.Moneda), d.Moneda))
			addText(g, "dLiqIVAItem", sifen.FormatAmount(it.MontoIVA(d.Moneda), d.Moneda))
		}
		addOpt(g, "dNumLote", it.Lote)
		addOpt(g, "dNumSerie", it.Serie)
		addOpt(g, "dNCM", it.NCM)
		addOpt(g, "cPaisOrig", it.PaisOrigen)
	}
}

func buildTransporte(rde *etree.Element, t *sifen.Transporte) {
	g := rde.CreateElement("gTransporte")
	addText(g, "iModTrans", t.Modalidad.String())
	addText(g, "iRespFlete", strconv.Itoa(int(t.Responsable)))
	addText(g, "dDirSal", t.DireccionSalida)
	addText(g, "dDirEnt", t.DireccionLlegada)
	if !t.FechaInicio.IsZero() {
		addText(g, "dFeIniTras", sifen.FormatDate(t.FechaInicio))
	}
	if !t.FechaFin.IsZero() {
		addText(g, "dFeFinTras", sifen.FormatDate(t.FechaFin))
	}
	for _, v := range t.Vehiculos {
		veh := g.CreateElement("gVehiculo")
		addOpt(veh, "dTipVeh", v.Tipo)
		addOpt(veh, "dMarVeh", v.Marca)
		addText(veh, "dNroIDVeh", v.NumeroID)
		cond := veh.CreateElement("gConductor")
		addText(cond, "dNomCond", v.Conductor.Nombre)
		addText(cond, "dNumIDCond", v.Conductor.NumeroDocumento)
		addOpt(cond, "dDirCond", v.Conductor.Direccion)
	}
}

func buildTotales(rde *etree.Element, d *sifen.Documento) {
	g := rde.CreateElement("gTotales")
	t := d.Totales
	addText(g, "dSubExe", sifen.FormatAmount(t.SubtotalExento, d.Moneda))
	addText(g, "dSub5", sifen.FormatAmount(t.Subtotal5, d.Moneda))
	addText(g, "dSub10", sifen.FormatAmount(t.Subtotal10, d.Moneda))
	addText(g, "dIVA5", sifen.FormatAmount(t.IVA5, d.Moneda))
	addText(g, "dIVA10", sifen.FormatAmount(t.IVA10, d.Moneda))
	addText(g, "dTotIVA", sifen.FormatAmount(t.TotalIVA, d.Moneda))
	addText(g, "dTotOpe", sifen.FormatAmount(t.TotalOperacion, d.Moneda))
	addText(g, "dTotGralOpe", sifen.FormatAmount(t.TotalGeneral, d.Moneda))
}

func buildCamGen(rde *etree.Element, d *sifen.Documento) {
	g := rde.CreateElement("gCamGen")
	c := d.CondicionPago
	addText(g, "iCondOpe", strconv.Itoa(int(c.Condicion)))
	for _, q := range c.Cuotas {
		cu := g.CreateElement("gCuotas")
		addText(cu, "cMoneCuo", q.Moneda)
		addText(cu, "dMonCuota", sifen.FormatAmount(q.Monto, q.Moneda))
		if !q.Vencimiento.IsZero() {
			addText(cu, "dVencCuo", sifen.FormatDate(q.Vencimiento))
		}
	}
}
