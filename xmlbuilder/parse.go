package xmlbuilder

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// ParseError reports a defect found while reading a document back from XML.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: %s: %s", e.Path, e.Reason)
}

// ParseModular reads a modular-shape document back into the model.
func ParseModular(doc *etree.Document) (*sifen.Documento, error) {
	root := doc.Root()
	if root == nil || root.Tag != "rDE" {
		return nil, &ParseError{Path: "/", Reason: "root must be rDE"}
	}
	d := &sifen.Documento{CDC: root.SelectAttrValue("Id", "")}

	if err := parseDatGral(root, d); err != nil {
		return nil, err
	}
	if err := parseTimbrado(root, d); err != nil {
		return nil, err
	}
	if err := parseEmisor(root, d); err != nil {
		return nil, err
	}
	parseReceptor(root, d)
	parseDocAsociado(root, d)
	parseAutoFact(root, d)
	if err := parseItems(root, d); err != nil {
		return nil, err
	}
	parseTransporte(root, d)
	if err := parseTotales(root, d); err != nil {
		return nil, err
	}
	parseCamGen(root, d)
	return d, nil
}

// ParseOfficial reads an official-shape document into the model by first
// mapping it to the modular shape.
func ParseOfficial(doc *etree.Document) (*sifen.Documento, error) {
	mod, err := NewMapper().ToModular(doc)
	if err != nil {
		return nil, err
	}
	return ParseModular(mod)
}

func childText(parent *etree.Element, tag string) string {
	if parent == nil {
		return ""
	}
	if e := parent.SelectElement(tag); e != nil {
		return e.Text()
	}
	return ""
}

func childInt(parent *etree.Element, tag string) int {
	n, _ := strconv.Atoi(childText(parent, tag))
	return n
}

func childDecimal(parent *etree.Element, tag, path string) (decimal.Decimal, error) {
	s := childText(parent, tag)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Path: path + "/" + tag, Reason: fmt.Sprintf("not a decimal: %q", s)}
	}
	return v, nil
}

func parseDatGral(root *etree.Element, d *sifen.Documento) error {
	g := root.SelectElement("gDatGral")
	if g == nil {
		return &ParseError{Path: "gDatGral", Reason: "group is required"}
	}
	d.Kind = sifen.DocumentKind(childInt(g, "iTipDE"))
	d.TipoEmision = sifen.EmissionType(childInt(g, "iTipEmi"))
	d.Numero = childText(g, "dNumDoc")
	d.Moneda = childText(g, "cMoneOpe")
	d.CodigoSeguridad = childText(g, "dCodSeg")
	if s := childText(g, "dFeEmiDE"); s != "" {
		t, err := sifen.ParseDateTime(s)
		if err != nil {
			return &ParseError{Path: "gDatGral/dFeEmiDE", Reason: err.Error()}
		}
		d.Emision = t
	}
	tc, err := childDecimal(g, "dTiCam", "gDatGral")
	if err != nil {
		return err
	}
	d.TipoCambio = tc
	return nil
}

func parseTimbrado(root *etree.Element, d *sifen.Documento) error {
	g := root.SelectElement("gTimbrado")
	if g == nil {
		return &ParseError{Path: "gTimbrado", Reason: "group is required"}
	}
	d.Timbrado = sifen.Timbrado{
		Numero:          childText(g, "dNumTim"),
		Establecimiento: childText(g, "dEst"),
		PuntoExpedicion: childText(g, "dPunExp"),
	}
	if s := childText(g, "dFeIniT"); s != "" {
		t, err := sifen.ParseDate(s)
		if err != nil {
			return &ParseError{Path: "gTimbrado/dFeIniT", Reason: err.Error()}
		}
		d.Timbrado.FechaInicio = t
	}
	if s := childText(g, "dFeFinT"); s != "" {
		t, err := sifen.ParseDate(s)
		if err != nil {
			return &ParseError{Path: "gTimbrado/dFeFinT", Reason: err.Error()}
		}
		d.Timbrado.FechaFin = t
	}
	return nil
}

func parseEmisor(root *etree.Element, d *sifen.Documento) error {
	g := root.SelectElement("gDatEmi")
	if g == nil {
		return &ParseError{Path: "gDatEmi", Reason: "group is required"}
	}
	d.Emisor = sifen.Emisor{
		RUC:               sifen.RUC{Base: childText(g, "dRucEm"), DV: childInt(g, "dDVEmi")},
		TipoContribuyente: sifen.TaxpayerType(childInt(g, "iTipCont")),
		RazonSocial:       childText(g, "dNomEmi"),
		NombreFantasia:    childText(g, "dNomFanEmi"),
		Direccion:         childText(g, "dDirEmi"),
		Departamento:      childInt(g, "cDepEmi"),
		Ciudad:            childText(g, "dCiuEmi"),
		Telefono:          childText(g, "dTelEmi"),
		Email:             childText(g, "dEmailE"),
	}
	return nil
}

func parseReceptor(root *etree.Element, d *sifen.Documento) {
	g := root.SelectElement("gDatRec")
	if g == nil {
		return
	}
	d.Receptor = sifen.Receptor{
		Naturaleza:      sifen.ReceiverNature(childInt(g, "iNatRec")),
		TipoDocumento:   sifen.IdentityDocumentType(childInt(g, "iTipIDRec")),
		NumeroDocumento: childText(g, "dNumIDRec"),
		RazonSocial:     childText(g, "dNomRec"),
		Direccion:       childText(g, "dDirRec"),
		Email:           childText(g, "dEmailRec"),
		Pais:            childText(g, "cPaisRec"),
	}
	if base := childText(g, "dRucRec"); base != "" {
		ruc := sifen.RUC{Base: base, DV: childInt(g, "dDVRec")}
		d.Receptor.RUC = &ruc
	}
}

func parseDocAsociado(root *etree.Element, d *sifen.Documento) {
	g := root.SelectElement("gDocAso")
	if g == nil {
		return
	}
	a := &sifen.DocumentoAsociado{
		CDC:             childText(g, "dCdCDERef"),
		Kind:            sifen.DocumentKind(childInt(g, "iTipDocAso")),
		Timbrado:        childText(g, "dNumTimDI"),
		Establecimiento: childText(g, "dEstDocAso"),
		PuntoExpedicion: childText(g, "dPExpDocAso"),
		Numero:          childText(g, "dNumDocAso"),
	}
	if s := childText(g, "dFecEmiDI"); s != "" {
		if t, err := sifen.ParseDate(s); err == nil {
			a.FechaEmision = t
		}
	}
	d.DocAsociado = a
}

func parseAutoFact(root *etree.Element, d *sifen.Documento) {
	g := root.SelectElement("gAutoFact")
	if g == nil {
		return
	}
	d.VendedorExterior = &sifen.VendedorExterior{
		Naturaleza:        childInt(g, "iNatVen"),
		TipoDocumento:     sifen.IdentityDocumentType(childInt(g, "iTipIDVen")),
		NumeroDocumento:   childText(g, "dNumIDVen"),
		Nombre:            childText(g, "dNomVen"),
		Direccion:         childText(g, "dDirVen"),
		DepartamentoVen:   childInt(g, "cDepVen"),
		CiudadVen:         childText(g, "dCiuVen"),
		DireccionTrans:    childText(g, "dDirProv"),
		DepartamentoTrans: childInt(g, "cDepProv"),
		CiudadTrans:       childText(g, "dCiuProv"),
	}
}

func parseItems(root *etree.Element, d *sifen.Documento) error {
	wrapper := root.SelectElement("gItems")
	if wrapper == nil {
		return nil
	}
	for i, g := range wrapper.SelectElements("gItem") {
		path := fmt.Sprintf("gItems/gItem[%d]", i+1)
		qty, err := childDecimal(g, "dCantProSer", path)
		if err != nil {
			return err
		}
		price, err := childDecimal(g, "dPUniProSer", path)
		if err != nil {
			return err
		}
		d.Items = append(d.Items, sifen.Item{
			Codigo:         childText(g, "dCodInt"),
			Descripcion:    childText(g, "dDesProSer"),
			UnidadMedida:   childText(g, "cUniMed"),
			Cantidad:       qty,
			PrecioUnitario: price,
			Afectacion:     sifen.IVAAffectation(childInt(g, "iAfecIVA")),
			TasaIVA:        childInt(g, "dTasaIVA"),
			ProporcionIVA:  childInt(g, "dPropIVA"),
			Lote:           childText(g, "dNumLote"),
			Serie:          childText(g, "dNumSerie"),
			NCM:            childText(g, "dNCM"),
			PaisOrigen:     childText(g, "cPaisOrig"),
		})
	}
	return nil
}

func parseTransporte(root *etree.Element, d *sifen.Documento) {
	g := root.SelectElement("gTransporte")
	if g == nil {
		return
	}
	t := &sifen.Transporte{
		Modalidad:        sifen.TransportMode(childInt(g, "iModTrans")),
		Responsable:      sifen.FreightResponsible(childInt(g, "iRespFlete")),
		DireccionSalida:  childText(g, "dDirSal"),
		DireccionLlegada: childText(g, "dDirEnt"),
	}
	if s := childText(g, "dFeIniTras"); s != "" {
		if ts, err := sifen.ParseDate(s); err == nil {
			t.FechaInicio = ts
		}
	}
	if s := childText(g, "dFeFinTras"); s != "" {
		if ts, err := sifen.ParseDate(s); err == nil {
			t.FechaFin = ts
		}
	}
	for _, v := range g.SelectElements("gVehiculo") {
		veh := sifen.Vehiculo{
			Tipo:     childText(v, "dTipVeh"),
			Marca:    childText(v, "dMarVeh"),
			NumeroID: childText(v, "dNroIDVeh"),
		}
		if c := v.SelectElement("gConductor"); c != nil {
			veh.Conductor = sifen.Conductor{
				Nombre:          childText(c, "dNomCond"),
				NumeroDocumento: childText(c, "dNumIDCond"),
				Direccion:       childText(c, "dDirCond"),
			}
		}
		t.Vehiculos = append(t.Vehiculos, veh)
	}
	d.Transporte = t
}

func parseTotales(root *etree.Element, d *sifen.Documento) error {
	g := root.SelectElement("gTotales")
	if g == nil {
		return &ParseError{Path: "gTotales", Reason: "group is required"}
	}
	fields := []struct {
		tag string
		dst *decimal.Decimal
	}{
		{"dSubExe", &d.Totales.SubtotalExento},
		{"dSub5", &d.Totales.Subtotal5},
		{"dSub10", &d.Totales.Subtotal10},
		{"dIVA5", &d.Totales.IVA5},
		{"dIVA10", &d.Totales.IVA10},
		{"dTotIVA", &d.Totales.TotalIVA},
		{"dTotOpe", &d.Totales.TotalOperacion},
		{"dTotGralOpe", &d.Totales.TotalGeneral},
	}
	for _, f := range fields {
		v, err := childDecimal(g, f.tag, "gTotales")
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func parseCamGen(root *etree.Element, d *sifen.Documento) {
	g := root.SelectElement("gCamGen")
	if g == nil {
		return
	}
	c := &sifen.CondicionPago{Condicion: sifen.PaymentCondition(childInt(g, "iCondOpe"))}
	for _, q := range g.SelectElements("gCuotas") {
		cuota := sifen.CuotaPago{Moneda: childText(q, "cMoneCuo")}
		if v, err := decimal.NewFromString(childText(q, "dMonCuota")); err == nil {
			cuota.Monto = v
		}
		if s := childText(q, "dVencCuo"); s != "" {
			if t, err := sifen.ParseDate(s); err == nil {
				cuota.Vencimiento = t
			}
		}
		c.Cuotas = append(c.Cuotas, cuota)
	}
	d.CondicionPago = c
}
