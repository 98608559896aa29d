package xmlbuilder

import (
	"fmt"
	"io"
	"sort"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// ValidationMode selects which side of the hybrid report gates submission.
type ValidationMode int

const (
	// ModeDevelopment blocks on modular violations only; official
	// divergences are logged.
	ModeDevelopment ValidationMode = iota
	// ModeProduction blocks on official compliance.
	ModeProduction
)

// HybridReport is the difference between the modular and official
// validation results, as sorted violation paths.
type HybridReport struct {
	OnlyModular  []string
	OnlyOfficial []string
	Common       []string
}

// Clean reports whether neither side found a violation.
func (r HybridReport) Clean() bool {
	return len(r.OnlyModular) == 0 && len(r.OnlyOfficial) == 0 && len(r.Common) == 0
}

// HybridValidator runs modular business validation and official
// structural validation and reports where they diverge.
type HybridValidator struct {
	Mode   ValidationMode
	Logger *logrus.Logger

	mapper *Mapper
}

// NewHybridValidator creates a validator. A nil logger is replaced with
// a silent one.
func NewHybridValidator(mode ValidationMode, logger *logrus.Logger) *HybridValidator {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &HybridValidator{Mode: mode, Logger: logger, mapper: NewMapper()}
}

// Validate runs both sides over the document and returns the difference
// report. The error is reserved for assembly or mapping failures, not
// for validation findings.
func (h *HybridValidator) Validate(d *sifen.Documento) (HybridReport, error) {
	modular := map[string]bool{}
	for _, v := range d.Validate() {
		modular[v.Path] = true
	}

	official := map[string]bool{}
	if d.CDC == "" {
		official["DE/@Id"] = true
	} else {
		mod, err := BuildModular(d)
		if err != nil {
			return HybridReport{}, err
		}
		off, err := h.mapper.ToOfficial(mod)
		if err != nil {
			return HybridReport{}, err
		}
		for _, v := range ValidateOfficial(off) {
			official[v.Path] = true
		}
	}

	report := diffReport(modular, official)
	if h.Mode == ModeDevelopment && (len(report.OnlyModular) > 0 || len(report.OnlyOfficial) > 0) {
		h.Logger.WithFields(logrus.Fields{
			"only_modular":  report.OnlyModular,
			"only_official": report.OnlyOfficial,
		}).Warn("modular and official validation diverge")
	}
	return report, nil
}

// Blocks reports whether the report stops the document from being
// submitted under the validator's mode.
func (h *HybridValidator) Blocks(r HybridReport) bool {
	if h.Mode == ModeProduction {
		return len(r.OnlyOfficial) > 0 || len(r.Common) > 0
	}
	return len(r.OnlyModular) > 0 || len(r.Common) > 0
}

func diffReport(modular, official map[string]bool) HybridReport {
	var r HybridReport
	for p := range modular {
		if official[p] {
			r.Common = append(r.Common, p)
		} else {
			r.OnlyModular = append(r.OnlyModular, p)
		}
	}
	for p := range official {
		if !modular[p] {
			r.OnlyOfficial = append(r.OnlyOfficial, p)
		}
	}
	sort.Strings(r.OnlyModular)
	sort.Strings(r.OnlyOfficial)
	sort.Strings(r.Common)
	return r
}

// requiredOfficial are the groups every official document must carry.
var requiredOfficial = []string{"gOpeDE", "gTimb", "gDatGralOpe", "gDtipDE", "gEmis", "gDatRec", "gTotSub"}

// ValidateOfficial checks an official-shape document against the
// structural rules of the v150 schema: root attributes, the DE identity,
// required groups, positional element order and the kind sub-record.
func ValidateOfficial(doc *etree.Document) []sifen.Violation {
	var vs []sifen.Violation
	root := doc.Root()
	if root == nil || root.Tag != "rDE" {
		return append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "rDE", Message: "root must be rDE"})
	}
	if ns := root.SelectAttrValue("xmlns", ""); ns != sifen.SifenNamespace {
		vs = append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "rDE/@xmlns",
			Message: fmt.Sprintf("namespace must be %s", sifen.SifenNamespace)})
	}
	if v := root.SelectAttrValue("version", ""); v != sifen.LayoutVersion {
		vs = append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "rDE/@version",
			Message: fmt.Sprintf("version must be %s, got %q", sifen.LayoutVersion, v)})
	}

	de := root.SelectElement("DE")
	if de == nil {
		return append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "rDE/DE", Message: "DE element is required"})
	}
	id := de.SelectAttrValue("Id", "")
	if err := sifen.ValidateCDC(id); err != nil {
		vs = append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "DE/@Id",
			Message: fmt.Sprintf("Id must be a valid cdc: %v", err)})
	}

	for _, name := range requiredOfficial {
		if de.SelectElement(name) == nil {
			vs = append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "DE/" + name, Message: "group is required"})
		}
	}
	if len(de.SelectElements("gCamItem")) == 0 {
		vs = append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "DE/gCamItem", Message: "at least one item group is required"})
	}

	vs = append(vs, checkOfficialOrder(de)...)
	vs = append(vs, checkKindWrapper(de)...)
	return vs
}

// checkOfficialOrder verifies DE children appear in schema sequence.
func checkOfficialOrder(de *etree.Element) []sifen.Violation {
	rank := make(map[string]int, len(officialOrder))
	for i, name := range officialOrder {
		rank[name] = i
	}
	var vs []sifen.Violation
	prev := -1
	for _, c := range de.ChildElements() {
		r, known := rank[c.Tag]
		if !known {
			continue
		}
		if r < prev {
			vs = append(vs, sifen.Violation{Kind: sifen.ViolationStructure, Path: "DE/" + c.Tag,
				Message: "element out of schema sequence"})
		}
		if r > prev {
			prev = r
		}
	}
	return vs
}

// checkKindWrapper verifies gDtipDE holds exactly the sub-record matching
// iTipDE.
func checkKindWrapper(de *etree.Element) []sifen.Violation {
	g := de.SelectElement("gDtipDE")
	if g == nil {
		return nil // absence already reported
	}
	kind := ""
	if ope := de.SelectElement("gOpeDE"); ope != nil {
		kind = childText(ope, "iTipDE")
	}
	want, ok := kindWrappers[kind]
	if !ok {
		return []sifen.Violation{{Kind: sifen.ViolationStructure, Path: "DE/gOpeDE/iTipDE",
			Message: fmt.Sprintf("unknown document kind %q", kind)}}
	}
	children := g.ChildElements()
	if len(children) != 1 || children[0].Tag != want {
		return []sifen.Violation{{Kind: sifen.ViolationStructure, Path: "DE/gDtipDE",
			Message: fmt.Sprintf("must hold exactly one %s sub-record", want)}}
	}
	return nil
}
