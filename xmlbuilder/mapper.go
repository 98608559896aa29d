package xmlbuilder

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// MapError reports a transform failure at a specific element path.
type MapError struct {
	Path   string
	Reason string
}

func (e *MapError) Error() string {
	return fmt.Sprintf("mapper: %s: %s", e.Path, e.Reason)
}

// Mapper transforms documents between the modular and official shapes
// by applying the declarative rule table. In strict mode elements not
// covered by any rule fail the transform; otherwise they pass through
// unchanged.
type Mapper struct {
	Strict bool
}

// NewMapper returns a pass-through (non-strict) mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ToOfficial transforms a modular document into the official wire shape:
// rDE[@xmlns,@version] → DE[@Id=CDC] → ordered official groups. The
// input document is not modified.
func (m *Mapper) ToOfficial(mod *etree.Document) (*etree.Document, error) {
	src := mod.Copy().Root()
	if src == nil || src.Tag != "rDE" {
		return nil, &MapError{Path: "/", Reason: "modular root must be rDE"}
	}
	cdc := src.SelectAttrValue("Id", "")
	if cdc == "" {
		return nil, &MapError{Path: "rDE/@Id", Reason: "cdc attribute is required"}
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	rde := out.CreateElement("rDE")
	rde.CreateAttr("xmlns", sifen.SifenNamespace)
	rde.CreateAttr("version", sifen.LayoutVersion)
	de := rde.CreateElement("DE")
	de.CreateAttr("Id", cdc)

	for _, rule := range mappingRules {
		group := src.SelectElement(rule.Source)
		if group == nil {
			continue
		}
		switch rule.Kind {
		case RuleIdentity, RuleRename, RuleRewrap:
			src.RemoveChild(group)
			attachAt(de, rule.Target, group)
		case RuleSplit:
			if rule.Child != "" {
				for _, item := range group.SelectElements(rule.Child) {
					group.RemoveChild(item)
					item.Tag = rule.Target
					de.AddChild(item)
				}
				src.RemoveChild(group)
				continue
			}
			for _, part := range rule.Parts {
				target := de.CreateElement(part.Target)
				for _, name := range part.Children {
					for _, child := range group.SelectElements(name) {
						group.RemoveChild(child)
						target.AddChild(child)
					}
				}
			}
			// Fields no part claimed stay with the first part's target.
			if rest := group.ChildElements(); len(rest) > 0 {
				target := de.SelectElement(rule.Parts[0].Target)
				for _, child := range rest {
					group.RemoveChild(child)
					target.AddChild(child)
				}
			}
			src.RemoveChild(group)
		}
	}

	for _, leftover := range src.ChildElements() {
		if m.Strict {
			return nil, &MapError{Path: "rDE/" + leftover.Tag, Reason: "element not covered by the mapping rules"}
		}
		src.RemoveChild(leftover)
		de.AddChild(leftover)
	}

	ensureKindWrapper(de)
	reorder(de, officialOrder)
	return out, nil
}

// ToModular transforms an official document back into the modular shape.
// The round trip through ToOfficial is idempotent after canonicalization.
func (m *Mapper) ToModular(off *etree.Document) (*etree.Document, error) {
	root := off.Copy().Root()
	if root == nil || root.Tag != "rDE" {
		return nil, &MapError{Path: "/", Reason: "official root must be rDE"}
	}
	de := root.SelectElement("DE")
	if de == nil {
		return nil, &MapError{Path: "rDE/DE", Reason: "official shape requires the DE element"}
	}
	cdc := de.SelectAttrValue("Id", "")
	if cdc == "" {
		return nil, &MapError{Path: "DE/@Id", Reason: "cdc attribute is required"}
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	rde := out.CreateElement("rDE")
	rde.CreateAttr("xmlns", sifen.SifenNamespace)
	rde.CreateAttr("version", sifen.LayoutVersion)
	rde.CreateAttr("Id", cdc)

	for _, rule := range mappingRules {
		switch rule.Kind {
		case RuleIdentity, RuleRename, RuleRewrap:
			group := de.FindElement(rule.Target)
			if group == nil {
				continue
			}
			group.Parent().RemoveChild(group)
			group.Tag = rule.Source
			rde.AddChild(group)
		case RuleSplit:
			if rule.Child != "" {
				items := de.SelectElements(rule.Target)
				if len(items) == 0 {
					continue
				}
				wrapper := rde.CreateElement(rule.Source)
				for _, item := range items {
					de.RemoveChild(item)
					item.Tag = rule.Child
					wrapper.AddChild(item)
				}
				continue
			}
			var source *etree.Element
			for _, part := range rule.Parts {
				target := de.SelectElement(part.Target)
				if target == nil {
					continue
				}
				if source == nil {
					source = rde.CreateElement(rule.Source)
				}
				for _, child := range target.ChildElements() {
					target.RemoveChild(child)
					source.AddChild(child)
				}
				de.RemoveChild(target)
			}
		}
	}

	dropEmptyKindWrapper(de)
	for _, leftover := range de.ChildElements() {
		if m.Strict {
			return nil, &MapError{Path: "DE/" + leftover.Tag, Reason: "element not covered by the mapping rules"}
		}
		de.RemoveChild(leftover)
		rde.AddChild(leftover)
	}

	reorder(rde, modularOrder)
	return out, nil
}

// attachAt renames the element to the final path segment and attaches it
// under the path, creating intermediate groups as needed.
func attachAt(de *etree.Element, path string, el *etree.Element) {
	segs := strings.Split(path, "/")
	parent := de
	for _, seg := range segs[:len(segs)-1] {
		next := parent.SelectElement(seg)
		if next == nil {
			next = parent.CreateElement(seg)
		}
		parent = next
	}
	el.Tag = segs[len(segs)-1]
	parent.AddChild(el)
}

// ensureKindWrapper guarantees gDtipDE exists with the sub-record element
// the document kind mandates. Documents whose kind carries no modular
// sub-record (FE, NCE, NDE, NRE) get an empty marker element.
func ensureKindWrapper(de *etree.Element) {
	if de.SelectElement("gDtipDE") != nil {
		return
	}
	kind := ""
	if ope := de.SelectElement("gOpeDE"); ope != nil {
		if tip := ope.SelectElement("iTipDE"); tip != nil {
			kind = tip.Text()
		}
	}
	wrapper, ok := kindWrappers[kind]
	if !ok {
		return
	}
	de.CreateElement("gDtipDE").CreateElement(wrapper)
}

// dropEmptyKindWrapper removes a gDtipDE that only carries the empty
// kind marker; ToOfficial re-synthesizes it from iTipDE.
func dropEmptyKindWrapper(de *etree.Element) {
	g := de.SelectElement("gDtipDE")
	if g == nil {
		return
	}
	children := g.ChildElements()
	if len(children) == 0 {
		de.RemoveChild(g)
		return
	}
	if len(children) == 1 && len(children[0].ChildElements()) == 0 {
		for _, marker := range kindWrappers {
			if children[0].Tag == marker {
				de.RemoveChild(g)
				return
			}
		}
	}
}

// reorder rewrites the parent's children into the canonical sequence.
// Elements outside the order list keep their relative order at the end.
func reorder(parent *etree.Element, order []string) {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}
	children := parent.ChildElements()
	for _, c := range children {
		parent.RemoveChild(c)
	}
	for _, name := range order {
		for _, c := range children {
			if c.Tag == name {
				parent.AddChild(c)
			}
		}
	}
	for _, c := range children {
		if _, known := rank[c.Tag]; !known {
			parent.AddChild(c)
		}
	}
}

// CanonicalBytes serializes the document with indentation stripped so
// two logically equal documents compare byte-for-byte.
func CanonicalBytes(doc *etree.Document) ([]byte, error) {
	c := doc.Copy()
	c.Indent(etree.NoIndent)
	out, err := c.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("mapper: canonicalize: %w", err)
	}
	return out, nil
}
