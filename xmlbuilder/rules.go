package xmlbuilder

// RuleKind names the transform a mapping rule applies.
type RuleKind int

const (
	// RuleIdentity moves a group unchanged between the shapes.
	RuleIdentity RuleKind = iota
	// RuleRename moves a group and changes its element name.
	RuleRename
	// RuleRewrap moves a group under a different parent path, renaming it.
	RuleRewrap
	// RuleSplit distributes one modular group over several official
	// groups, or unwraps a repeated child list. The inverse direction
	// merges the targets back into the single source group.
	RuleSplit
)

// SplitPart routes a subset of a group's children to one target group.
type SplitPart struct {
	Target   string
	Children []string
}

// Rule is one declarative mapping between a modular group (an element
// under the modular rDE) and its official location (a path under DE).
type Rule struct {
	Kind   RuleKind
	Source string // modular element name
	Target string // official path under DE, "/"-separated

	Parts []SplitPart // RuleSplit over fields
	Child string      // RuleSplit over a repeated child: modular child name
}

// mappingRules is the full modular↔official rule table for v150. Rule
// order follows the modular canonical element order.
var mappingRules = []Rule{
	{
		Kind:   RuleSplit,
		Source: "gDatGral",
		Parts: []SplitPart{
			{Target: "gOpeDE", Children: []string{"iTipDE", "dDesTipDE", "dFeEmiDE", "iTipEmi"}},
			{Target: "gDatGralOpe", Children: []string{"dNumDoc", "cMoneOpe", "dTiCam", "dCodSeg"}},
		},
	},
	{Kind: RuleRename, Source: "gTimbrado", Target: "gTimb"},
	{Kind: RuleRename, Source: "gDatEmi", Target: "gEmis"},
	{Kind: RuleIdentity, Source: "gDatRec", Target: "gDatRec"},
	{Kind: RuleIdentity, Source: "gDocAso", Target: "gDocAso"},
	{Kind: RuleRewrap, Source: "gAutoFact", Target: "gDtipDE/gCamAE"},
	{Kind: RuleSplit, Source: "gItems", Child: "gItem", Target: "gCamItem"},
	{Kind: RuleRename, Source: "gTransporte", Target: "gCamTrans"},
	{Kind: RuleRename, Source: "gTotales", Target: "gTotSub"},
	{Kind: RuleIdentity, Source: "gCamGen", Target: "gCamGen"},
}

// officialOrder is the schema-significant element order under DE.
// Reordering is rejected by the SET XSD, so the mapper always emits
// children in this sequence.
var officialOrder = []string{
	"gOpeDE", "gTimb", "gDatGralOpe", "gDocAso", "gDtipDE",
	"gEmis", "gDatRec", "gCamItem", "gTotSub", "gCamTrans", "gCamGen",
}

// modularOrder is the canonical group order under the modular rDE.
var modularOrder = []string{
	"gDatGral", "gTimbrado", "gDatEmi", "gDatRec", "gDocAso",
	"gAutoFact", "gItems", "gTransporte", "gTotales", "gCamGen",
}

// kindWrappers maps the iTipDE value to the gDtipDE sub-record element.
var kindWrappers = map[string]string{
	"1": "gCamFE",
	"4": "gCamAE",
	"5": "gCamNCE",
	"6": "gCamNDE",
	"7": "gCamNRE",
}
