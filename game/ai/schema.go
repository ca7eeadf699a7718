package ai

// Category groups node types for external editing tooling.
type Category string

const (
	CategoryComposite Category = "composite"
	CategoryCondition Category = "condition"
	CategoryAction    Category = "action"
)

// ParamKind is the expected kind of a node parameter value.
type ParamKind string

const (
	ParamNumber ParamKind = "number"
	ParamString ParamKind = "string"
	ParamBool   ParamKind = "bool"
	// ParamValue is the dual-mode kind: a numeric literal, or the name of
	// a config key resolved against the unit's Config at tick time.
	ParamValue ParamKind = "value"
)

// ParamSpec describes one parameter slot of a node type: its key, expected
// kind, the default substituted when the serialized value is absent or
// malformed, and optional enumerated choices for editor dropdowns.
type ParamSpec struct {
	Key     string      `json:"key"`
	Kind    ParamKind   `json:"kind"`
	Default interface{} `json:"default"`
	Choices []string    `json:"choices,omitempty"`
}

// NodeSpec is the schema entry for one node type. The catalog below is the
// single source of truth: the parser resolves defaults from it and the
// editor metadata endpoint exports it verbatim, so the two can never drift.
type NodeSpec struct {
	Type     string      `json:"type"`
	Category Category    `json:"category"`
	Params   []ParamSpec `json:"params,omitempty"`

	kind Kind
}

// catalog lists every recognized node type in export order.
var catalog = []NodeSpec{
	{Type: "Selector", Category: CategoryComposite, kind: KindSelector},
	{Type: "Sequence", Category: CategoryComposite, kind: KindSequence},

	{Type: "CheckThreat", Category: CategoryCondition, kind: KindCheckThreat},
	{Type: "CheckMeleeTargeted", Category: CategoryCondition, kind: KindCheckMeleeTargeted},
	{Type: "CheckCanAct", Category: CategoryCondition, kind: KindCheckCanAct},
	{Type: "CheckCanDefend", Category: CategoryCondition, kind: KindCheckCanDefend},
	{Type: "CheckShootCooldown", Category: CategoryCondition, kind: KindCheckShootCooldown},
	{Type: "CheckAmmo", Category: CategoryCondition, kind: KindCheckAmmo},
	{Type: "CheckShotFired", Category: CategoryCondition, kind: KindCheckShotFired},
	{Type: "CheckMeleeWhiff", Category: CategoryCondition, kind: KindCheckMeleeWhiff},
	{Type: "CheckBoost", Category: CategoryCondition, kind: KindCheckBoost,
		Params: []ParamSpec{
			{Key: "threshold", Kind: ParamNumber, Default: float64(0)},
		}},
	{Type: "CheckState", Category: CategoryCondition, kind: KindCheckState,
		Params: []ParamSpec{
			{Key: "state", Kind: ParamString, Default: "IDLE",
				Choices: []string{"IDLE", "DASH", "ASCEND", "EVADE", "MELEE", "SHOOT", "STAGGER"}},
		}},
	{Type: "CheckStateDuration", Category: CategoryCondition, kind: KindCheckStateDuration,
		Params: []ParamSpec{
			{Key: "min", Kind: ParamNumber, Default: float64(0)},
		}},
	{Type: "CheckDistance", Category: CategoryCondition, kind: KindCheckDistance,
		Params: []ParamSpec{
			{Key: "operator", Kind: ParamString, Default: "<", Choices: []string{"<", ">"}},
			{Key: "value", Kind: ParamValue, Default: "CONFIG_MELEE"},
		}},
	{Type: "Probability", Category: CategoryCondition, kind: KindProbability,
		Params: []ParamSpec{
			{Key: "chance", Kind: ParamValue, Default: float64(0.5)},
		}},

	{Type: "ActionEvade", Category: CategoryAction, kind: KindActionEvade,
		Params: []ParamSpec{
			{Key: "isRainbow", Kind: ParamBool, Default: false},
		}},
	{Type: "ActionMelee", Category: CategoryAction, kind: KindActionMelee},
	{Type: "ActionShoot", Category: CategoryAction, kind: KindActionShoot},
	{Type: "ActionDash", Category: CategoryAction, kind: KindActionDash},
	{Type: "ActionAscend", Category: CategoryAction, kind: KindActionAscend},
	{Type: "ActionIdle", Category: CategoryAction, kind: KindActionIdle},
}

var catalogByType = func() map[string]*NodeSpec {
	m := make(map[string]*NodeSpec, len(catalog))
	for i := range catalog {
		m[catalog[i].Type] = &catalog[i]
	}
	return m
}()

// SpecFor returns the schema entry for a serialized type tag.
func SpecFor(typeTag string) (*NodeSpec, bool) {
	s, ok := catalogByType[typeTag]
	return s, ok
}

// Catalog returns the full node schema in stable order, for the editor
// metadata export.
func Catalog() []NodeSpec {
	out := make([]NodeSpec, len(catalog))
	copy(out, catalog)
	return out
}

// IsComposite reports whether a type tag names a composite node.
func IsComposite(typeTag string) bool {
	s, ok := catalogByType[typeTag]
	return ok && s.Category == CategoryComposite
}
