package ai

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Definition is the serialized form of a node, as produced by the tree
// editor or static data files. It is consumed exactly once by Parse and not
// retained afterward.
type Definition struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Children []*Definition          `json:"children,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// Parser builds live node trees from serialized definitions. Parsing is
// best-effort per node: malformed parameters fall back to catalog defaults
// and unrecognized types become always-failing stubs, so one broken subtree
// never aborts the rest of the tree.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a Parser. A nil logger disables diagnostics.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ParseTree parses a root definition into a tickable tree.
func (p *Parser) ParseTree(def *Definition) *Tree {
	return &Tree{Root: p.Parse(def)}
}

// Parse converts one definition (and, for composites, its children in
// order) into a live node. It is total: any input yields a usable node.
func (p *Parser) Parse(def *Definition) *Node {
	if def == nil {
		return &Node{Kind: KindUnknown}
	}

	spec, ok := SpecFor(def.Type)
	if !ok {
		p.logger.Warn("unknown behavior node type, substituting stub",
			zap.String("type", def.Type), zap.String("id", def.ID))
		return &Node{Kind: KindUnknown}
	}

	n := &Node{Kind: spec.kind}

	if spec.Category == CategoryComposite {
		n.Children = make([]*Node, 0, len(def.Children))
		for _, child := range def.Children {
			n.Children = append(n.Children, p.Parse(child))
		}
		return n
	}
	// Conditions and actions carry no children; extras are ignored.

	for _, ps := range spec.Params {
		raw, present := def.Params[ps.Key]
		switch ps.Kind {
		case ParamNumber:
			v, ok := toNumber(raw)
			if !present || !ok {
				v, _ = toNumber(ps.Default)
			}
			p.setNumber(n, ps.Key, v)
		case ParamString:
			v, ok := toString(raw)
			if !present || !ok {
				v, _ = toString(ps.Default)
			}
			p.setString(n, ps.Key, v)
		case ParamBool:
			v, ok := toBool(raw)
			if !present || !ok {
				v, _ = toBool(ps.Default)
			}
			p.setBool(n, ps.Key, v)
		case ParamValue:
			if !present {
				raw = ps.Default
			}
			p.setValue(n, def, ps, raw)
		}
	}
	return n
}

// resolveValueSource implements the dual-mode rule: numeric coercion first,
// otherwise the raw string names a config key.
func (p *Parser) resolveValueSource(raw interface{}) (ValueSource, error) {
	if v, ok := toNumber(raw); ok {
		return Literal(v), nil
	}
	s, ok := raw.(string)
	if !ok {
		return ValueSource{}, fmt.Errorf("not a number or config key: %v", raw)
	}
	key, ok := configKeyNames[s]
	if !ok {
		return ValueSource{}, fmt.Errorf("unknown config key %q", s)
	}
	return ConfigRef(key), nil
}

func (p *Parser) setValue(n *Node, def *Definition, ps ParamSpec, raw interface{}) {
	src, err := p.resolveValueSource(raw)
	if err != nil {
		p.logger.Warn("bad node parameter, using default",
			zap.String("type", def.Type), zap.String("param", ps.Key), zap.Error(err))
		// The default itself may be a literal or a key name.
		src, err = p.resolveValueSource(ps.Default)
		if err != nil {
			src = Literal(0)
		}
	}
	switch ps.Key {
	case "value":
		n.Value = src
	case "chance":
		n.Chance = src
	}
}

func (p *Parser) setNumber(n *Node, key string, v float64) {
	switch key {
	case "threshold":
		n.Threshold = v
	case "min":
		n.Min = v
	}
}

func (p *Parser) setString(n *Node, key, v string) {
	switch key {
	case "state":
		n.State = v
	case "operator":
		if v != "<" && v != ">" {
			v = "<"
		}
		n.Operator = v
	}
}

func (p *Parser) setBool(n *Node, key string, v bool) {
	switch key {
	case "isRainbow":
		n.Rainbow = v
	}
}

// ValidateDefinition is the import-boundary check applied before a
// serialized tree may replace a live one: the top-level value must carry a
// type, and a composite top level must carry a children array. Structurally
// invalid input is rejected here without touching the active tree.
func ValidateDefinition(def *Definition) error {
	if def == nil {
		return fmt.Errorf("empty definition")
	}
	if def.Type == "" {
		return fmt.Errorf("definition has no type")
	}
	if IsComposite(def.Type) && def.Children == nil {
		return fmt.Errorf("composite root %q has no children array", def.Type)
	}
	return nil
}

// ---- coercion helpers ----

// toNumber coerces JSON-decoded values to float64. Bools and
// non-numeric strings are not representable as numbers.
func toNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func toBool(v interface{}) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	case float64:
		return x != 0, true
	default:
		return false, false
	}
}
