package ai

import (
	"encoding/json"
	"math/rand"
	"testing"
)

func parseJSON(t *testing.T, src string) *Node {
	t.Helper()
	var def Definition
	if err := json.Unmarshal([]byte(src), &def); err != nil {
		t.Fatalf("bad test JSON: %v", err)
	}
	return NewParser(nil).Parse(&def)
}

func TestParseCheckBoostDefault(t *testing.T) {
	n := parseJSON(t, `{"id":"n1","type":"CheckBoost","params":{}}`)
	if n.Kind != KindCheckBoost {
		t.Fatalf("kind = %v, want CheckBoost", n.Kind)
	}
	if n.Threshold != 0 {
		t.Errorf("threshold = %v, want 0 (documented default)", n.Threshold)
	}
}

func TestParseMalformedNumberFallsBack(t *testing.T) {
	n := parseJSON(t, `{"id":"n1","type":"CheckStateDuration","params":{"min":"not a number"}}`)
	if n.Min != 0 {
		t.Errorf("min = %v, want 0", n.Min)
	}
	n = parseJSON(t, `{"id":"n2","type":"CheckStateDuration","params":{"min":"45"}}`)
	if n.Min != 45 {
		t.Errorf("numeric string min = %v, want 45", n.Min)
	}
}

func TestParseCheckStateDefault(t *testing.T) {
	n := parseJSON(t, `{"id":"n1","type":"CheckState"}`)
	if n.State != "IDLE" {
		t.Errorf("state = %q, want IDLE", n.State)
	}
}

func TestParseDualModeValue(t *testing.T) {
	// Literal number.
	n := parseJSON(t, `{"id":"a","type":"CheckDistance","params":{"operator":">","value":55}}`)
	if n.Operator != ">" {
		t.Errorf("operator = %q, want >", n.Operator)
	}
	if n.Value.Key != ConfigNone || n.Value.Literal != 55 {
		t.Errorf("value = %+v, want literal 55", n.Value)
	}

	// Config key name.
	n = parseJSON(t, `{"id":"b","type":"CheckDistance","params":{"value":"CONFIG_MELEE"}}`)
	if n.Value.Key != ConfigMeleeTriggerDistance {
		t.Errorf("value key = %v, want CONFIG_MELEE", n.Value.Key)
	}
	if n.Operator != "<" {
		t.Errorf("default operator = %q, want <", n.Operator)
	}

	// Numeric string counts as a literal, not a key.
	n = parseJSON(t, `{"id":"c","type":"Probability","params":{"chance":"0.25"}}`)
	if n.Chance.Key != ConfigNone || n.Chance.Literal != 0.25 {
		t.Errorf("chance = %+v, want literal 0.25", n.Chance)
	}

	// Unknown key name falls back to the catalog default (0.5).
	n = parseJSON(t, `{"id":"d","type":"Probability","params":{"chance":"CONFIG_NOPE"}}`)
	if n.Chance.Key != ConfigNone || n.Chance.Literal != 0.5 {
		t.Errorf("chance = %+v, want default literal 0.5", n.Chance)
	}
}

func TestParseCheckDistanceDefaultsToConfigMelee(t *testing.T) {
	n := parseJSON(t, `{"id":"a","type":"CheckDistance"}`)
	if n.Value.Key != ConfigMeleeTriggerDistance {
		t.Errorf("default value source = %+v, want CONFIG_MELEE ref", n.Value)
	}
}

func TestParseBadOperatorNormalized(t *testing.T) {
	n := parseJSON(t, `{"id":"a","type":"CheckDistance","params":{"operator":">="}}`)
	if n.Operator != "<" {
		t.Errorf("operator = %q, want < (unsupported operators collapse to default)", n.Operator)
	}
}

func TestParseUnknownTypeYieldsStub(t *testing.T) {
	n := parseJSON(t, `{"id":"x","type":"TotallyBogus"}`)
	if n.Kind != KindUnknown {
		t.Fatalf("kind = %v, want Unknown", n.Kind)
	}
	ctx := testContext()
	if got := n.Tick(ctx); got != StatusFailure {
		t.Errorf("stub tick = %v, want FAILURE", got)
	}
}

func TestParseUnknownTypeInsideComposite(t *testing.T) {
	n := parseJSON(t, `{
		"id":"root","type":"Selector","children":[
			{"id":"bogus","type":"NoSuchNode"},
			{"id":"idle","type":"ActionIdle"}
		]}`)
	ctx := testContext()
	called := false
	ctx.Actions.Idle = func() { called = true }
	if got := n.Tick(ctx); got != StatusSuccess {
		t.Errorf("tick = %v, want SUCCESS (stub fails, selector moves on)", got)
	}
	if !called {
		t.Error("idle action not reached past the stub")
	}
}

func TestParseConditionIgnoresExtraChildren(t *testing.T) {
	n := parseJSON(t, `{"id":"a","type":"CheckThreat","children":[{"id":"b","type":"ActionIdle"}]}`)
	if len(n.Children) != 0 {
		t.Errorf("condition kept %d children, want 0", len(n.Children))
	}
}

func TestParseActionEvadeBool(t *testing.T) {
	n := parseJSON(t, `{"id":"a","type":"ActionEvade","params":{"isRainbow":true}}`)
	if !n.Rainbow {
		t.Error("isRainbow = false, want true")
	}
	n = parseJSON(t, `{"id":"b","type":"ActionEvade"}`)
	if n.Rainbow {
		t.Error("default isRainbow = true, want false")
	}
}

// Round-trip: a Selector of two Sequences, each condition+action, checked
// against hand-computed expectations for all four truth combinations.
func TestParseRoundTripBehavior(t *testing.T) {
	root := parseJSON(t, `{
		"id":"root","type":"Selector","children":[
			{"id":"s1","type":"Sequence","children":[
				{"id":"c1","type":"CheckThreat"},
				{"id":"a1","type":"ActionEvade","params":{"isRainbow":false}}
			]},
			{"id":"s2","type":"Sequence","children":[
				{"id":"c2","type":"CheckAmmo"},
				{"id":"a2","type":"ActionShoot"}
			]}
		]}`)

	cases := []struct {
		threat     bool
		ammo       int
		wantStatus Status
		wantEvade  int
		wantShoot  int
	}{
		{true, 1, StatusSuccess, 1, 0},  // first branch wins, second never runs
		{true, 0, StatusSuccess, 1, 0},
		{false, 1, StatusSuccess, 0, 1}, // falls through to shoot branch
		{false, 0, StatusFailure, 0, 0}, // both branches fail
	}
	for i, tc := range cases {
		ctx := testContext()
		ctx.HasThreat = tc.threat
		ctx.Ammo = tc.ammo
		evades, shots := 0, 0
		ctx.Actions.Evade = func(bool) { evades++ }
		ctx.Actions.Shoot = func() { shots++ }

		if got := root.Tick(ctx); got != tc.wantStatus {
			t.Errorf("case %d: status = %v, want %v", i, got, tc.wantStatus)
		}
		if evades != tc.wantEvade || shots != tc.wantShoot {
			t.Errorf("case %d: evade/shoot = %d/%d, want %d/%d",
				i, evades, shots, tc.wantEvade, tc.wantShoot)
		}
	}
}

func TestParseEmptyComposite(t *testing.T) {
	n := parseJSON(t, `{"id":"a","type":"Sequence","children":[]}`)
	if n.Kind != KindSequence || len(n.Children) != 0 {
		t.Fatalf("parsed %+v, want empty Sequence", n)
	}
	if got := n.Tick(testContext()); got != StatusSuccess {
		t.Errorf("empty sequence = %v, want SUCCESS", got)
	}
}

func TestValidateDefinition(t *testing.T) {
	if err := ValidateDefinition(nil); err == nil {
		t.Error("nil definition accepted")
	}
	if err := ValidateDefinition(&Definition{ID: "a"}); err == nil {
		t.Error("typeless definition accepted")
	}
	if err := ValidateDefinition(&Definition{Type: "Selector"}); err == nil {
		t.Error("composite without children array accepted")
	}
	if err := ValidateDefinition(&Definition{Type: "Selector", Children: []*Definition{}}); err != nil {
		t.Errorf("empty children array rejected: %v", err)
	}
	if err := ValidateDefinition(&Definition{Type: "ActionIdle"}); err != nil {
		t.Errorf("leaf root rejected: %v", err)
	}
	// Unknown types pass validation: the parser degrades them to stubs.
	if err := ValidateDefinition(&Definition{Type: "Mystery"}); err != nil {
		t.Errorf("unknown type rejected at boundary: %v", err)
	}
}

func TestSharedTreeAcrossUnits(t *testing.T) {
	// One parsed tree, many units: per-unit state lives in the context.
	tree := NewParser(nil).ParseTree(&Definition{
		Type: "Sequence",
		Children: []*Definition{
			{Type: "CheckBoost", Params: map[string]interface{}{"threshold": 50.0}},
			{Type: "ActionDash"},
		},
	})

	rng := rand.New(rand.NewSource(7))
	dashes := 0
	for unit := int64(0); unit < 10; unit++ {
		ctx := testContext()
		ctx.UnitID = unit
		ctx.Rand = rng
		ctx.Boost = float64(unit * 10) // 0..90
		ctx.Actions.Dash = func() { dashes++ }
		tree.Tick(ctx)
	}
	if dashes != 4 { // boost 60,70,80,90 pass the >50 check
		t.Errorf("dashes = %d, want 4", dashes)
	}
}
