package resource

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazuki-games/steelduel/server/game/ai"
	"go.uber.org/zap"
)

func TestDefaultDefinitionParses(t *testing.T) {
	def := DefaultDefinition()
	if err := ai.ValidateDefinition(def); err != nil {
		t.Fatalf("built-in tree invalid: %v", err)
	}
	tree := ai.NewParser(zap.NewNop()).ParseTree(def)
	if tree.Root == nil || tree.Root.Kind != ai.KindSelector {
		t.Fatalf("built-in tree root = %+v, want Selector", tree.Root)
	}

	// The terminal fallback means a tick can never fail outright.
	ctx := &ai.Context{
		State:  "IDLE",
		CanAct: true,
		Rand:   rand.New(rand.NewSource(3)),
	}
	idled := false
	ctx.Actions = ai.Actions{
		Evade:  func(bool) {},
		Melee:  func(string) {},
		Shoot:  func() {},
		Dash:   func() {},
		Ascend: func() {},
		Idle:   func() { idled = true },
	}
	if got := tree.Tick(ctx); got != ai.StatusSuccess {
		t.Errorf("default tree tick = %v, want SUCCESS", got)
	}
	if !idled {
		t.Error("grounded idle unit should fall through to ActionIdle")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	good := `{"id":"r","type":"Sequence","children":[{"id":"a","type":"ActionIdle"}]}`
	bad := `{"id":"r"}` // no type → rejected at the boundary
	notJSON := `{{{`
	if err := os.WriteFile(filepath.Join(dir, "aggro.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte(notJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(zap.NewNop())
	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if _, ok := lib.Get("aggro"); !ok {
		t.Error("valid tree not loaded")
	}
	if _, ok := lib.Get("broken"); ok {
		t.Error("boundary-invalid tree was accepted")
	}
	if _, ok := lib.Get("garbage"); ok {
		t.Error("unparseable tree was accepted")
	}
}

func TestLoadDirMissingIsNotFatal(t *testing.T) {
	lib := NewLibrary(zap.NewNop())
	if err := lib.LoadDir("/no/such/dir"); err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
}

func TestLibraryDefaultFallback(t *testing.T) {
	lib := NewLibrary(zap.NewNop())
	if _, ok := lib.Get(DefaultTreeName); !ok {
		t.Fatal("default tree not reachable from empty library")
	}
	names := lib.Names()
	if len(names) != 1 || names[0] != DefaultTreeName {
		t.Errorf("names = %v, want [default]", names)
	}

	// A stored tree named "default" overrides the built-in.
	custom := &ai.Definition{Type: "ActionIdle"}
	lib.Put(DefaultTreeName, custom)
	got, _ := lib.Get(DefaultTreeName)
	if got != custom {
		t.Error("stored default not returned")
	}
	if !lib.Delete(DefaultTreeName) {
		t.Error("stored default not deletable")
	}
	if _, ok := lib.Get(DefaultTreeName); !ok {
		t.Error("built-in default gone after deleting the override")
	}
}

func TestDecodeDefinitionRejectsCompositeWithoutChildren(t *testing.T) {
	if _, err := DecodeDefinition([]byte(`{"id":"r","type":"Selector"}`)); err == nil {
		t.Error("composite without children array accepted")
	}
	if _, err := DecodeDefinition([]byte(`{"id":"r","type":"Selector","children":[]}`)); err != nil {
		t.Errorf("empty composite rejected: %v", err)
	}
}
