package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hazuki-games/steelduel/server/game/ai"
	"go.uber.org/zap"
)

// Library is the named collection of behavior tree definitions available to
// arenas and the editor API. Definitions are validated on the way in; a bad
// file or import never displaces a previously loaded tree.
type Library struct {
	mu     sync.RWMutex
	trees  map[string]*ai.Definition
	logger *zap.Logger
}

// NewLibrary creates an empty Library.
func NewLibrary(logger *zap.Logger) *Library {
	return &Library{
		trees:  make(map[string]*ai.Definition),
		logger: logger,
	}
}

// LoadDir reads every *.json tree definition in dir, keyed by file base
// name. Invalid files are skipped with a warning. A missing dir is not an
// error (the built-in default still serves).
func (l *Library) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		l.logger.Warn("tree directory missing, using built-in default", zap.String("dir", dir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tree dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("tree file unreadable", zap.String("path", path), zap.Error(err))
			continue
		}
		def, err := DecodeDefinition(data)
		if err != nil {
			l.logger.Warn("tree file rejected", zap.String("path", path), zap.Error(err))
			continue
		}
		l.Put(name, def)
		loaded++
	}
	l.logger.Info("tree library loaded", zap.String("dir", dir), zap.Int("count", loaded))
	return nil
}

// DecodeDefinition unmarshals and boundary-validates a serialized tree.
func DecodeDefinition(data []byte) (*ai.Definition, error) {
	var def ai.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if err := ai.ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Get returns the definition for name, falling back to the built-in
// default for the reserved name "default".
func (l *Library) Get(name string) (*ai.Definition, bool) {
	l.mu.RLock()
	def, ok := l.trees[name]
	l.mu.RUnlock()
	if !ok && name == DefaultTreeName {
		return DefaultDefinition(), true
	}
	return def, ok
}

// Put stores (or replaces) a definition.
func (l *Library) Put(name string, def *ai.Definition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trees[name] = def
}

// Delete removes a definition. The built-in default cannot be deleted.
func (l *Library) Delete(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.trees[name]; !ok {
		return false
	}
	delete(l.trees, name)
	return true
}

// Names returns the sorted tree names, always including the default.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.trees)+1)
	seen := false
	for name := range l.trees {
		if name == DefaultTreeName {
			seen = true
		}
		names = append(names, name)
	}
	if !seen {
		names = append(names, DefaultTreeName)
	}
	sort.Strings(names)
	return names
}
