package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/game/ai"
	"github.com/hazuki-games/steelduel/server/model"
	"github.com/hazuki-games/steelduel/server/resource"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RankingKey is the cache ZSet holding per-tree win counts.
const RankingKey = "ranking:tree_wins"

// Manager owns all live arenas, spawns matches from the tree library, and
// records finished matches.
type Manager struct {
	mu     sync.RWMutex
	arenas map[string]*Arena

	lib    *resource.Library
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	logger *zap.Logger
	parser *ai.Parser
}

// NewManager creates a Manager. db and cache may be nil in tests; match
// results are then simply not persisted.
func NewManager(lib *resource.Library, db *gorm.DB, c cache.Cache, ps cache.PubSub, logger *zap.Logger) *Manager {
	return &Manager{
		arenas: make(map[string]*Arena),
		lib:    lib,
		db:     db,
		cache:  c,
		pubsub: ps,
		logger: logger,
		parser: ai.NewParser(logger),
	}
}

// CreateMatch spawns a two-unit arena, one unit per named tree, and starts
// its loop.
func (m *Manager) CreateMatch(treeA, treeB string, cfg ai.Config) (*Arena, error) {
	parsedA, err := m.treeFor(treeA)
	if err != nil {
		return nil, err
	}
	parsedB, err := m.treeFor(treeB)
	if err != nil {
		return nil, err
	}

	arena := NewArena(uuid.New().String(), time.Now().UnixNano(), m.pubsub, m.logger)
	arena.SetOnFinish(m.recordResult)
	arena.AddUnit(NewUnit("alpha", treeA, parsedA, cfg, Vec3{X: -150}))
	arena.AddUnit(NewUnit("beta", treeB, parsedB, cfg, Vec3{X: 150}))

	m.mu.Lock()
	m.arenas[arena.ID] = arena
	m.mu.Unlock()

	go arena.Run()
	m.logger.Info("match created",
		zap.String("arena_id", arena.ID),
		zap.String("tree_a", treeA),
		zap.String("tree_b", treeB))
	return arena, nil
}

func (m *Manager) treeFor(name string) (*ai.Tree, error) {
	def, ok := m.lib.Get(name)
	if !ok {
		return nil, fmt.Errorf("tree %q not in library", name)
	}
	return m.parser.ParseTree(def), nil
}

// Get returns the arena by ID, or nil.
func (m *Manager) Get(id string) *Arena {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.arenas[id]
}

// List returns all live arenas.
func (m *Manager) List() []*Arena {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Arena, 0, len(m.arenas))
	for _, a := range m.arenas {
		out = append(out, a)
	}
	return out
}

// Count returns the number of live arenas.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.arenas)
}

// Destroy stops and removes an arena.
func (m *Manager) Destroy(id string) bool {
	m.mu.Lock()
	arena, ok := m.arenas[id]
	if ok {
		delete(m.arenas, id)
	}
	m.mu.Unlock()
	if ok {
		arena.Stop()
		m.logger.Info("arena destroyed", zap.String("arena_id", id))
	}
	return ok
}

// StopAll stops every arena (shutdown path).
func (m *Manager) StopAll() {
	for _, a := range m.List() {
		a.Stop()
	}
}

// SweepFinished removes arenas whose matches have concluded. Runs on a
// scheduler ticker so finished matches stay inspectable for a while.
func (m *Manager) SweepFinished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.arenas {
		if a.Finished() {
			delete(m.arenas, id)
			n++
		}
	}
	return n
}

// UpdateTree stores a new definition in the library and hot-swaps the
// parsed tree into every live arena using it. Returns the number of units
// rebound.
func (m *Manager) UpdateTree(name string, def *ai.Definition) int {
	m.lib.Put(name, def)
	tree := m.parser.ParseTree(def)
	n := 0
	for _, a := range m.List() {
		n += a.ReplaceTree(name, tree)
	}
	if n > 0 {
		m.logger.Info("tree hot-swapped",
			zap.String("tree", name), zap.Int("units", n))
	}
	return n
}

// recordResult persists a finished match and bumps the winner tree's score
// on the leaderboard. Best-effort on both counts.
func (m *Manager) recordResult(sum MatchSummary) {
	if m.db != nil {
		rec := &model.MatchResult{
			ArenaID:    sum.ArenaID,
			WinnerTree: sum.WinnerTree,
			LoserTree:  sum.LoserTree,
			Draw:       sum.Draw,
			Ticks:      sum.Ticks,
		}
		if err := m.db.Create(rec).Error; err != nil {
			m.logger.Error("match result write failed", zap.Error(err))
		}
	}
	if m.cache != nil && !sum.Draw && sum.WinnerTree != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		score, err := m.cache.ZScore(ctx, RankingKey, sum.WinnerTree)
		if err != nil {
			score = 0
		}
		if err := m.cache.ZAdd(ctx, RankingKey, score+1, sum.WinnerTree); err != nil {
			m.logger.Warn("leaderboard update failed", zap.Error(err))
		}
	}
}
