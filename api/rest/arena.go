package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hazuki-games/steelduel/server/config"
	"github.com/hazuki-games/steelduel/server/game/ai"
	"github.com/hazuki-games/steelduel/server/game/sim"
	"github.com/hazuki-games/steelduel/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ArenaHandler exposes match lifecycle endpoints.
type ArenaHandler struct {
	db     *gorm.DB
	mgr    *sim.Manager
	cfg    config.ArenaConfig
	ai     config.AIConfig
	logger *zap.Logger
}

// NewArenaHandler creates an ArenaHandler.
func NewArenaHandler(db *gorm.DB, mgr *sim.Manager, cfg config.ArenaConfig,
	aiCfg config.AIConfig, logger *zap.Logger) *ArenaHandler {
	return &ArenaHandler{db: db, mgr: mgr, cfg: cfg, ai: aiCfg, logger: logger}
}

type arenaInfo struct {
	ID       string             `json:"id"`
	Ticks    int64              `json:"ticks"`
	Finished bool               `json:"finished"`
	Units    []sim.UnitSnapshot `json:"units"`
}

func describe(a *sim.Arena) arenaInfo {
	return arenaInfo{
		ID:       a.ID,
		Ticks:    a.Ticks(),
		Finished: a.Finished(),
		Units:    a.Snapshot(),
	}
}

// List returns all live arenas.
// GET /api/arenas
func (h *ArenaHandler) List(c *gin.Context) {
	arenas := h.mgr.List()
	out := make([]arenaInfo, 0, len(arenas))
	for _, a := range arenas {
		out = append(out, describe(a))
	}
	c.JSON(http.StatusOK, gin.H{"arenas": out, "count": len(out)})
}

type createMatchRequest struct {
	TreeA string `json:"tree_a" binding:"required"`
	TreeB string `json:"tree_b" binding:"required"`

	// Optional per-match tunable overrides; zero means "use server default".
	MeleeTriggerDistance float64 `json:"melee_trigger_distance"`
	ShootRate            float64 `json:"shoot_rate"`
	MeleeAggression      float64 `json:"melee_aggression"`
	DodgeRate            float64 `json:"dodge_rate"`
	MeleeDefense         float64 `json:"melee_defense"`
}

// Create spawns a new match between two named trees.
// POST /api/arenas
func (h *ArenaHandler) Create(c *gin.Context) {
	var req createMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.cfg.MaxMatches > 0 && h.mgr.Count() >= h.cfg.MaxMatches {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "match limit reached"})
		return
	}

	cfg := ai.Config{
		MeleeTriggerDistance: h.ai.MeleeTriggerDistance,
		ShootRate:            h.ai.ShootRate,
		MeleeAggression:      h.ai.MeleeAggression,
		DodgeRate:            h.ai.DodgeRate,
		MeleeDefense:         h.ai.MeleeDefense,
	}
	if req.MeleeTriggerDistance > 0 {
		cfg.MeleeTriggerDistance = req.MeleeTriggerDistance
	}
	if req.ShootRate > 0 {
		cfg.ShootRate = req.ShootRate
	}
	if req.MeleeAggression > 0 {
		cfg.MeleeAggression = req.MeleeAggression
	}
	if req.DodgeRate > 0 {
		cfg.DodgeRate = req.DodgeRate
	}
	if req.MeleeDefense > 0 {
		cfg.MeleeDefense = req.MeleeDefense
	}

	arena, err := h.mgr.CreateMatch(req.TreeA, req.TreeB, cfg)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, describe(arena))
}

// Get returns one arena's live state.
// GET /api/arenas/:id
func (h *ArenaHandler) Get(c *gin.Context) {
	a := h.mgr.Get(c.Param("id"))
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return
	}
	c.JSON(http.StatusOK, describe(a))
}

// Delete stops and removes an arena.
// DELETE /api/arenas/:id
func (h *ArenaHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !h.mgr.Destroy(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Results returns recent match results.
// GET /api/arenas/results?limit=20
func (h *ArenaHandler) Results(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	var results []model.MatchResult
	if err := h.db.Order("created_at DESC").Limit(limit).Find(&results).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
