package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/game/sim"
	"github.com/hazuki-games/steelduel/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RankingHandler handles the tree-wins leaderboard.
type RankingHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(db *gorm.DB, c cache.Cache, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{db: db, cache: c, logger: logger}
}

const rankingTop = 100

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank int    `json:"rank"`
	Tree string `json:"tree"`
	Wins int64  `json:"wins"`
}

// TopTrees returns trees ranked by match wins.
// GET /api/ranking?limit=20
func (h *RankingHandler) TopTrees(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	// Try the cached sorted set first.
	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, sim.RankingKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]RankEntry, 0, len(members))
		for i, m := range members {
			score, _ := h.cache.ZScore(ctx, sim.RankingKey, m)
			entries = append(entries, RankEntry{
				Rank: i + 1,
				Tree: m,
				Wins: int64(score),
			})
		}
		c.JSON(http.StatusOK, gin.H{"ranking": entries})
		return
	}

	// Fall back to aggregating match results in the DB and refresh the set.
	entries, err := h.rebuild(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// RefreshRanking rebuilds the leaderboard sorted set from match results.
// POST /api/admin/ranking/refresh
func (h *RankingHandler) RefreshRanking(c *gin.Context) {
	entries, err := h.rebuild(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": len(entries)})
}

func (h *RankingHandler) rebuild(c *gin.Context) ([]RankEntry, error) {
	type row struct {
		WinnerTree string
		Wins       int64
	}
	var rows []row
	err := h.db.Model(&model.MatchResult{}).
		Select("winner_tree, COUNT(*) as wins").
		Where("draw = ? AND winner_tree <> ''", false).
		Group("winner_tree").
		Order("wins DESC").
		Limit(rankingTop).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	entries := make([]RankEntry, len(rows))
	for i, r := range rows {
		entries[i] = RankEntry{Rank: i + 1, Tree: r.WinnerTree, Wins: r.Wins}
		_ = h.cache.ZAdd(ctx, sim.RankingKey, float64(r.Wins), r.WinnerTree)
	}
	return entries, nil
}
