package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hazuki-games/steelduel/server/audit"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/game/ai"
	"github.com/hazuki-games/steelduel/server/game/sim"
	mw "github.com/hazuki-games/steelduel/server/middleware"
	"github.com/hazuki-games/steelduel/server/model"
	"github.com/hazuki-games/steelduel/server/resource"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const treeUpdateChannel = "tree_updates"

// TreeHandler handles behavior tree CRUD for the editor.
type TreeHandler struct {
	db     *gorm.DB
	lib    *resource.Library
	mgr    *sim.Manager
	audit  *audit.Service
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewTreeHandler creates a TreeHandler. audit and pubsub may be nil in tests.
func NewTreeHandler(db *gorm.DB, lib *resource.Library, mgr *sim.Manager,
	aud *audit.Service, ps cache.PubSub, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{db: db, lib: lib, mgr: mgr, audit: aud, pubsub: ps, logger: logger}
}

// List returns every tree name with its revision.
// GET /api/trees
func (h *TreeHandler) List(c *gin.Context) {
	var records []model.TreeRecord
	if err := h.db.Select("id, name, description, revision, updated_at").
		Order("name").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	type treeInfo struct {
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Revision    int       `json:"revision"`
		UpdatedAt   time.Time `json:"updated_at"`
	}
	out := make([]treeInfo, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		out = append(out, treeInfo{r.Name, r.Description, r.Revision, r.UpdatedAt})
		seen[r.Name] = true
	}
	// Library-only trees (builtin default, file-loaded) have no DB row.
	for _, name := range h.lib.Names() {
		if !seen[name] {
			out = append(out, treeInfo{Name: name, Revision: 0})
		}
	}
	c.JSON(http.StatusOK, gin.H{"trees": out})
}

// Get returns one tree with its full definition.
// GET /api/trees/:name
func (h *TreeHandler) Get(c *gin.Context) {
	name := c.Param("name")
	var rec model.TreeRecord
	err := h.db.Where("name = ?", name).First(&rec).Error
	if err == nil {
		c.JSON(http.StatusOK, rec)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	// Fall back to the in-memory library.
	def, ok := h.lib.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "tree not found"})
		return
	}
	raw, _ := json.Marshal(def)
	c.JSON(http.StatusOK, gin.H{"name": name, "definition": json.RawMessage(raw)})
}

type saveTreeRequest struct {
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition" binding:"required"`
}

// Save creates or updates a named tree. The definition is validated and
// test-parsed before anything is written; live arenas running the tree are
// hot-swapped on success.
// PUT /api/trees/:name
func (h *TreeHandler) Save(c *gin.Context) {
	name := c.Param("name")
	if name == "" || len(name) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tree name"})
		return
	}
	var req saveTreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def, err := resource.DecodeDefinition(req.Definition)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	accountID := mw.GetAccountID(c)
	var rec model.TreeRecord
	err = h.db.Where("name = ?", name).First(&rec).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if created {
		rec = model.TreeRecord{
			Name:        name,
			Description: req.Description,
			Definition:  datatypes.JSON(req.Definition),
			Revision:    1,
			UpdatedBy:   accountID,
		}
		err = h.db.Create(&rec).Error
	} else {
		rec.Description = req.Description
		rec.Definition = datatypes.JSON(req.Definition)
		rec.Revision++
		rec.UpdatedBy = accountID
		err = h.db.Save(&rec).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	rebound := h.mgr.UpdateTree(name, def)

	if h.audit != nil {
		h.audit.Log(audit.AuditEntry{
			TraceID:   mw.GetTraceID(c),
			AccountID: &accountID,
			Action:    "tree_save",
			TreeName:  name,
			Request:   json.RawMessage(req.Definition),
			IP:        c.ClientIP(),
		})
	}
	if h.pubsub != nil {
		payload, _ := json.Marshal(gin.H{"name": name, "revision": rec.Revision})
		_ = h.pubsub.Publish(c.Request.Context(), treeUpdateChannel, string(payload))
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"name":     name,
		"revision": rec.Revision,
		"rebound":  rebound,
	})
}

// Delete removes a tree from the DB and the library. The builtin default
// cannot be deleted.
// DELETE /api/trees/:name
func (h *TreeHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if name == resource.DefaultTreeName {
		c.JSON(http.StatusForbidden, gin.H{"error": "builtin tree cannot be deleted"})
		return
	}
	result := h.db.Where("name = ?", name).Delete(&model.TreeRecord{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	inLib := h.lib.Delete(name)
	if result.RowsAffected == 0 && !inLib {
		c.JSON(http.StatusNotFound, gin.H{"error": "tree not found"})
		return
	}

	if h.audit != nil {
		accountID := mw.GetAccountID(c)
		h.audit.Log(audit.AuditEntry{
			TraceID:   mw.GetTraceID(c),
			AccountID: &accountID,
			Action:    "tree_delete",
			TreeName:  name,
			IP:        c.ClientIP(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// Validate dry-runs a definition through decode and parse without saving.
// Returns the per-node issues the parser would log as warnings (unknown
// types, bad parameter values) so the editor can surface them.
// POST /api/trees/validate
func (h *TreeHandler) Validate(c *gin.Context) {
	var req saveTreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	def, err := resource.DecodeDefinition(req.Definition)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	// Parse is total; it never fails outright. Count stub nodes so the
	// editor can flag unknown types even though the tree is usable.
	tree := ai.NewParser(h.logger).ParseTree(def)
	stubs := countStubs(tree.Root)
	c.JSON(http.StatusOK, gin.H{"valid": true, "unknown_nodes": stubs})
}

// Catalog returns the node schema catalog for the editor palette.
// GET /api/catalog
func (h *TreeHandler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": ai.Catalog()})
}

func countStubs(n *ai.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Kind == ai.KindUnknown {
		count++
	}
	for _, child := range n.Children {
		count += countStubs(child)
	}
	return count
}
