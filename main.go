package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	apirest "github.com/hazuki-games/steelduel/server/api/rest"
	"github.com/hazuki-games/steelduel/server/api/sse"
	"github.com/hazuki-games/steelduel/server/audit"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/config"
	dbadapter "github.com/hazuki-games/steelduel/server/db"
	"github.com/hazuki-games/steelduel/server/game/sim"
	mw "github.com/hazuki-games/steelduel/server/middleware"
	"github.com/hazuki-games/steelduel/server/model"
	"github.com/hazuki-games/steelduel/server/resource"
	"github.com/hazuki-games/steelduel/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Tree library ----
	// Load order: builtin default, then files from tree_dir, then DB records.
	// Later sources win, so editor-saved trees override file copies.
	lib := resource.NewLibrary(logger)
	if cfg.AI.TreeDir != "" {
		if err := lib.LoadDir(cfg.AI.TreeDir); err != nil {
			logger.Warn("tree dir load warning", zap.Error(err))
		}
	}
	var records []model.TreeRecord
	if err := db.Find(&records).Error; err != nil {
		logger.Warn("tree records load failed", zap.Error(err))
	}
	for _, rec := range records {
		def, err := resource.DecodeDefinition(rec.Definition)
		if err != nil {
			logger.Warn("stored tree invalid, skipping",
				zap.String("name", rec.Name), zap.Error(err))
			continue
		}
		lib.Put(rec.Name, def)
	}
	logger.Info("tree library loaded", zap.Int("trees", len(lib.Names())))

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Simulation ----
	mgr := sim.NewManager(lib, db, c, pubsub, logger)
	defer mgr.StopAll()

	sched.AddTicker("arena_sweep", cfg.Arena.SweepInterval, func() {
		if n := mgr.SweepFinished(); n > 0 {
			logger.Info("swept finished arenas", zap.Int("count", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	treeH := apirest.NewTreeHandler(db, lib, mgr, auditSvc, pubsub, logger)
	arenaH := apirest.NewArenaHandler(db, mgr, cfg.Arena, cfg.AI, logger)
	rankH := apirest.NewRankingHandler(db, c, logger)
	adminH := apirest.NewAdminHandler(db, mgr, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		// Node schema for the editor palette; no auth so editors can render
		// the palette before login.
		api.GET("/catalog", treeH.Catalog)

		treesG := api.Group("/trees")
		treesG.Use(mw.Auth(cfg.Security, c))
		treesG.GET("", treeH.List)
		treesG.GET("/:name", treeH.Get)
		treesG.PUT("/:name", treeH.Save)
		treesG.DELETE("/:name", treeH.Delete)
		treesG.POST("/validate", treeH.Validate)

		arenasG := api.Group("/arenas")
		arenasG.Use(mw.Auth(cfg.Security, c))
		arenasG.GET("", arenaH.List)
		arenasG.POST("", arenaH.Create)
		arenasG.GET("/results", arenaH.Results)
		arenasG.GET("/:id", arenaH.Get)
		arenasG.DELETE("/:id", arenaH.Delete)

		rankG := api.Group("/ranking")
		rankG.Use(mw.Auth(cfg.Security, c))
		rankG.GET("", rankH.TopTrees)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPAllowlist(cfg.Security.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/arenas/stop", adminH.StopAllArenas)
		adminG.POST("/arenas/sweep", adminH.SweepArenas)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/audit", adminH.ListAuditLogs)
		adminG.POST("/ranking/refresh", rankH.RefreshRanking)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse/events", sseH.ServeEvents)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
