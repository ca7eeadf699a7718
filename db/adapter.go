package db

import (
	"fmt"

	"github.com/hazuki-games/steelduel/server/config"
	dbmysql "github.com/hazuki-games/steelduel/server/db/mysql"
	dbsqlite "github.com/hazuki-games/steelduel/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeMemory = "memory"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeMemory:
		// Shared-cache memory DB so pooled connections see the same data.
		return dbsqlite.Open("file::memory:?cache=shared")
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(dbmysql.Options{
			DSN:             cfg.MySQLDSN,
			MaxOpenConns:    cfg.MySQLMaxOpen,
			MaxIdleConns:    cfg.MySQLMaxIdle,
			ConnMaxLifetime: cfg.MySQLMaxLife,
		})
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
