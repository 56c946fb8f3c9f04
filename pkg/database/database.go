// Package database opens the GORM store backing settings, presets and the
// movie cache. sqlite is the default for single-box deployments; postgres is
// available for shared ones.
package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects and tunes the backend.
type Config struct {
	Driver string // sqlite or postgres
	Path   string // sqlite file path
	DSN    string // postgres DSN

	MaxConnections  int
	MinConnections  int
	MaxConnLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

// DefaultConfig returns the sqlite single-box defaults.
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		Path:            "data/postersmith.db",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: time.Hour,
		LogLevel:        gormlogger.Warn,
	}
}

// Open connects to the configured backend.
func Open(cfg Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  cfg.LogLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch cfg.Driver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting underlying sql database: %w", err)
		}
		if cfg.MaxConnections > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConnections)
		}
		if cfg.MinConnections > 0 {
			sqlDB.SetMaxIdleConns(cfg.MinConnections)
		}
		if cfg.MaxConnLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
		}
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		return db, nil

	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
