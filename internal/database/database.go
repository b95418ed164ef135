package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/models"
)

var db *gorm.DB

// sqliteParams are appended to file DSNs: WAL lets the API read while an
// import writes, the busy timeout covers the import's replace transaction.
const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Dialector returns the gorm dialector for cfg. Guide times are stored in
// UTC, so postgres sessions are pinned to it.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		)), nil
	case "sqlite", "":
		if cfg.Path == ":memory:" {
			return sqlite.Open(cfg.Path), nil
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		return sqlite.Open(cfg.Path + "?" + sqliteParams), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Open connects to the configured database and runs migrations
func Open(cfg config.DatabaseConfig, dbLevel string) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	slow := time.Duration(cfg.SlowQueryMS) * time.Millisecond
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.NewGormAdapter(logger.DatabaseLogger(), dbLevel, slow),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.Driver == "postgres" {
		pool.SetMaxIdleConns(10)
		pool.SetMaxOpenConns(100)
		pool.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite serialises writers
		pool.SetMaxOpenConns(1)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return conn, nil
}

// Initialize opens the database from the global configuration and keeps it for Get
func Initialize() error {
	cfg := config.Get()
	conn, err := Open(cfg.Database, cfg.GetDatabaseLogLevel())
	if err != nil {
		return err
	}
	db = conn
	return nil
}

// Migrate creates or updates every table
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(models.All()...)
}

// Get returns the database instance
func Get() *gorm.DB {
	return db
}

// Set replaces the database instance, used by tests
func Set(conn *gorm.DB) {
	db = conn
}

func sqlDB() (*sql.DB, error) {
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return db.DB()
}

// HealthCheck pings the database
func HealthCheck() error {
	conn, err := sqlDB()
	if err != nil {
		return err
	}
	if err := conn.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool. Closing an uninitialized database is a no-op.
func Close() error {
	if db == nil {
		return nil
	}
	conn, err := sqlDB()
	if err != nil {
		return err
	}
	return conn.Close()
}
