package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smith3v/puzzle-keeper/pkg/config"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, gormLevel string) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gormLogger, gormErr := newGormLogger(gormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", gormLevel, "error", gormErr)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Driver, "error", err)
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		logger.Error("failed to auto-migrate database", "error", err)
		return nil, err
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return migrateSentinelFlags(gdb)
}

// migrateSentinelFlags marks legacy "Uncategorized" categories created before
// the is_sentinel column existed, one per owner.
func migrateSentinelFlags(gdb *gorm.DB) error {
	return gdb.Exec(`
UPDATE categories
SET is_sentinel = TRUE
WHERE name = ?
  AND is_sentinel = FALSE
  AND NOT EXISTS (
    SELECT 1 FROM categories AS s
    WHERE s.user_id = categories.user_id AND s.is_sentinel = TRUE
  )
`, config.AppConfig.Collection.SentinelName()).Error
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "postgres", "postgresql":
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = "puzzles.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
