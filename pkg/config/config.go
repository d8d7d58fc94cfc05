package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"gopkg.in/yaml.v3"
)

const DefaultUncategorizedName = "Uncategorized"

type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Telegram   TelegramConfig   `json:"telegram" yaml:"telegram"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Collection CollectionConfig `json:"collection" yaml:"collection"`
	Account    AccountConfig    `json:"account" yaml:"account"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"` // "postgres" (default) or "sqlite"
	Host     string `json:"host" yaml:"host"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	Port     int    `json:"port" yaml:"port"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
	Path     string `json:"path" yaml:"path"` // sqlite only
}

type TelegramConfig struct {
	Token string `json:"token" yaml:"token"`
}

type LoggingConfig struct {
	Level     string `json:"level" yaml:"level"`
	File      string `json:"file" yaml:"file"`
	GormLevel string `json:"gorm_level" yaml:"gorm_level"`
	Format    string `json:"format" yaml:"format"` // "text" (default) or "json"
}

type CollectionConfig struct {
	UncategorizedName string `json:"uncategorized_name" yaml:"uncategorized_name"`
	// AtomicCascades wraps every cascade pipeline in one transaction. Nil means true.
	AtomicCascades *bool `json:"atomic_cascades" yaml:"atomic_cascades"`
}

type AccountConfig struct {
	DeleteConfirmMinutes int `json:"delete_confirm_minutes" yaml:"delete_confirm_minutes"`
}

var AppConfig Config

func LoadConfig(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		logger.Error("failed to open config file", "error", err)
		return err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		logger.Error("failed to decode config file", "file", filename, "error", err)
		return err
	}

	AppConfig = cfg
	return nil
}

func (c CollectionConfig) SentinelName() string {
	name := strings.TrimSpace(c.UncategorizedName)
	if name == "" {
		return DefaultUncategorizedName
	}
	return name
}

func (c CollectionConfig) Atomic() bool {
	if c.AtomicCascades == nil {
		return true
	}
	return *c.AtomicCascades
}
