// Package cli wires the puzzle-keeper commands: the bot server and the
// offline maintenance tools that share its configuration.
package cli

import (
	"fmt"
	"strings"

	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/config"
	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "puzzle-keeper",
		Short: "Keep a personal puzzle collection",
		Long: `puzzle-keeper stores puzzles with their categories, solving approaches
and hints, and serves them through a Telegram bot.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.json", "config file (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level from the config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewDeleteUserCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	if err := config.LoadConfig(o.ConfigPath); err != nil {
		return fmt.Errorf("load config %s: %w", o.ConfigPath, err)
	}
	level := config.AppConfig.Logging.Level
	if strings.TrimSpace(o.LogLevel) != "" {
		level = o.LogLevel
	}
	if err := logger.Configure(logger.Options{
		Level:  level,
		File:   config.AppConfig.Logging.File,
		Format: config.AppConfig.Logging.Format,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	return nil
}

// openService connects to the configured database. The returned func
// closes the connection.
func openService() (*collection.Service, func(), error) {
	gdb, err := db.Open(config.AppConfig.Database, config.AppConfig.Logging.GormLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		sqlDB, err := gdb.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	svc := collection.NewService(store.New(gdb), collection.Options{
		SentinelName: config.AppConfig.Collection.SentinelName(),
		Atomic:       config.AppConfig.Collection.Atomic(),
	})
	return svc, closeDB, nil
}
