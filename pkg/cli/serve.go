package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/smith3v/puzzle-keeper/pkg/bot/confirm"
	"github.com/smith3v/puzzle-keeper/pkg/bot/handlers"
	"github.com/smith3v/puzzle-keeper/pkg/config"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	token := config.AppConfig.Telegram.Token
	if token == "" {
		return errors.New("telegram.token is not set")
	}
	if parent == nil {
		parent = context.Background()
	}

	svc, closeDB, err := openService()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h := handlers.New(svc, confirm.NewManager(nil), handlers.Options{
		Token:          token,
		ConfirmMinutes: config.AppConfig.Account.DeleteConfirmMinutes,
	})
	b, err := bot.New(token, bot.WithDefaultHandler(h.DefaultHandler))
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		return err
	}
	h.Register(b)

	go h.StartSweeper(ctx)

	logger.Info("Starting bot...")
	b.Start(ctx)
	logger.Info("bot stopped")
	return nil
}
