package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
)

const helpText = "Commands:\n" +
	"/categories: list your categories\n" +
	"/puzzles: list your puzzles\n" +
	"/newcategory <name>: create a category\n" +
	"/newpuzzle <title>: add a puzzle (it starts uncategorized)\n" +
	"/addcategory <puzzle id> <category id>: file a puzzle under one more category\n" +
	"/delpuzzle <id>: delete a puzzle with its hints\n" +
	"/delcategory <id>: delete a category, keeping its puzzles\n" +
	"/delapproach <id>: delete an approach\n" +
	"/export: download your collection as JSON\n" +
	"/deleteaccount: delete your account and everything in it\n\n" +
	"Send a JSON export file here to import it into your collection."

func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleStart")
		return
	}
	if _, err := h.owner(ctx, update.Message.From); err != nil {
		logger.Error("failed to register user", "user_id", update.Message.From.ID, "error", err)
		h.reply(ctx, b, update.Message.Chat.ID, "Failed to set up your account. Please try again later.")
		return
	}
	h.reply(ctx, b, update.Message.Chat.ID, "Welcome to your puzzle collection!\n\n"+helpText)
}

func (h *Handlers) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		logger.Error("received invalid update in DefaultHandler")
		return
	}
	if update.Message.Chat.ID == 0 {
		logger.Error("chat ID is zero in DefaultHandler")
		return
	}

	if update.Message.Document != nil {
		h.handleDocumentImport(ctx, b, update)
		return
	}
	if strings.TrimSpace(update.Message.Text) != "" && h.tryHandleConfirmation(ctx, b, update) {
		return
	}
	h.reply(ctx, b, update.Message.Chat.ID, helpText)
}
