package handlers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/importexport"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
)

const exportFailedText = "Failed to export your collection. Please try again later."

func (h *Handlers) HandleExport(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleExport")
		return
	}
	chatID := update.Message.Chat.ID
	if update.Message.Chat.Type != models.ChatTypePrivate {
		h.reply(ctx, b, chatID, "The /export command works only in private chat.")
		return
	}
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}

	doc, err := h.exporter.ExportAll(ctx, owner)
	if err != nil {
		logger.Error("failed to export collection", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, exportFailedText)
		return
	}
	if len(doc.Puzzles) == 0 {
		h.reply(ctx, b, chatID, "You have no puzzles to export.")
		return
	}

	var buf bytes.Buffer
	if err := importexport.Encode(&buf, doc); err != nil {
		logger.Error("failed to encode export", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, exportFailedText)
		return
	}

	caption := fmt.Sprintf("Your puzzle collection (%d puzzles, %d categories, %d approaches, %d hints).",
		len(doc.Puzzles), len(doc.Categories), len(doc.Approaches), len(doc.Hints))
	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: importexport.ExportFilename(h.now()),
			Data:     &buf,
		},
		Caption: caption,
	})
	if err != nil {
		logger.Error("failed to send export document", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, exportFailedText)
	}
}
