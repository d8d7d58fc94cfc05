package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
)

func (h *Handlers) HandleDeletePuzzle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleDeletePuzzle")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	id, err := parseID(commandArg(update.Message.Text, "/delpuzzle"))
	if err == nil {
		err = h.checkPuzzleOwner(ctx, owner, id)
	}
	if err == nil {
		err = h.svc.DeletePuzzle(ctx, id)
	}
	if err != nil {
		logger.Warn("failed to delete puzzle", "user_id", owner, "puzzle_id", id, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "puzzle"))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("Deleted puzzle #%d with its hints.", id))
}

func (h *Handlers) HandleDeleteCategory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleDeleteCategory")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	id, err := parseID(commandArg(update.Message.Text, "/delcategory"))
	if err == nil {
		err = h.checkOwner(ctx, owner, store.KindCategory, id)
	}
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "category"))
		return
	}
	res, err := h.svc.DeleteCategory(ctx, id)
	if err != nil {
		logger.Warn("failed to delete category", "user_id", owner, "category_id", id, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "category"))
		return
	}
	text := fmt.Sprintf("Deleted category #%d.", id)
	if n := len(res.PuzzleIDs); n > 0 {
		text += fmt.Sprintf(" %d puzzle(s) had no other category and moved to %s.", n, h.svc.SentinelLabel(ctx, res.SentinelID))
	}
	h.reply(ctx, b, chatID, text)
}

func (h *Handlers) HandleDeleteApproach(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleDeleteApproach")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	id, err := parseID(commandArg(update.Message.Text, "/delapproach"))
	if err == nil {
		err = h.checkOwner(ctx, owner, store.KindApproach, id)
	}
	if err == nil {
		err = h.svc.DeleteApproach(ctx, id)
	}
	if err != nil {
		logger.Warn("failed to delete approach", "user_id", owner, "approach_id", id, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "approach"))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("Deleted approach #%d.", id))
}
