package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/bot/confirm"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
)

const deleteConfirmPhrase = "DELETE MY ACCOUNT"

func (h *Handlers) HandleDeleteAccount(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleDeleteAccount")
		return
	}
	chatID := update.Message.Chat.ID
	if update.Message.Chat.Type != models.ChatTypePrivate {
		h.reply(ctx, b, chatID, "The /deleteaccount command works only in private chat.")
		return
	}
	userID := update.Message.From.ID
	h.confirmations.Start(userID, chatID, confirm.Request{
		Action:   confirm.ActionDeleteAccount,
		TargetID: userKey(userID),
		Phrase:   deleteConfirmPhrase,
	}, h.now(), h.confirmWindow)
	h.reply(ctx, b, chatID, fmt.Sprintf(
		"This deletes all your puzzles, categories, approaches and hints. It cannot be undone.\n"+
			"To confirm, reply with %s within %d minutes. Anything else cancels.",
		deleteConfirmPhrase, int(h.confirmWindow.Minutes())))
}

// tryHandleConfirmation consumes an open confirmation window. It
// reports false when the sender has none, so the message is handled
// normally.
func (h *Handlers) tryHandleConfirmation(ctx context.Context, b *bot.Bot, update *models.Update) bool {
	if update.Message.From == nil {
		return false
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	req, ok := h.confirmations.Consume(userID, chatID, h.now())
	if !ok {
		return false
	}
	if !req.Confirms(strings.TrimSpace(update.Message.Text)) {
		h.reply(ctx, b, chatID, fmt.Sprintf("Cancelled: %s.", req.Action))
		return true
	}

	switch req.Action {
	case confirm.ActionDeleteAccount:
		h.deleteAccount(ctx, b, chatID, req.TargetID)
	default:
		logger.Warn("unknown confirmed action", "action", string(req.Action), "user_id", userID)
	}
	return true
}

func (h *Handlers) deleteAccount(ctx context.Context, b *bot.Bot, chatID int64, owner string) {
	if err := h.svc.DeleteUser(ctx, owner); err != nil {
		logger.Error("failed to delete account", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "account"))
		return
	}
	logger.Info("account deleted", "user_id", owner)
	h.reply(ctx, b, chatID, "Your account and collection have been deleted. Send /start to begin again.")
}
