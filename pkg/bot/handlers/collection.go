package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
)

func (h *Handlers) HandleCategories(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleCategories")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	categories, err := h.svc.ListCategories(ctx, owner)
	if err != nil {
		logger.Error("failed to list categories", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "category"))
		return
	}
	if len(categories) == 0 {
		h.reply(ctx, b, chatID, "You have no categories yet. Create one with /newcategory <name>.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&sb, "#%d %s (%d)", c.ID, c.Name, c.PuzzleCount)
		if c.IsSentinel {
			sb.WriteString(" [default]")
		}
		sb.WriteString("\n")
	}
	h.reply(ctx, b, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handlers) HandlePuzzles(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandlePuzzles")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	puzzles, err := h.svc.ListPuzzles(ctx, owner)
	if err != nil {
		logger.Error("failed to list puzzles", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "puzzle"))
		return
	}
	if len(puzzles) == 0 {
		h.reply(ctx, b, chatID, "You have no puzzles yet. Add one with /newpuzzle <title>.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your puzzles:\n")
	for _, p := range puzzles {
		fmt.Fprintf(&sb, "#%d %s (difficulty %d)", p.ID, p.Title, p.Difficulty)
		if p.Solved {
			sb.WriteString(" solved")
		}
		if p.Favorite {
			sb.WriteString(" *")
		}
		sb.WriteString("\n")
	}
	h.reply(ctx, b, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handlers) HandleNewCategory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleNewCategory")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	name := commandArg(update.Message.Text, "/newcategory")
	if name == "" {
		h.reply(ctx, b, chatID, "Usage: /newcategory <name>")
		return
	}
	category, err := h.svc.CreateCategory(ctx, owner, name)
	if err != nil {
		logger.Warn("failed to create category", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "category"))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("Created category #%d %s.", category.ID, category.Name))
}

func (h *Handlers) HandleNewPuzzle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleNewPuzzle")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	title := commandArg(update.Message.Text, "/newpuzzle")
	if title == "" {
		h.reply(ctx, b, chatID, "Usage: /newpuzzle <title>")
		return
	}
	puzzle, err := h.svc.CreatePuzzle(ctx, owner, collection.PuzzleInput{Title: title}, nil, nil)
	if err != nil {
		logger.Warn("failed to create puzzle", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "puzzle"))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("Added puzzle #%d %s.", puzzle.ID, puzzle.Title))
}

func (h *Handlers) HandleAddCategory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleAddCategory")
		return
	}
	chatID := update.Message.Chat.ID
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}
	args := strings.Fields(commandArg(update.Message.Text, "/addcategory"))
	if len(args) != 2 {
		h.reply(ctx, b, chatID, "Usage: /addcategory <puzzle id> <category id>")
		return
	}
	puzzleID, err := parseID(args[0])
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "puzzle"))
		return
	}
	categoryID, err := parseID(args[1])
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "category"))
		return
	}
	if err := h.checkOwner(ctx, owner, store.KindCategory, categoryID); err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "category"))
		return
	}
	if err := h.checkPuzzleOwner(ctx, owner, puzzleID); err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "puzzle"))
		return
	}
	if err := h.svc.AddCategoryToPuzzle(ctx, puzzleID, categoryID); err != nil {
		logger.Error("failed to add category to puzzle", "user_id", owner, "puzzle_id", puzzleID, "category_id", categoryID, "error", err)
		h.reply(ctx, b, chatID, errorReply(err, "puzzle"))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("Puzzle #%d is now also in category #%d.", puzzleID, categoryID))
}

// checkPuzzleOwner reports a puzzle owned by someone else as not found.
func (h *Handlers) checkPuzzleOwner(ctx context.Context, owner string, id uint) error {
	puzzle, err := h.svc.GetPuzzle(ctx, id)
	if err != nil {
		return err
	}
	if puzzle.UserID != owner {
		return &collection.NotFoundError{Entity: "puzzle", ID: id}
	}
	return nil
}

// checkOwner does the same for categories and approaches.
func (h *Handlers) checkOwner(ctx context.Context, owner string, kind store.Kind, id uint) error {
	var userID string
	switch kind {
	case store.KindCategory:
		category, err := h.svc.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		userID = category.UserID
	case store.KindApproach:
		approach, err := h.svc.GetApproach(ctx, id)
		if err != nil {
			return err
		}
		userID = approach.UserID
	}
	if userID != owner {
		return &collection.NotFoundError{Entity: kind.String(), ID: id}
	}
	return nil
}
