package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/bot/confirm"
	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/importexport"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
)

const defaultConfirmMinutes = 5

type Options struct {
	// Token is used to build file download URLs.
	Token          string
	ConfirmMinutes int
}

// Handlers holds the bot command handlers. Every handler resolves the
// sender to a collection owner and only touches that owner's records.
type Handlers struct {
	svc           *collection.Service
	exporter      *importexport.Exporter
	importer      *importexport.Importer
	confirmations *confirm.Manager
	client        *http.Client
	token         string
	confirmWindow time.Duration
	now           func() time.Time
}

func New(svc *collection.Service, confirmations *confirm.Manager, opts Options) *Handlers {
	minutes := opts.ConfirmMinutes
	if minutes <= 0 {
		minutes = defaultConfirmMinutes
	}
	if confirmations == nil {
		confirmations = confirm.NewManager(nil)
	}
	return &Handlers{
		svc:           svc,
		exporter:      importexport.NewExporter(svc.Store()),
		importer:      importexport.NewImporter(svc.Store(), svc.SentinelName()),
		confirmations: confirmations,
		client:        http.DefaultClient,
		token:         opts.Token,
		confirmWindow: time.Duration(minutes) * time.Minute,
		now:           time.Now,
	}
}

func (h *Handlers) Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, h.HandleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/categories", bot.MatchTypeExact, h.HandleCategories)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/puzzles", bot.MatchTypeExact, h.HandlePuzzles)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/newcategory", bot.MatchTypePrefix, h.HandleNewCategory)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/newpuzzle", bot.MatchTypePrefix, h.HandleNewPuzzle)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/addcategory", bot.MatchTypePrefix, h.HandleAddCategory)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/delpuzzle", bot.MatchTypePrefix, h.HandleDeletePuzzle)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/delcategory", bot.MatchTypePrefix, h.HandleDeleteCategory)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/delapproach", bot.MatchTypePrefix, h.HandleDeleteApproach)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/export", bot.MatchTypeExact, h.HandleExport)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/deleteaccount", bot.MatchTypeExact, h.HandleDeleteAccount)
}

// StartSweeper drops expired confirmation windows until ctx is done.
func (h *Handlers) StartSweeper(ctx context.Context) {
	h.confirmations.StartSweeper(ctx)
}

func validMessage(update *models.Update) bool {
	return update != nil && update.Message != nil && update.Message.From != nil && update.Message.Chat.ID != 0
}

func (h *Handlers) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func userKey(telegramID int64) string {
	return strconv.FormatInt(telegramID, 10)
}

// owner registers the sender on first contact and returns the collection
// owner id.
func (h *Handlers) owner(ctx context.Context, from *models.User) (string, error) {
	user, err := h.svc.EnsureUser(ctx, &db.User{
		ID:          userKey(from.ID),
		DisplayName: formatDisplayName(from),
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func formatDisplayName(user *models.User) string {
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name == "" && user.Username != "" {
		name = "@" + user.Username
	}
	return name
}

func commandArg(text, command string) string {
	return strings.TrimSpace(strings.TrimPrefix(text, command))
}

var errBadID = errors.New("invalid id")

// parseID accepts positive decimal integers only.
func parseID(arg string) (uint, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || n <= 0 {
		return 0, errBadID
	}
	return uint(n), nil
}

// errorReply maps engine failures to user-facing text. Validation failures
// are the caller's fault, missing or foreign ids read as not found, and
// everything else is reported as an internal failure.
func errorReply(err error, entity string) string {
	var ve *collection.ValidationError
	switch {
	case errors.Is(err, errBadID):
		return "Invalid id. Please send a positive number."
	case errors.As(err, &ve):
		return "Invalid request: " + ve.Error() + "."
	case errors.Is(err, collection.ErrNotFound):
		return strings.ToUpper(entity[:1]) + entity[1:] + " not found."
	case errors.Is(err, collection.ErrPartialFailure):
		return "The operation stopped partway and has been logged. Please try again later."
	default:
		return "Something went wrong. Please try again later."
	}
}
