package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/importexport"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
)

// maxRejectionLines caps how many skipped records are listed in the reply.
const maxRejectionLines = 5

func (h *Handlers) handleDocumentImport(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if update.Message.From == nil {
		logger.Error("document without sender in DefaultHandler")
		return
	}
	document := update.Message.Document
	logger.Info("uploading file", "file_name", document.FileName, "user_id", update.Message.From.ID)

	if !strings.HasSuffix(strings.ToLower(document.FileName), ".json") {
		h.reply(ctx, b, chatID, "The uploaded file is not a JSON export. Please upload a file produced by /export.")
		return
	}
	owner, err := h.owner(ctx, update.Message.From)
	if err != nil {
		h.reply(ctx, b, chatID, errorReply(err, "user"))
		return
	}

	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: document.FileID})
	if err != nil {
		logger.Error("failed to get file", "error", err)
		h.reply(ctx, b, chatID, "Failed to download the file. Please try again.")
		return
	}

	fileURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", h.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		logger.Error("failed to build download request", "error", err)
		h.reply(ctx, b, chatID, "Failed to download the file. Please try again.")
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		logger.Error("failed to open file", "error", err)
		h.reply(ctx, b, chatID, "Failed to open the file. Please try again.")
		return
	}
	defer resp.Body.Close()

	doc, err := importexport.Decode(resp.Body)
	if err != nil {
		logger.Warn("failed to decode import document", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, "Failed to read the file. Please ensure it is an export produced by /export.")
		return
	}

	res, err := h.importer.ImportAll(ctx, owner, doc)
	if err != nil && !errors.Is(err, collection.ErrPartialFailure) {
		logger.Error("failed to import collection", "user_id", owner, "error", err)
		h.reply(ctx, b, chatID, "Failed to import your collection. Nothing was changed. Please try again later.")
		return
	}
	h.reply(ctx, b, chatID, importSummary(res, h.svc.SentinelLabel(ctx, res.SentinelID)))
}

func importSummary(res *importexport.Result, sentinel string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Imported %d puzzles, %d new categories (%d merged), %d approaches and %d hints.",
		res.Puzzles, res.Categories, res.CategoriesMerged, res.Approaches, res.Hints)
	if n := len(res.Reassigned); n > 0 {
		fmt.Fprintf(&sb, "\n%d puzzle(s) had no category and were filed under %s.", n, sentinel)
	}
	if len(res.Rejected) == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\nSkipped %d record(s):", len(res.Rejected))
	for i, r := range res.Rejected {
		if i == maxRejectionLines {
			fmt.Fprintf(&sb, "\n... and %d more", len(res.Rejected)-maxRejectionLines)
			break
		}
		fmt.Fprintf(&sb, "\n- %s %d: %s", r.Record, r.ID, r.Reason)
	}
	return sb.String()
}
