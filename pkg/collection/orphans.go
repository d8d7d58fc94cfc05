package collection

import (
	"context"
	"fmt"

	"github.com/smith3v/puzzle-keeper/pkg/config"
	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
)

// Orphans keeps every puzzle in at least one category by moving puzzles
// with no category links into the owner's sentinel category.
type Orphans struct {
	store store.Store
	name  string
}

func NewOrphans(st store.Store, sentinelName string) *Orphans {
	if sentinelName == "" {
		sentinelName = config.DefaultUncategorizedName
	}
	return &Orphans{store: st, name: sentinelName}
}

type ReassignResult struct {
	SentinelID uint
	PuzzleIDs  []uint
}

// EnsureUncategorized returns the owner's sentinel category, creating it on
// first use. The sentinel is found by its flag, so renaming it does not
// produce a second one. A plain category that already carries the sentinel
// name is adopted instead of duplicated.
func (o *Orphans) EnsureUncategorized(ctx context.Context, userID string) (*db.Category, error) {
	sentinel, err := o.store.FindSentinelCategory(ctx, userID)
	if err != nil || sentinel != nil {
		return sentinel, err
	}

	existing, err := o.store.FindCategoryByName(ctx, userID, o.name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := o.store.MarkSentinel(ctx, existing.ID); err != nil {
			return nil, err
		}
		existing.IsSentinel = true
		return existing, nil
	}

	candidate := &db.Category{UserID: userID, Name: o.name, IsSentinel: true}
	created, err := o.store.CreateCategoryIfAbsent(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Debug("created sentinel category", "user_id", userID, "category_id", candidate.ID)
		return candidate, nil
	}

	// Lost a race with a concurrent creator.
	winner, err := o.store.FindCategoryByName(ctx, userID, o.name)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, fmt.Errorf("sentinel category for %s vanished after conflict", userID)
	}
	return winner, nil
}

// Reassign links every category-less puzzle of userID to the sentinel. The
// sentinel is only created when there is at least one orphan.
func (o *Orphans) Reassign(ctx context.Context, userID string) (ReassignResult, error) {
	orphans, err := o.store.ListUnlinkedPuzzleIDs(ctx, store.KindCategory, userID)
	if err != nil {
		return ReassignResult{}, err
	}
	if len(orphans) == 0 {
		return ReassignResult{PuzzleIDs: orphans}, nil
	}

	sentinel, err := o.EnsureUncategorized(ctx, userID)
	if err != nil {
		return ReassignResult{}, err
	}
	links := NewLinks(o.store)
	for _, puzzleID := range orphans {
		if err := links.AddLinks(ctx, store.KindCategory, puzzleID, []uint{sentinel.ID}); err != nil {
			return ReassignResult{}, err
		}
	}
	logger.Info("reassigned orphaned puzzles", "user_id", userID, "category_id", sentinel.ID, "count", len(orphans))
	return ReassignResult{SentinelID: sentinel.ID, PuzzleIDs: orphans}, nil
}
