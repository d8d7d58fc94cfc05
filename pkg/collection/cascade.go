package collection

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
)

// Step names reported in PartialFailure and logs.
const (
	StepCollectPuzzles      = "collect puzzle ids"
	StepRemoveCategoryLinks = "remove category links"
	StepRemoveApproachLinks = "remove approach links"
	StepDeleteHints         = "delete hints"
	StepDeletePuzzle        = "delete puzzle"
	StepDeletePuzzles       = "delete puzzles"
	StepDeleteCategory      = "delete category"
	StepDeleteCategories    = "delete categories"
	StepReassignOrphans     = "reassign orphans"
	StepDeleteApproach      = "delete approach"
	StepDeleteApproaches    = "delete approaches"
	StepDeleteUser          = "delete user"
)

// StepCommit is reported when every step ran but the transaction did not
// commit.
const StepCommit = "commit"

type step struct {
	name string
	run  func(ctx context.Context, tx store.Store) error
}

// Cascade deletes root entities together with everything that depends on
// them. Each delete is a fixed sequence of steps that never removes a row
// before the rows referring to it.
//
// With atomic set the whole sequence runs in one transaction. Without it each
// step commits on its own and a failure leaves earlier steps applied; the
// PartialFailure and its log line are then the reconciliation record.
type Cascade struct {
	store        store.Store
	sentinelName string
	atomic       bool
}

func NewCascade(st store.Store, sentinelName string, atomic bool) *Cascade {
	return &Cascade{store: st, sentinelName: sentinelName, atomic: atomic}
}

// DeletePuzzle removes the puzzle, its hints and both kinds of join rows.
func (c *Cascade) DeletePuzzle(ctx context.Context, id uint) error {
	if id == 0 {
		return invalid("puzzle id", "must be a positive integer")
	}
	puzzle, err := c.store.GetPuzzle(ctx, id)
	if err != nil {
		return err
	}
	if puzzle == nil {
		return notFound("puzzle", id)
	}

	ids := []uint{id}
	return c.run(ctx, "delete puzzle", idString(id), []step{
		{StepRemoveCategoryLinks, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteLinksForPuzzles(ctx, store.KindCategory, ids)
			return err
		}},
		{StepRemoveApproachLinks, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteLinksForPuzzles(ctx, store.KindApproach, ids)
			return err
		}},
		{StepDeleteHints, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteHintsForPuzzles(ctx, ids)
			return err
		}},
		{StepDeletePuzzle, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeletePuzzles(ctx, ids)
			return err
		}},
	})
}

// DeleteCategory removes the category and its join rows, then moves any
// puzzle left without a category into the owner's sentinel category.
func (c *Cascade) DeleteCategory(ctx context.Context, id uint) (ReassignResult, error) {
	if id == 0 {
		return ReassignResult{}, invalid("category id", "must be a positive integer")
	}
	category, err := c.store.GetCategory(ctx, id)
	if err != nil {
		return ReassignResult{}, err
	}
	if category == nil {
		return ReassignResult{}, notFound("category", id)
	}

	var result ReassignResult
	err = c.run(ctx, "delete category", idString(id), []step{
		{StepRemoveCategoryLinks, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteLinksForCounterpart(ctx, store.KindCategory, id)
			return err
		}},
		{StepDeleteCategory, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteCategory(ctx, id)
			return err
		}},
		{StepReassignOrphans, func(ctx context.Context, tx store.Store) error {
			var err error
			result, err = NewOrphans(tx, c.sentinelName).Reassign(ctx, category.UserID)
			return err
		}},
	})
	if err != nil {
		return ReassignResult{}, err
	}
	return result, nil
}

// DeleteApproach removes the approach and its join rows. Approaches are
// optional for a puzzle so nothing is reassigned.
func (c *Cascade) DeleteApproach(ctx context.Context, id uint) error {
	if id == 0 {
		return invalid("approach id", "must be a positive integer")
	}
	approach, err := c.store.GetApproach(ctx, id)
	if err != nil {
		return err
	}
	if approach == nil {
		return notFound("approach", id)
	}

	return c.run(ctx, "delete approach", idString(id), []step{
		{StepRemoveApproachLinks, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteLinksForCounterpart(ctx, store.KindApproach, id)
			return err
		}},
		{StepDeleteApproach, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteApproach(ctx, id)
			return err
		}},
	})
}

// DeleteUser removes the account and everything it owns.
func (c *Cascade) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return invalid("user id", "must not be empty")
	}
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return notFound("user", userID)
	}

	var puzzleIDs []uint
	return c.run(ctx, "delete user", userID, []step{
		{StepCollectPuzzles, func(ctx context.Context, tx store.Store) error {
			var err error
			puzzleIDs, err = tx.ListPuzzleIDs(ctx, userID)
			return err
		}},
		{StepRemoveCategoryLinks, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteLinksForPuzzles(ctx, store.KindCategory, puzzleIDs)
			return err
		}},
		{StepDeleteHints, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteHintsForPuzzles(ctx, puzzleIDs)
			return err
		}},
		{StepDeleteCategories, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteCategoriesByOwner(ctx, userID)
			return err
		}},
		{StepRemoveApproachLinks, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteLinksForPuzzles(ctx, store.KindApproach, puzzleIDs)
			return err
		}},
		{StepDeleteApproaches, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteApproachesByOwner(ctx, userID)
			return err
		}},
		{StepDeletePuzzles, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeletePuzzles(ctx, puzzleIDs)
			return err
		}},
		{StepDeleteUser, func(ctx context.Context, tx store.Store) error {
			_, err := tx.DeleteUser(ctx, userID)
			return err
		}},
	})
}

func (c *Cascade) run(ctx context.Context, op, entityID string, steps []step) error {
	opID := uuid.NewString()
	ctx = logger.ContextWithOpID(ctx, opID)
	log := logger.With("op_id", opID, "op", op, "entity_id", entityID)
	completed := make([]string, 0, len(steps))

	exec := func(st store.Store) error {
		for i, s := range steps {
			if err := s.run(ctx, st); err != nil {
				remaining := make([]string, 0, len(steps)-i-1)
				for _, rest := range steps[i+1:] {
					remaining = append(remaining, rest.name)
				}
				return &PartialFailure{
					Op:        op,
					OpID:      opID,
					EntityID:  entityID,
					Step:      s.name,
					Completed: append([]string(nil), completed...),
					Remaining: remaining,
					Err:       err,
				}
			}
			completed = append(completed, s.name)
			log.Debug("cascade step applied", "step", s.name)
		}
		return nil
	}

	var err error
	if c.atomic {
		err = c.store.Transaction(ctx, exec)
	} else {
		err = exec(c.store)
	}
	if err == nil {
		log.Info("cascade completed", "steps", len(steps))
		return nil
	}

	var pf *PartialFailure
	if !errors.As(err, &pf) {
		// Commit failure after every step ran.
		pf = &PartialFailure{Op: op, OpID: opID, EntityID: entityID, Step: StepCommit, Completed: completed, Err: err}
	}
	pf.RolledBack = c.atomic
	log.Error("cascade aborted",
		"step", pf.Step,
		"completed", pf.Completed,
		"remaining", pf.Remaining,
		"rolled_back", pf.RolledBack,
		"error", pf.Err,
	)
	return pf
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
