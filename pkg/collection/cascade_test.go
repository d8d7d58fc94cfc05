package collection

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/smith3v/puzzle-keeper/pkg/config"
	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestDeletePuzzleRemovesDependents(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	a := f.approach("u1", "Parity")
	doomed := f.puzzle("u1", "Doomed", []uint{c.ID}, []uint{a.ID})
	kept := f.puzzle("u1", "Kept", []uint{c.ID}, []uint{a.ID})
	f.hint(doomed.ID, "look at corners")
	f.hint(doomed.ID, "count squares")
	f.hint(kept.ID, "symmetry")

	require.NoError(t, f.svc.DeletePuzzle(f.ctx, doomed.ID))

	require.EqualValues(t, 0, f.count(&db.Puzzle{}, "id = ?", doomed.ID))
	require.EqualValues(t, 0, f.count(&db.Hint{}, "puzzle_id = ?", doomed.ID))
	require.EqualValues(t, 0, f.count(&db.PuzzleCategory{}, "puzzle_id = ?", doomed.ID))
	require.EqualValues(t, 0, f.count(&db.PuzzleApproach{}, "puzzle_id = ?", doomed.ID))

	require.EqualValues(t, 1, f.count(&db.Hint{}, "puzzle_id = ?", kept.ID))
	require.EqualValues(t, 1, f.count(&db.PuzzleCategory{}, "puzzle_id = ?", kept.ID))
	require.EqualValues(t, 1, f.count(&db.PuzzleApproach{}, "puzzle_id = ?", kept.ID))
}

func TestDeleteCategoryMovesSolePuzzlesToUncategorized(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	doomed := f.category("u1", "Doomed")
	other := f.category("u1", "Other")

	var sole []uint
	for _, title := range []string{"A", "B", "C"} {
		sole = append(sole, f.puzzle("u1", title, []uint{doomed.ID}, nil).ID)
	}
	shared := f.puzzle("u1", "Shared", []uint{doomed.ID, other.ID}, nil)

	res, err := f.svc.DeleteCategory(f.ctx, doomed.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, sole, res.PuzzleIDs)

	sentinel, err := f.st.GetCategory(f.ctx, res.SentinelID)
	require.NoError(t, err)
	require.Equal(t, "Uncategorized", sentinel.Name)
	for _, id := range sole {
		require.Equal(t, []uint{sentinel.ID}, f.categoriesOf(id))
	}
	require.Equal(t, []uint{other.ID}, f.categoriesOf(shared.ID))
	require.EqualValues(t, 0, f.count(&db.PuzzleCategory{}, "category_id = ?", doomed.ID))
	f.requireEveryPuzzleCategorized()
}

func TestSecondCategoryDeletionReusesUncategorized(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c1 := f.category("u1", "C1")
	c2 := f.category("u1", "C2")
	p1 := f.puzzle("u1", "P1", []uint{c1.ID}, nil)
	p2 := f.puzzle("u1", "P2", []uint{c2.ID}, nil)

	first, err := f.svc.DeleteCategory(f.ctx, c1.ID)
	require.NoError(t, err)
	second, err := f.svc.DeleteCategory(f.ctx, c2.ID)
	require.NoError(t, err)

	require.Equal(t, first.SentinelID, second.SentinelID)
	require.Equal(t, []uint{first.SentinelID}, f.categoriesOf(p1.ID))
	require.Equal(t, []uint{first.SentinelID}, f.categoriesOf(p2.ID))
	require.EqualValues(t, 1, f.count(&db.Category{}, "user_id = ? AND name = ?", "u1", "Uncategorized"))
}

func TestDeletingUncategorizedRecreatesIt(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	p := f.puzzle("u1", "Loose", nil, nil)
	before := f.categoriesOf(p.ID)
	require.Len(t, before, 1)

	res, err := f.svc.DeleteCategory(f.ctx, before[0])
	require.NoError(t, err)
	require.Equal(t, []uint{p.ID}, res.PuzzleIDs)
	require.Equal(t, []uint{res.SentinelID}, f.categoriesOf(p.ID))
	require.EqualValues(t, 1, f.count(&db.Category{}, "user_id = ? AND is_sentinel = ?", "u1", true))
}

func TestDeleteApproachLeavesPuzzles(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	a := f.approach("u1", "Parity")
	p := f.puzzle("u1", "Tiles", []uint{c.ID}, []uint{a.ID})

	require.NoError(t, f.svc.DeleteApproach(f.ctx, a.ID))

	require.EqualValues(t, 0, f.count(&db.Approach{}, "id = ?", a.ID))
	require.EqualValues(t, 0, f.count(&db.PuzzleApproach{}, ""))
	require.Equal(t, []uint{c.ID}, f.categoriesOf(p.ID))
}

func TestDeleteUserRemovesOnlyOwnedData(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"u1", "u2"} {
		f.user(id)
		c := f.category(id, "Logic")
		a := f.approach(id, "Parity")
		p := f.puzzle(id, "Knights", []uint{c.ID}, []uint{a.ID})
		f.puzzle(id, "Loose", nil, nil)
		f.hint(p.ID, "start in a corner")
	}

	require.NoError(t, f.svc.DeleteUser(f.ctx, "u1"))

	require.EqualValues(t, 0, f.count(&db.User{}, "id = ?", "u1"))
	require.EqualValues(t, 0, f.count(&db.Puzzle{}, "user_id = ?", "u1"))
	require.EqualValues(t, 0, f.count(&db.Category{}, "user_id = ?", "u1"))
	require.EqualValues(t, 0, f.count(&db.Approach{}, "user_id = ?", "u1"))

	require.EqualValues(t, 1, f.count(&db.User{}, ""))
	require.EqualValues(t, 2, f.count(&db.Puzzle{}, ""))
	require.EqualValues(t, 2, f.count(&db.Category{}, ""))
	require.EqualValues(t, 1, f.count(&db.Approach{}, ""))
	require.EqualValues(t, 1, f.count(&db.Hint{}, ""))
	require.EqualValues(t, 2, f.count(&db.PuzzleCategory{}, ""))
	require.EqualValues(t, 1, f.count(&db.PuzzleApproach{}, ""))
}

func TestCascadePrechecks(t *testing.T) {
	f := newFixture(t)
	c := f.svc.Cascade()

	require.ErrorIs(t, c.DeletePuzzle(f.ctx, 0), ErrValidation)
	require.ErrorIs(t, c.DeletePuzzle(f.ctx, 77), ErrNotFound)
	_, err := c.DeleteCategory(f.ctx, 77)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, c.DeleteApproach(f.ctx, 77), ErrNotFound)
	require.ErrorIs(t, c.DeleteUser(f.ctx, ""), ErrValidation)
	require.ErrorIs(t, c.DeleteUser(f.ctx, "ghost"), ErrNotFound)
}

func TestAtomicCascadeRollsBack(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	a := f.approach("u1", "Parity")
	p := f.puzzle("u1", "Knights", []uint{c.ID}, []uint{a.ID})
	f.hint(p.ID, "corners")

	cascade := NewCascade(&failingStore{Store: f.st, failOn: "DeleteHintsForPuzzles"}, "", true)
	err := cascade.DeletePuzzle(f.ctx, p.ID)
	require.ErrorIs(t, err, ErrPartialFailure)
	require.ErrorIs(t, err, errInjected)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, StepDeleteHints, pf.Step)
	require.Equal(t, []string{StepRemoveCategoryLinks, StepRemoveApproachLinks}, pf.Completed)
	require.Equal(t, []string{StepDeletePuzzle}, pf.Remaining)
	require.True(t, pf.RolledBack)
	require.NotEmpty(t, pf.OpID)

	require.Equal(t, []uint{c.ID}, f.categoriesOf(p.ID))
	require.EqualValues(t, 1, f.count(&db.PuzzleApproach{}, "puzzle_id = ?", p.ID))
	require.EqualValues(t, 1, f.count(&db.Hint{}, "puzzle_id = ?", p.ID))
}

func TestNonAtomicCascadeReportsAppliedSteps(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	a := f.approach("u1", "Parity")
	p := f.puzzle("u1", "Knights", []uint{c.ID}, []uint{a.ID})
	f.hint(p.ID, "corners")

	cascade := NewCascade(&failingStore{Store: f.st, failOn: "DeleteHintsForPuzzles"}, "", false)
	err := cascade.DeletePuzzle(f.ctx, p.ID)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	require.False(t, pf.RolledBack)
	require.Equal(t, StepDeleteHints, pf.Step)

	// Completed steps stay applied.
	require.Empty(t, f.categoriesOf(p.ID))
	require.EqualValues(t, 0, f.count(&db.PuzzleApproach{}, "puzzle_id = ?", p.ID))
	require.EqualValues(t, 1, f.count(&db.Hint{}, "puzzle_id = ?", p.ID))

	// Every step is safe to re-run, so a retry finishes the job.
	require.NoError(t, NewCascade(f.st, "", false).DeletePuzzle(f.ctx, p.ID))
	require.EqualValues(t, 0, f.count(&db.Puzzle{}, "id = ?", p.ID))
	require.EqualValues(t, 0, f.count(&db.Hint{}, ""))
}

func TestDeleteUserFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	a := f.approach("u1", "Parity")
	f.puzzle("u1", "Knights", []uint{c.ID}, []uint{a.ID})

	cascade := NewCascade(&failingStore{Store: f.st, failOn: "DeleteApproachesByOwner"}, "", true)
	err := cascade.DeleteUser(f.ctx, "u1")

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, StepDeleteApproaches, pf.Step)
	require.Equal(t, []string{StepDeletePuzzles, StepDeleteUser}, pf.Remaining)
	require.Len(t, pf.Completed, 5)

	require.EqualValues(t, 1, f.count(&db.User{}, ""))
	require.EqualValues(t, 1, f.count(&db.Category{}, ""))
	require.EqualValues(t, 1, f.count(&db.PuzzleCategory{}, ""))
	f.requireEveryPuzzleCategorized()
}

func TestDeleteCategoryFailingReassignmentRollsBack(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	p := f.puzzle("u1", "Knights", []uint{c.ID}, nil)

	cascade := NewCascade(&failingStore{Store: f.st, failOn: "CreateCategoryIfAbsent"}, "", true)
	_, err := cascade.DeleteCategory(f.ctx, c.ID)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, StepReassignOrphans, pf.Step)
	require.Empty(t, pf.Remaining)

	require.Equal(t, []uint{c.ID}, f.categoriesOf(p.ID))
}

func TestPartialFailureStepCount(t *testing.T) {
	stepFailure := &PartialFailure{
		Op:        "delete puzzle",
		EntityID:  "7",
		Step:      StepDeleteHints,
		Completed: []string{StepRemoveCategoryLinks, StepRemoveApproachLinks},
		Remaining: []string{StepDeletePuzzle},
		Err:       errors.New("boom"),
	}
	require.Contains(t, stepFailure.Error(), "failed after 2 of 4 steps")

	commitFailure := &PartialFailure{
		Op:        "delete puzzle",
		EntityID:  "7",
		Step:      StepCommit,
		Completed: []string{StepRemoveCategoryLinks, StepRemoveApproachLinks, StepDeleteHints, StepDeletePuzzle},
		Err:       errors.New("database is locked"),
	}
	require.Contains(t, commitFailure.Error(), "failed after 4 of 4 steps")
}

func TestCascadeQueriesCarryOpID(t *testing.T) {
	gdb, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "puzzles.db"),
	}, "info")
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc := NewService(store.New(gdb), Options{Atomic: true})
	ctx := context.Background()
	_, err = svc.EnsureUser(ctx, &db.User{ID: "u1"})
	require.NoError(t, err)
	p, err := svc.CreatePuzzle(ctx, "u1", PuzzleInput{Title: "Hats"}, nil, nil)
	require.NoError(t, err)
	_, err = svc.AddHint(ctx, p.ID, []byte(`{"text":"count"}`))
	require.NoError(t, err)

	originalLogger := logger.Logger
	t.Cleanup(func() {
		logger.Logger = originalLogger
		logger.SetLogLevel(logger.INFO)
	})
	var buf bytes.Buffer
	logger.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	logger.SetLogLevel(logger.INFO)

	require.NoError(t, svc.DeletePuzzle(ctx, p.ID))

	var opID string
	lines := strings.Split(buf.String(), "\n")
	for _, line := range lines {
		if strings.Contains(line, "cascade completed") {
			m := regexp.MustCompile(`op_id=(\S+)`).FindStringSubmatch(line)
			require.NotNil(t, m, line)
			opID = m[1]
		}
	}
	require.NotEmpty(t, opID)

	var tagged bool
	for _, line := range lines {
		if strings.Contains(line, "gorm query") && strings.Contains(line, "hints") && strings.Contains(line, "op_id="+opID) {
			tagged = true
		}
	}
	require.True(t, tagged, "no hint query tagged with %s in:\n%s", opID, buf.String())
}
