package collection

import (
	"testing"

	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/store"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestEnsureUserIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.EnsureUser(f.ctx, &db.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	second, err := f.svc.EnsureUser(f.ctx, &db.User{ID: "u1", Email: "b@example.com"})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "a@example.com", second.Email)

	_, err = f.svc.EnsureUser(f.ctx, &db.User{ID: "  "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreatePuzzleDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	f.user("u1")

	p, err := f.svc.CreatePuzzle(f.ctx, "u1", PuzzleInput{Title: "  Hats  "}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "Hats", p.Title)
	require.Equal(t, db.MinDifficulty, p.Difficulty)

	tests := []struct {
		name string
		in   PuzzleInput
	}{
		{"empty title", PuzzleInput{Title: "   "}},
		{"difficulty too high", PuzzleInput{Title: "x", Difficulty: 6}},
		{"negative difficulty", PuzzleInput{Title: "x", Difficulty: -1}},
		{"broken document", PuzzleInput{Title: "x", Description: datatypes.JSON(`{"type":`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePuzzle(f.ctx, "u1", tt.in, nil, nil)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err = f.svc.CreatePuzzle(f.ctx, "ghost", PuzzleInput{Title: "x"}, nil, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePuzzleWithoutCategoriesGoesToSentinel(t *testing.T) {
	f := newFixture(t)
	f.user("u1")

	p1 := f.puzzle("u1", "One", nil, nil)
	p2 := f.puzzle("u1", "Two", []uint{}, nil)

	sentinel, err := f.svc.Orphans().EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []uint{sentinel.ID}, f.categoriesOf(p1.ID))
	require.Equal(t, []uint{sentinel.ID}, f.categoriesOf(p2.ID))
}

func TestCreatePuzzleWithForeignCategoryLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	f.user("u2")
	theirs := f.category("u2", "Logic")

	_, err := f.svc.CreatePuzzle(f.ctx, "u1", PuzzleInput{Title: "Sneaky"}, []uint{theirs.ID}, nil)
	require.ErrorIs(t, err, ErrValidation)
	require.EqualValues(t, 0, f.count(&db.Puzzle{}, ""))
	require.EqualValues(t, 0, f.count(&db.PuzzleCategory{}, ""))
}

func TestUpdatePuzzleReplacesEverything(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c1 := f.category("u1", "Logic")
	c2 := f.category("u1", "Geometry")
	a1 := f.approach("u1", "Parity")
	a2 := f.approach("u1", "Coloring")
	p := f.puzzle("u1", "Board", []uint{c1.ID}, []uint{a1.ID})

	source := "Dudeney"
	updated, err := f.svc.UpdatePuzzle(f.ctx, p.ID, PuzzleInput{
		Title:      "Mutilated board",
		Difficulty: 4,
		Solved:     true,
		Source:     &source,
		UserAnswer: datatypes.JSON(`{"type":"doc"}`),
	}, []uint{c2.ID}, []uint{a2.ID})
	require.NoError(t, err)
	require.Equal(t, "Mutilated board", updated.Title)

	got, err := f.svc.GetPuzzle(f.ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.Difficulty)
	require.True(t, got.Solved)
	require.Equal(t, "Dudeney", *got.Source)
	require.Equal(t, []uint{c2.ID}, got.CategoryIDs)
	require.Equal(t, []uint{a2.ID}, got.ApproachIDs)

	_, err = f.svc.UpdatePuzzle(f.ctx, p.ID, PuzzleInput{Title: "Mutilated board", Difficulty: 4}, nil, nil)
	require.NoError(t, err)
	got, err = f.svc.GetPuzzle(f.ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, got.ApproachIDs)
	require.Len(t, got.CategoryIDs, 1)
	require.NotEqual(t, c2.ID, got.CategoryIDs[0])
	f.requireEveryPuzzleCategorized()

	_, err = f.svc.UpdatePuzzle(f.ctx, p.ID, PuzzleInput{Title: "x"}, nil, nil)
	require.ErrorIs(t, err, ErrValidation, "difficulty 0 is only defaulted on create")
}

func TestAddCategoryToPuzzle(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c1 := f.category("u1", "Logic")
	c2 := f.category("u1", "Geometry")
	p := f.puzzle("u1", "Board", []uint{c1.ID}, nil)

	require.NoError(t, f.svc.AddCategoryToPuzzle(f.ctx, p.ID, c2.ID))
	require.NoError(t, f.svc.AddCategoryToPuzzle(f.ctx, p.ID, c2.ID))
	require.Equal(t, []uint{c1.ID, c2.ID}, f.categoriesOf(p.ID))

	require.ErrorIs(t, f.svc.AddCategoryToPuzzle(f.ctx, p.ID, 0), ErrValidation)
	require.ErrorIs(t, f.svc.AddCategoryToPuzzle(f.ctx, 999, c1.ID), ErrNotFound)
}

func TestCategoryNamesAreNormalized(t *testing.T) {
	f := newFixture(t)
	f.user("u1")

	composed := f.category("u1", "Caf\u00e9")
	require.Equal(t, "Caf\u00e9", composed.Name)

	_, err := f.svc.CreateCategory(f.ctx, "u1", "  Cafe\u0301 ")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateCategory(f.ctx, "u1", " \t")
	require.ErrorIs(t, err, ErrValidation)

	other := f.category("u1", "Tea")
	_, err = f.svc.RenameCategory(f.ctx, other.ID, "Cafe\u0301")
	require.ErrorIs(t, err, ErrValidation)

	renamed, err := f.svc.RenameCategory(f.ctx, other.ID, " Green tea ")
	require.NoError(t, err)
	require.Equal(t, "Green tea", renamed.Name)
}

func TestListCategoriesCountsPuzzles(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	f.user("u2")
	c1 := f.category("u1", "Logic")
	c2 := f.category("u1", "Empty")
	f.puzzle("u1", "One", []uint{c1.ID}, nil)
	f.puzzle("u1", "Two", []uint{c1.ID}, nil)
	f.puzzle("u2", "Theirs", nil, nil)

	list, err := f.svc.ListCategories(f.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, c1.ID, list[0].ID)
	require.EqualValues(t, 2, list[0].PuzzleCount)
	require.Equal(t, c2.ID, list[1].ID)
	require.EqualValues(t, 0, list[1].PuzzleCount)
}

func TestHintsKeepCreationOrder(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	p := f.puzzle("u1", "Maze", nil, nil)

	first := f.hint(p.ID, "first")
	second := f.hint(p.ID, "second")
	third := f.hint(p.ID, "third")

	hints, err := f.svc.ListHints(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hints, 3)
	require.Equal(t, []uint{first.ID, second.ID, third.ID}, []uint{hints[0].ID, hints[1].ID, hints[2].ID})

	_, err = f.svc.AddHint(f.ctx, 404, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApproachPuzzleSetIsReplaced(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	f.user("u2")
	p1 := f.puzzle("u1", "One", nil, nil)
	p2 := f.puzzle("u1", "Two", nil, nil)
	foreign := f.puzzle("u2", "Theirs", nil, nil)

	a, err := f.svc.CreateApproach(f.ctx, "u1", ApproachInput{Title: "Invariants"}, []uint{p1.ID})
	require.NoError(t, err)

	_, err = f.svc.UpdateApproach(f.ctx, a.ID, ApproachInput{Title: "Monovariants"}, []uint{p2.ID, p2.ID})
	require.NoError(t, err)

	puzzles, err := f.svc.Links().PuzzlesFor(f.ctx, store.KindApproach, a.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{p2.ID}, puzzles)

	_, err = f.svc.UpdateApproach(f.ctx, a.ID, ApproachInput{Title: "Monovariants"}, []uint{foreign.ID})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateApproach(f.ctx, "u1", ApproachInput{Title: ""}, nil)
	require.ErrorIs(t, err, ErrValidation)
}

// A mixed sequence of creates, updates and deletes never leaves a puzzle
// without a category.
func TestEveryPuzzleKeepsACategory(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c1 := f.category("u1", "Logic")
	c2 := f.category("u1", "Geometry")
	c3 := f.category("u1", "Words")

	p1 := f.puzzle("u1", "One", []uint{c1.ID, c2.ID}, nil)
	p2 := f.puzzle("u1", "Two", []uint{c2.ID}, nil)
	p3 := f.puzzle("u1", "Three", []uint{c3.ID}, nil)
	f.requireEveryPuzzleCategorized()

	_, err := f.svc.DeleteCategory(f.ctx, c2.ID)
	require.NoError(t, err)
	f.requireEveryPuzzleCategorized()

	_, err = f.svc.UpdatePuzzle(f.ctx, p3.ID, PuzzleInput{Title: "Three", Difficulty: 2}, nil, nil)
	require.NoError(t, err)
	f.requireEveryPuzzleCategorized()

	_, err = f.svc.DeleteCategory(f.ctx, c1.ID)
	require.NoError(t, err)
	_, err = f.svc.DeleteCategory(f.ctx, c3.ID)
	require.NoError(t, err)
	f.requireEveryPuzzleCategorized()

	require.NoError(t, f.svc.DeletePuzzle(f.ctx, p2.ID))
	f.requireEveryPuzzleCategorized()

	sentinel, err := f.svc.Orphans().EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []uint{sentinel.ID}, f.categoriesOf(p1.ID))
}
