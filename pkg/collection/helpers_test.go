package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/internal/testutil"
	"github.com/smith3v/puzzle-keeper/pkg/store"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB
	st  *store.SQLStore
	svc *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.SetupTestDB(t)
	st := store.New(gdb)
	return &fixture{
		t:   t,
		ctx: context.Background(),
		db:  gdb,
		st:  st,
		svc: NewService(st, Options{Atomic: true}),
	}
}

func (f *fixture) user(id string) *db.User {
	f.t.Helper()
	u, err := f.svc.EnsureUser(f.ctx, &db.User{ID: id, Email: id + "@example.com"})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) category(userID, name string) *db.Category {
	f.t.Helper()
	c, err := f.svc.CreateCategory(f.ctx, userID, name)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) approach(userID, title string) *db.Approach {
	f.t.Helper()
	a, err := f.svc.CreateApproach(f.ctx, userID, ApproachInput{Title: title}, nil)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) puzzle(userID, title string, categoryIDs, approachIDs []uint) *db.Puzzle {
	f.t.Helper()
	p, err := f.svc.CreatePuzzle(f.ctx, userID, PuzzleInput{Title: title, Difficulty: 3}, categoryIDs, approachIDs)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) hint(puzzleID uint, text string) *db.Hint {
	f.t.Helper()
	h, err := f.svc.AddHint(f.ctx, puzzleID, datatypes.JSON(`{"text":"`+text+`"}`))
	require.NoError(f.t, err)
	return h
}

func (f *fixture) count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}

func (f *fixture) categoriesOf(puzzleID uint) []uint {
	f.t.Helper()
	ids, err := f.st.CounterpartIDs(f.ctx, store.KindCategory, puzzleID)
	require.NoError(f.t, err)
	return ids
}

// requireEveryPuzzleCategorized checks that no puzzle in the database is
// without a category link.
func (f *fixture) requireEveryPuzzleCategorized() {
	f.t.Helper()
	var puzzles []db.Puzzle
	require.NoError(f.t, f.db.Find(&puzzles).Error)
	for _, p := range puzzles {
		require.NotEmpty(f.t, f.categoriesOf(p.ID), "puzzle %d (%s) has no category", p.ID, p.Title)
	}
}

var errInjected = errors.New("injected failure")

// failingStore fails the named store method and passes everything else
// through. Transactions hand out wrapped stores so the failure also fires
// inside them.
type failingStore struct {
	store.Store
	failOn string
}

func (s *failingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(&failingStore{Store: tx, failOn: s.failOn})
	})
}

func (s *failingStore) DeleteHintsForPuzzles(ctx context.Context, ids []uint) (int64, error) {
	if s.failOn == "DeleteHintsForPuzzles" {
		return 0, errInjected
	}
	return s.Store.DeleteHintsForPuzzles(ctx, ids)
}

func (s *failingStore) DeleteApproachesByOwner(ctx context.Context, userID string) (int64, error) {
	if s.failOn == "DeleteApproachesByOwner" {
		return 0, errInjected
	}
	return s.Store.DeleteApproachesByOwner(ctx, userID)
}

func (s *failingStore) InsertLinks(ctx context.Context, kind store.Kind, links []store.Link) error {
	if s.failOn == "InsertLinks" {
		return errInjected
	}
	return s.Store.InsertLinks(ctx, kind, links)
}

func (s *failingStore) CreateCategoryIfAbsent(ctx context.Context, c *db.Category) (bool, error) {
	if s.failOn == "CreateCategoryIfAbsent" {
		return false, errInjected
	}
	return s.Store.CreateCategoryIfAbsent(ctx, c)
}
