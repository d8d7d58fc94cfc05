package collection

import (
	"context"
	"testing"

	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestEnsureUncategorizedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	o := NewOrphans(f.st, "")

	first, err := o.EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Uncategorized", first.Name)
	require.True(t, first.IsSentinel)

	second, err := o.EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.EqualValues(t, 1, f.count(&db.Category{}, "user_id = ?", "u1"))
}

func TestEnsureUncategorizedAdoptsCategoryWithSentinelName(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	plain := f.category("u1", "Uncategorized")
	require.False(t, plain.IsSentinel)

	got, err := NewOrphans(f.st, "").EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, plain.ID, got.ID)

	stored, err := f.st.GetCategory(f.ctx, plain.ID)
	require.NoError(t, err)
	require.True(t, stored.IsSentinel)
}

func TestRenamedSentinelIsReused(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c1 := f.category("u1", "Logic")
	c2 := f.category("u1", "Geometry")
	p1 := f.puzzle("u1", "One", []uint{c1.ID}, nil)
	p2 := f.puzzle("u1", "Two", []uint{c2.ID}, nil)

	first, err := f.svc.DeleteCategory(f.ctx, c1.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{p1.ID}, first.PuzzleIDs)

	_, err = f.svc.RenameCategory(f.ctx, first.SentinelID, "Inbox")
	require.NoError(t, err)

	second, err := f.svc.DeleteCategory(f.ctx, c2.ID)
	require.NoError(t, err)
	require.Equal(t, first.SentinelID, second.SentinelID)
	require.Equal(t, []uint{first.SentinelID}, f.categoriesOf(p2.ID))
	require.EqualValues(t, 1, f.count(&db.Category{}, "user_id = ?", "u1"))
}

func TestReassignWithoutOrphansCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	c := f.category("u1", "Logic")
	f.puzzle("u1", "One", []uint{c.ID}, nil)

	res, err := NewOrphans(f.st, "").Reassign(f.ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, res.SentinelID)
	require.Empty(t, res.PuzzleIDs)
	require.EqualValues(t, 0, f.count(&db.Category{}, "is_sentinel = ?", true))
}

func TestReassignUsesConfiguredName(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	p := f.puzzle("u1", "Loose", []uint{f.category("u1", "Logic").ID}, nil)
	_, err := f.st.DeleteLinksForPuzzles(f.ctx, store.KindCategory, []uint{p.ID})
	require.NoError(t, err)

	res, err := NewOrphans(f.st, "Unsorted").Reassign(f.ctx, "u1")
	require.NoError(t, err)

	sentinel, err := f.st.GetCategory(f.ctx, res.SentinelID)
	require.NoError(t, err)
	require.Equal(t, "Unsorted", sentinel.Name)
	require.Equal(t, []uint{sentinel.ID}, f.categoriesOf(p.ID))
}

// racingStore hides the sentinel from the lookups that run before the insert,
// as if another request created it in between.
type racingStore struct {
	store.Store
	hidden int
}

func (s *racingStore) FindSentinelCategory(context.Context, string) (*db.Category, error) {
	return nil, nil
}

func (s *racingStore) FindCategoryByName(ctx context.Context, userID, name string) (*db.Category, error) {
	if s.hidden > 0 {
		s.hidden--
		return nil, nil
	}
	return s.Store.FindCategoryByName(ctx, userID, name)
}

func TestEnsureUncategorizedConvergesAfterLostRace(t *testing.T) {
	f := newFixture(t)
	f.user("u1")
	winner, err := NewOrphans(f.st, "").EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)

	got, err := NewOrphans(&racingStore{Store: f.st, hidden: 1}, "").EnsureUncategorized(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, winner.ID, got.ID)
	require.EqualValues(t, 1, f.count(&db.Category{}, "user_id = ?", "u1"))
}
