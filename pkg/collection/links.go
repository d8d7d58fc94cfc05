package collection

import (
	"context"

	"github.com/smith3v/puzzle-keeper/pkg/store"
)

// Side selects which end of a join relation an id refers to.
type Side int

const (
	SidePuzzle Side = iota + 1
	SideCounterpart
)

// Links maintains the puzzle↔category and puzzle↔approach join rows.
//
// Updates are full replacements, not patches: ReplaceLinks discards the
// puzzle's current set for the kind and writes the given one.
type Links struct {
	store store.Store
}

func NewLinks(st store.Store) *Links {
	return &Links{store: st}
}

// ReplaceLinks makes counterpartIDs the complete link set of the puzzle for
// kind. Duplicates collapse and an empty set clears the relation. Either all
// of it applies or none of it does.
func (l *Links) ReplaceLinks(ctx context.Context, kind store.Kind, puzzleID uint, counterpartIDs []uint) error {
	return l.store.Transaction(ctx, func(tx store.Store) error {
		wanted, err := checkCounterparts(ctx, tx, kind, puzzleID, counterpartIDs)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteLinksForPuzzles(ctx, kind, []uint{puzzleID}); err != nil {
			return err
		}
		return tx.InsertLinks(ctx, kind, pairs(puzzleID, wanted))
	})
}

// AddLinks inserts links without clearing existing ones. Pairs that already
// exist are left alone.
func (l *Links) AddLinks(ctx context.Context, kind store.Kind, puzzleID uint, counterpartIDs []uint) error {
	wanted, err := checkCounterparts(ctx, l.store, kind, puzzleID, counterpartIDs)
	if err != nil {
		return err
	}
	return l.store.InsertLinks(ctx, kind, pairs(puzzleID, wanted))
}

// RemoveAllLinks deletes every row of kind that mentions id on the given side.
func (l *Links) RemoveAllLinks(ctx context.Context, kind store.Kind, side Side, id uint) (int64, error) {
	if !kind.Valid() {
		return 0, invalid("kind", "unknown link kind %s", kind)
	}
	if id == 0 {
		return 0, invalid("id", "must be a positive integer")
	}
	switch side {
	case SidePuzzle:
		return l.store.DeleteLinksForPuzzles(ctx, kind, []uint{id})
	case SideCounterpart:
		return l.store.DeleteLinksForCounterpart(ctx, kind, id)
	default:
		return 0, invalid("side", "unknown side %d", side)
	}
}

func (l *Links) RemoveLinksForPuzzles(ctx context.Context, kind store.Kind, puzzleIDs []uint) (int64, error) {
	if !kind.Valid() {
		return 0, invalid("kind", "unknown link kind %s", kind)
	}
	return l.store.DeleteLinksForPuzzles(ctx, kind, puzzleIDs)
}

func (l *Links) LinksFor(ctx context.Context, kind store.Kind, puzzleID uint) ([]store.Link, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "unknown link kind %s", kind)
	}
	return l.store.ListLinks(ctx, kind, []uint{puzzleID})
}

func (l *Links) CounterpartsFor(ctx context.Context, kind store.Kind, puzzleID uint) ([]uint, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "unknown link kind %s", kind)
	}
	return l.store.CounterpartIDs(ctx, kind, puzzleID)
}

func (l *Links) PuzzlesFor(ctx context.Context, kind store.Kind, counterpartID uint) ([]uint, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "unknown link kind %s", kind)
	}
	return l.store.PuzzleIDsFor(ctx, kind, counterpartID)
}

// checkCounterparts resolves the puzzle and rejects ids that are unknown or
// owned by someone else. It returns the ids deduplicated in input order.
func checkCounterparts(ctx context.Context, st store.Store, kind store.Kind, puzzleID uint, ids []uint) ([]uint, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "unknown link kind %s", kind)
	}
	if puzzleID == 0 {
		return nil, invalid("puzzle id", "must be a positive integer")
	}
	puzzle, err := st.GetPuzzle(ctx, puzzleID)
	if err != nil {
		return nil, err
	}
	if puzzle == nil {
		return nil, notFound("puzzle", puzzleID)
	}

	unique := dedupe(ids)
	for _, id := range unique {
		if id == 0 {
			return nil, invalid(kind.String()+" id", "must be a positive integer")
		}
	}
	if len(unique) == 0 {
		return unique, nil
	}

	owned, err := st.OwnedCounterpartIDs(ctx, kind, puzzle.UserID, unique)
	if err != nil {
		return nil, err
	}
	if missing := difference(unique, owned); len(missing) > 0 {
		return nil, invalid(kind.String()+" ids", "unknown %s ids %v", kind, missing)
	}
	return unique, nil
}

func pairs(puzzleID uint, counterpartIDs []uint) []store.Link {
	links := make([]store.Link, 0, len(counterpartIDs))
	for _, id := range counterpartIDs {
		links = append(links, store.Link{PuzzleID: puzzleID, CounterpartID: id})
	}
	return links
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// difference returns the ids in a that are not in b.
func difference(a, b []uint) []uint {
	in := make(map[uint]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []uint
	for _, id := range a {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
