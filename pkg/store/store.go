// Package store is the entity store and association table layer for the
// puzzle collection.
//
// The store performs no referential-integrity work of its own: deleting a
// puzzle row leaves its hints and join rows in place. Callers that delete
// must remove dependents first (see pkg/collection).
//
// Get methods return nil without error for missing rows. List methods return
// empty slices, never nil.
package store

import (
	"context"
	"fmt"

	"github.com/smith3v/puzzle-keeper/pkg/db"
)

// Kind selects one of the two puzzle join relations.
type Kind int

const (
	KindCategory Kind = iota + 1
	KindApproach
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindApproach:
		return "approach"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) Valid() bool {
	return k == KindCategory || k == KindApproach
}

func (k Kind) table() string {
	if k == KindApproach {
		return "puzzle_approaches"
	}
	return "puzzle_categories"
}

func (k Kind) counterpartColumn() string {
	if k == KindApproach {
		return "approach_id"
	}
	return "category_id"
}

func (k Kind) counterpartTable() string {
	if k == KindApproach {
		return "approaches"
	}
	return "categories"
}

func (k Kind) model() any {
	if k == KindApproach {
		return &db.PuzzleApproach{}
	}
	return &db.PuzzleCategory{}
}

// Link is one (puzzle, counterpart) pair of a join relation.
type Link struct {
	PuzzleID      uint
	CounterpartID uint
}

type Store interface {
	// Transaction runs fn against a store bound to a single database
	// transaction. A nil return commits, anything else rolls back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *db.User) error
	GetUser(ctx context.Context, id string) (*db.User, error)
	DeleteUser(ctx context.Context, id string) (int64, error)

	CreatePuzzle(ctx context.Context, puzzle *db.Puzzle) error
	CreatePuzzles(ctx context.Context, puzzles []*db.Puzzle) error
	GetPuzzle(ctx context.Context, id uint) (*db.Puzzle, error)
	SavePuzzle(ctx context.Context, puzzle *db.Puzzle) error
	ListPuzzles(ctx context.Context, userID string) ([]db.Puzzle, error)
	ListPuzzleIDs(ctx context.Context, userID string) ([]uint, error)
	ListUnlinkedPuzzleIDs(ctx context.Context, kind Kind, userID string) ([]uint, error)
	DeletePuzzles(ctx context.Context, ids []uint) (int64, error)

	CreateCategory(ctx context.Context, category *db.Category) error
	// CreateCategoryIfAbsent reports false when (user_id, name) already exists.
	CreateCategoryIfAbsent(ctx context.Context, category *db.Category) (bool, error)
	CreateCategories(ctx context.Context, categories []*db.Category) error
	GetCategory(ctx context.Context, id uint) (*db.Category, error)
	FindCategoryByName(ctx context.Context, userID, name string) (*db.Category, error)
	FindSentinelCategory(ctx context.Context, userID string) (*db.Category, error)
	MarkSentinel(ctx context.Context, id uint) error
	RenameCategory(ctx context.Context, id uint, name string) error
	ListCategories(ctx context.Context, userID string) ([]db.Category, error)
	DeleteCategory(ctx context.Context, id uint) (int64, error)
	DeleteCategoriesByOwner(ctx context.Context, userID string) (int64, error)

	CreateApproach(ctx context.Context, approach *db.Approach) error
	CreateApproaches(ctx context.Context, approaches []*db.Approach) error
	GetApproach(ctx context.Context, id uint) (*db.Approach, error)
	SaveApproach(ctx context.Context, approach *db.Approach) error
	ListApproaches(ctx context.Context, userID string) ([]db.Approach, error)
	DeleteApproach(ctx context.Context, id uint) (int64, error)
	DeleteApproachesByOwner(ctx context.Context, userID string) (int64, error)

	CreateHints(ctx context.Context, hints []*db.Hint) error
	ListHints(ctx context.Context, puzzleIDs []uint) ([]db.Hint, error)
	DeleteHintsForPuzzles(ctx context.Context, puzzleIDs []uint) (int64, error)

	// InsertLinks ignores pairs that already exist.
	InsertLinks(ctx context.Context, kind Kind, links []Link) error
	DeleteLinksForPuzzles(ctx context.Context, kind Kind, puzzleIDs []uint) (int64, error)
	DeleteLinksForCounterpart(ctx context.Context, kind Kind, counterpartID uint) (int64, error)
	CounterpartIDs(ctx context.Context, kind Kind, puzzleID uint) ([]uint, error)
	PuzzleIDsFor(ctx context.Context, kind Kind, counterpartID uint) ([]uint, error)
	ListLinks(ctx context.Context, kind Kind, puzzleIDs []uint) ([]Link, error)
	CountPuzzlesPerCounterpart(ctx context.Context, kind Kind, userID string) (map[uint]int64, error)
	// OwnedCounterpartIDs returns the subset of ids that exist and belong to userID.
	OwnedCounterpartIDs(ctx context.Context, kind Kind, userID string, ids []uint) ([]uint, error)
}
