package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/smith3v/puzzle-keeper/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 100

// SQLStore implements Store on top of GORM.
type SQLStore struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) *SQLStore {
	return &SQLStore{db: gdb}
}

func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

func (s *SQLStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *SQLStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLStore{db: tx})
	})
}

func first[T any](q *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	if err := q.Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func pluckIDs(q *gorm.DB, column string) ([]uint, error) {
	ids := make([]uint, 0)
	if err := q.Pluck(column, &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Users

func (s *SQLStore) CreateUser(ctx context.Context, user *db.User) error {
	return s.conn(ctx).Create(user).Error
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*db.User, error) {
	return first[db.User](s.conn(ctx), "id = ?", id)
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) (int64, error) {
	res := s.conn(ctx).Where("id = ?", id).Delete(&db.User{})
	return res.RowsAffected, res.Error
}

// Puzzles

func (s *SQLStore) CreatePuzzle(ctx context.Context, puzzle *db.Puzzle) error {
	return s.conn(ctx).Create(puzzle).Error
}

func (s *SQLStore) CreatePuzzles(ctx context.Context, puzzles []*db.Puzzle) error {
	if len(puzzles) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(puzzles, batchSize).Error
}

func (s *SQLStore) GetPuzzle(ctx context.Context, id uint) (*db.Puzzle, error) {
	return first[db.Puzzle](s.conn(ctx), "id = ?", id)
}

func (s *SQLStore) SavePuzzle(ctx context.Context, puzzle *db.Puzzle) error {
	return s.conn(ctx).Save(puzzle).Error
}

func (s *SQLStore) ListPuzzles(ctx context.Context, userID string) ([]db.Puzzle, error) {
	puzzles := make([]db.Puzzle, 0)
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&puzzles).Error
	return puzzles, err
}

func (s *SQLStore) ListPuzzleIDs(ctx context.Context, userID string) ([]uint, error) {
	return pluckIDs(s.conn(ctx).Model(&db.Puzzle{}).Where("user_id = ?", userID).Order("id ASC"), "id")
}

func (s *SQLStore) ListUnlinkedPuzzleIDs(ctx context.Context, kind Kind, userID string) ([]uint, error) {
	q := s.conn(ctx).Model(&db.Puzzle{}).
		Where("user_id = ?", userID).
		Where(fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s AS l WHERE l.puzzle_id = puzzles.id)", kind.table())).
		Order("id ASC")
	return pluckIDs(q, "id")
}

func (s *SQLStore) DeletePuzzles(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Where("id IN ?", ids).Delete(&db.Puzzle{})
	return res.RowsAffected, res.Error
}

// Categories

func (s *SQLStore) CreateCategory(ctx context.Context, category *db.Category) error {
	return s.conn(ctx).Create(category).Error
}

func (s *SQLStore) CreateCategoryIfAbsent(ctx context.Context, category *db.Category) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(category)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) CreateCategories(ctx context.Context, categories []*db.Category) error {
	if len(categories) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(categories, batchSize).Error
}

func (s *SQLStore) GetCategory(ctx context.Context, id uint) (*db.Category, error) {
	return first[db.Category](s.conn(ctx), "id = ?", id)
}

func (s *SQLStore) FindCategoryByName(ctx context.Context, userID, name string) (*db.Category, error) {
	return first[db.Category](s.conn(ctx), "user_id = ? AND name = ?", userID, name)
}

func (s *SQLStore) FindSentinelCategory(ctx context.Context, userID string) (*db.Category, error) {
	return first[db.Category](s.conn(ctx).Order("id ASC"), "user_id = ? AND is_sentinel = ?", userID, true)
}

func (s *SQLStore) MarkSentinel(ctx context.Context, id uint) error {
	return s.conn(ctx).Model(&db.Category{}).Where("id = ?", id).Update("is_sentinel", true).Error
}

func (s *SQLStore) RenameCategory(ctx context.Context, id uint, name string) error {
	return s.conn(ctx).Model(&db.Category{}).Where("id = ?", id).Update("name", name).Error
}

func (s *SQLStore) ListCategories(ctx context.Context, userID string) ([]db.Category, error) {
	categories := make([]db.Category, 0)
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&categories).Error
	return categories, err
}

func (s *SQLStore) DeleteCategory(ctx context.Context, id uint) (int64, error) {
	res := s.conn(ctx).Where("id = ?", id).Delete(&db.Category{})
	return res.RowsAffected, res.Error
}

func (s *SQLStore) DeleteCategoriesByOwner(ctx context.Context, userID string) (int64, error) {
	res := s.conn(ctx).Where("user_id = ?", userID).Delete(&db.Category{})
	return res.RowsAffected, res.Error
}

// Approaches

func (s *SQLStore) CreateApproach(ctx context.Context, approach *db.Approach) error {
	return s.conn(ctx).Create(approach).Error
}

func (s *SQLStore) CreateApproaches(ctx context.Context, approaches []*db.Approach) error {
	if len(approaches) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(approaches, batchSize).Error
}

func (s *SQLStore) GetApproach(ctx context.Context, id uint) (*db.Approach, error) {
	return first[db.Approach](s.conn(ctx), "id = ?", id)
}

func (s *SQLStore) SaveApproach(ctx context.Context, approach *db.Approach) error {
	return s.conn(ctx).Save(approach).Error
}

func (s *SQLStore) ListApproaches(ctx context.Context, userID string) ([]db.Approach, error) {
	approaches := make([]db.Approach, 0)
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&approaches).Error
	return approaches, err
}

func (s *SQLStore) DeleteApproach(ctx context.Context, id uint) (int64, error) {
	res := s.conn(ctx).Where("id = ?", id).Delete(&db.Approach{})
	return res.RowsAffected, res.Error
}

func (s *SQLStore) DeleteApproachesByOwner(ctx context.Context, userID string) (int64, error) {
	res := s.conn(ctx).Where("user_id = ?", userID).Delete(&db.Approach{})
	return res.RowsAffected, res.Error
}

// Hints

func (s *SQLStore) CreateHints(ctx context.Context, hints []*db.Hint) error {
	if len(hints) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(hints, batchSize).Error
}

func (s *SQLStore) ListHints(ctx context.Context, puzzleIDs []uint) ([]db.Hint, error) {
	hints := make([]db.Hint, 0)
	if len(puzzleIDs) == 0 {
		return hints, nil
	}
	err := s.conn(ctx).
		Where("puzzle_id IN ?", puzzleIDs).
		Order("puzzle_id ASC, created_at ASC, id ASC").
		Find(&hints).Error
	return hints, err
}

func (s *SQLStore) DeleteHintsForPuzzles(ctx context.Context, puzzleIDs []uint) (int64, error) {
	if len(puzzleIDs) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Where("puzzle_id IN ?", puzzleIDs).Delete(&db.Hint{})
	return res.RowsAffected, res.Error
}

// Join relations

func (s *SQLStore) InsertLinks(ctx context.Context, kind Kind, links []Link) error {
	if len(links) == 0 {
		return nil
	}
	q := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true})
	switch kind {
	case KindCategory:
		rows := make([]db.PuzzleCategory, 0, len(links))
		for _, l := range links {
			rows = append(rows, db.PuzzleCategory{PuzzleID: l.PuzzleID, CategoryID: l.CounterpartID})
		}
		return q.CreateInBatches(&rows, batchSize).Error
	case KindApproach:
		rows := make([]db.PuzzleApproach, 0, len(links))
		for _, l := range links {
			rows = append(rows, db.PuzzleApproach{PuzzleID: l.PuzzleID, ApproachID: l.CounterpartID})
		}
		return q.CreateInBatches(&rows, batchSize).Error
	default:
		return fmt.Errorf("unknown link kind %s", kind)
	}
}

func (s *SQLStore) DeleteLinksForPuzzles(ctx context.Context, kind Kind, puzzleIDs []uint) (int64, error) {
	if len(puzzleIDs) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Where("puzzle_id IN ?", puzzleIDs).Delete(kind.model())
	return res.RowsAffected, res.Error
}

func (s *SQLStore) DeleteLinksForCounterpart(ctx context.Context, kind Kind, counterpartID uint) (int64, error) {
	res := s.conn(ctx).Where(kind.counterpartColumn()+" = ?", counterpartID).Delete(kind.model())
	return res.RowsAffected, res.Error
}

func (s *SQLStore) CounterpartIDs(ctx context.Context, kind Kind, puzzleID uint) ([]uint, error) {
	col := kind.counterpartColumn()
	q := s.conn(ctx).Table(kind.table()).Where("puzzle_id = ?", puzzleID).Order(col + " ASC")
	return pluckIDs(q, col)
}

func (s *SQLStore) PuzzleIDsFor(ctx context.Context, kind Kind, counterpartID uint) ([]uint, error) {
	q := s.conn(ctx).Table(kind.table()).Where(kind.counterpartColumn()+" = ?", counterpartID).Order("puzzle_id ASC")
	return pluckIDs(q, "puzzle_id")
}

func (s *SQLStore) ListLinks(ctx context.Context, kind Kind, puzzleIDs []uint) ([]Link, error) {
	links := make([]Link, 0)
	if len(puzzleIDs) == 0 {
		return links, nil
	}
	col := kind.counterpartColumn()
	err := s.conn(ctx).Table(kind.table()).
		Select("puzzle_id, "+col+" AS counterpart_id").
		Where("puzzle_id IN ?", puzzleIDs).
		Order("puzzle_id ASC, " + col + " ASC").
		Scan(&links).Error
	return links, err
}

func (s *SQLStore) CountPuzzlesPerCounterpart(ctx context.Context, kind Kind, userID string) (map[uint]int64, error) {
	var rows []struct {
		CounterpartID uint
		PuzzleCount   int64
	}
	col := "l." + kind.counterpartColumn()
	err := s.conn(ctx).Table(kind.table()+" AS l").
		Select(col+" AS counterpart_id, COUNT(*) AS puzzle_count").
		Joins("JOIN puzzles AS p ON p.id = l.puzzle_id").
		Where("p.user_id = ?", userID).
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CounterpartID] = r.PuzzleCount
	}
	return counts, nil
}

func (s *SQLStore) OwnedCounterpartIDs(ctx context.Context, kind Kind, userID string, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return []uint{}, nil
	}
	q := s.conn(ctx).Table(kind.counterpartTable()).Where("user_id = ? AND id IN ?", userID, ids).Order("id ASC")
	return pluckIDs(q, "id")
}
