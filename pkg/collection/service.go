package collection

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"
)

type Options struct {
	// SentinelName is the name given to a newly created fallback category.
	SentinelName string
	// Atomic runs every cascade in a single transaction.
	Atomic bool
}

// Service is the entry point used by the bot, the CLI and the importer. It
// keeps every puzzle in at least one category across create, update and
// delete.
type Service struct {
	store   store.Store
	opts    Options
	links   *Links
	orphans *Orphans
	cascade *Cascade
}

func NewService(st store.Store, opts Options) *Service {
	return &Service{
		store:   st,
		opts:    opts,
		links:   NewLinks(st),
		orphans: NewOrphans(st, opts.SentinelName),
		cascade: NewCascade(st, opts.SentinelName, opts.Atomic),
	}
}

func (s *Service) Store() store.Store { return s.store }
func (s *Service) Links() *Links { return s.links }
func (s *Service) Orphans() *Orphans { return s.orphans }
func (s *Service) Cascade() *Cascade { return s.cascade }
func (s *Service) SentinelName() string { return s.orphans.name }

type PuzzleInput struct {
	Title       string
	Description datatypes.JSON
	Solution    datatypes.JSON
	UserAnswer  datatypes.JSON
	Difficulty  int
	Solved      bool
	Favorite    bool
	Source      *string
}

type ApproachInput struct {
	Title   string
	Content datatypes.JSON
}

// PuzzleDetail is a puzzle together with its current link sets.
type PuzzleDetail struct {
	db.Puzzle
	CategoryIDs []uint
	ApproachIDs []uint
}

type CategorySummary struct {
	db.Category
	PuzzleCount int64
}

// Users

// EnsureUser returns the stored user with user.ID, creating it from user when
// absent.
func (s *Service) EnsureUser(ctx context.Context, user *db.User) (*db.User, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, invalid("user id", "must not be empty")
	}
	existing, err := s.store.GetUser(ctx, user.ID)
	if err != nil || existing != nil {
		return existing, err
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// A concurrent request may have created it first.
		if again, getErr := s.store.GetUser(ctx, user.ID); getErr == nil && again != nil {
			return again, nil
		}
		return nil, err
	}
	logger.Info("registered user", "user_id", user.ID)
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*db.User, error) {
	if userID == "" {
		return nil, invalid("user id", "must not be empty")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user", userID)
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.cascade.DeleteUser(ctx, userID)
}

// Categories

// NormalizeCategoryName trims the name and puts it in Unicode NFC so that
// visually identical names collide on the (owner, name) unique index.
func NormalizeCategoryName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func (s *Service) CreateCategory(ctx context.Context, userID, name string) (*db.Category, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	name = NormalizeCategoryName(name)
	if name == "" {
		return nil, invalid("category name", "must not be empty")
	}
	existing, err := s.store.FindCategoryByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, invalid("category name", "%q already exists", name)
	}
	category := &db.Category{UserID: userID, Name: name}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) GetCategory(ctx context.Context, id uint) (*db.Category, error) {
	if id == 0 {
		return nil, invalid("category id", "must be a positive integer")
	}
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, notFound("category", id)
	}
	return category, nil
}

// SentinelLabel names the sentinel that received reassigned puzzles. The
// owner may have renamed it, so the stored name wins over the default.
func (s *Service) SentinelLabel(ctx context.Context, sentinelID uint) string {
	if sentinelID == 0 {
		return s.orphans.name
	}
	category, err := s.GetCategory(ctx, sentinelID)
	if err != nil {
		logger.Warn("failed to look up sentinel name", "category_id", sentinelID, "error", err)
		return s.orphans.name
	}
	return category.Name
}

// RenameCategory changes the name only. Renaming the sentinel keeps it the
// sentinel.
func (s *Service) RenameCategory(ctx context.Context, id uint, name string) (*db.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	name = NormalizeCategoryName(name)
	if name == "" {
		return nil, invalid("category name", "must not be empty")
	}
	if name == category.Name {
		return category, nil
	}
	clash, err := s.store.FindCategoryByName(ctx, category.UserID, name)
	if err != nil {
		return nil, err
	}
	if clash != nil {
		return nil, invalid("category name", "%q already exists", name)
	}
	if err := s.store.RenameCategory(ctx, id, name); err != nil {
		return nil, err
	}
	category.Name = name
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context, userID string) ([]CategorySummary, error) {
	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountPuzzlesPerCounterpart(ctx, store.KindCategory, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CategorySummary, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategorySummary{Category: c, PuzzleCount: counts[c.ID]})
	}
	return out, nil
}

// DeleteCategory deletes the category and returns the puzzles that were moved
// to the sentinel as a result.
func (s *Service) DeleteCategory(ctx context.Context, id uint) (ReassignResult, error) {
	return s.cascade.DeleteCategory(ctx, id)
}

// Approaches

func (s *Service) CreateApproach(ctx context.Context, userID string, in ApproachInput, puzzleIDs []uint) (*db.Approach, error) {
	if err := validateApproach(in); err != nil {
		return nil, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	approach := &db.Approach{UserID: userID, Title: strings.TrimSpace(in.Title), Content: in.Content}
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateApproach(ctx, approach); err != nil {
			return err
		}
		return linkPuzzlesTo(ctx, tx, store.KindApproach, userID, approach.ID, puzzleIDs)
	})
	if err != nil {
		return nil, err
	}
	return approach, nil
}

func (s *Service) GetApproach(ctx context.Context, id uint) (*db.Approach, error) {
	if id == 0 {
		return nil, invalid("approach id", "must be a positive integer")
	}
	approach, err := s.store.GetApproach(ctx, id)
	if err != nil {
		return nil, err
	}
	if approach == nil {
		return nil, notFound("approach", id)
	}
	return approach, nil
}

// UpdateApproach replaces the approach fields and its whole puzzle set.
func (s *Service) UpdateApproach(ctx context.Context, id uint, in ApproachInput, puzzleIDs []uint) (*db.Approach, error) {
	if err := validateApproach(in); err != nil {
		return nil, err
	}
	approach, err := s.GetApproach(ctx, id)
	if err != nil {
		return nil, err
	}
	approach.Title = strings.TrimSpace(in.Title)
	approach.Content = in.Content
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.SaveApproach(ctx, approach); err != nil {
			return err
		}
		if _, err := tx.DeleteLinksForCounterpart(ctx, store.KindApproach, id); err != nil {
			return err
		}
		return linkPuzzlesTo(ctx, tx, store.KindApproach, approach.UserID, id, puzzleIDs)
	})
	if err != nil {
		return nil, err
	}
	return approach, nil
}

func (s *Service) ListApproaches(ctx context.Context, userID string) ([]db.Approach, error) {
	return s.store.ListApproaches(ctx, userID)
}

func (s *Service) DeleteApproach(ctx context.Context, id uint) error {
	return s.cascade.DeleteApproach(ctx, id)
}

// Puzzles

// CreatePuzzle inserts the puzzle with its initial link sets. With no
// categories the puzzle goes to the owner's sentinel.
func (s *Service) CreatePuzzle(ctx context.Context, userID string, in PuzzleInput, categoryIDs, approachIDs []uint) (*db.Puzzle, error) {
	if in.Difficulty == 0 {
		in.Difficulty = db.MinDifficulty
	}
	if err := validatePuzzle(in); err != nil {
		return nil, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	puzzle := &db.Puzzle{UserID: userID}
	applyPuzzleInput(puzzle, in)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreatePuzzle(ctx, puzzle); err != nil {
			return err
		}
		categories, err := s.categoriesOrSentinel(ctx, tx, userID, categoryIDs)
		if err != nil {
			return err
		}
		links := NewLinks(tx)
		if err := links.AddLinks(ctx, store.KindCategory, puzzle.ID, categories); err != nil {
			return err
		}
		return links.AddLinks(ctx, store.KindApproach, puzzle.ID, approachIDs)
	})
	if err != nil {
		return nil, err
	}
	return puzzle, nil
}

// UpdatePuzzle replaces every field and both link sets of the puzzle. It is a
// full replacement, so callers pass the complete category and approach sets.
func (s *Service) UpdatePuzzle(ctx context.Context, id uint, in PuzzleInput, categoryIDs, approachIDs []uint) (*db.Puzzle, error) {
	if err := validatePuzzle(in); err != nil {
		return nil, err
	}
	puzzle, err := s.getPuzzle(ctx, id)
	if err != nil {
		return nil, err
	}
	applyPuzzleInput(puzzle, in)
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.SavePuzzle(ctx, puzzle); err != nil {
			return err
		}
		categories, err := s.categoriesOrSentinel(ctx, tx, puzzle.UserID, categoryIDs)
		if err != nil {
			return err
		}
		links := NewLinks(tx)
		if err := links.ReplaceLinks(ctx, store.KindCategory, id, categories); err != nil {
			return err
		}
		return links.ReplaceLinks(ctx, store.KindApproach, id, approachIDs)
	})
	if err != nil {
		return nil, err
	}
	return puzzle, nil
}

// AddCategoryToPuzzle links one more category. Link updates are whole-set
// replacements, so this reads the current set back first.
func (s *Service) AddCategoryToPuzzle(ctx context.Context, puzzleID, categoryID uint) error {
	if categoryID == 0 {
		return invalid("category id", "must be a positive integer")
	}
	return s.store.Transaction(ctx, func(tx store.Store) error {
		links := NewLinks(tx)
		current, err := links.CounterpartsFor(ctx, store.KindCategory, puzzleID)
		if err != nil {
			return err
		}
		return links.ReplaceLinks(ctx, store.KindCategory, puzzleID, append(current, categoryID))
	})
}

func (s *Service) GetPuzzle(ctx context.Context, id uint) (*PuzzleDetail, error) {
	puzzle, err := s.getPuzzle(ctx, id)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.CounterpartIDs(ctx, store.KindCategory, id)
	if err != nil {
		return nil, err
	}
	approaches, err := s.store.CounterpartIDs(ctx, store.KindApproach, id)
	if err != nil {
		return nil, err
	}
	return &PuzzleDetail{Puzzle: *puzzle, CategoryIDs: categories, ApproachIDs: approaches}, nil
}

func (s *Service) ListPuzzles(ctx context.Context, userID string) ([]db.Puzzle, error) {
	return s.store.ListPuzzles(ctx, userID)
}

func (s *Service) DeletePuzzle(ctx context.Context, id uint) error {
	return s.cascade.DeletePuzzle(ctx, id)
}

// Hints

func (s *Service) AddHint(ctx context.Context, puzzleID uint, content datatypes.JSON) (*db.Hint, error) {
	if len(content) > 0 && !json.Valid(content) {
		return nil, invalid("hint content", "not a valid JSON document")
	}
	if _, err := s.getPuzzle(ctx, puzzleID); err != nil {
		return nil, err
	}
	hint := &db.Hint{PuzzleID: puzzleID, Content: content}
	if err := s.store.CreateHints(ctx, []*db.Hint{hint}); err != nil {
		return nil, err
	}
	return hint, nil
}

// ListHints returns the puzzle's hints in the order they were added.
func (s *Service) ListHints(ctx context.Context, puzzleID uint) ([]db.Hint, error) {
	if _, err := s.getPuzzle(ctx, puzzleID); err != nil {
		return nil, err
	}
	return s.store.ListHints(ctx, []uint{puzzleID})
}

func (s *Service) getPuzzle(ctx context.Context, id uint) (*db.Puzzle, error) {
	if id == 0 {
		return nil, invalid("puzzle id", "must be a positive integer")
	}
	puzzle, err := s.store.GetPuzzle(ctx, id)
	if err != nil {
		return nil, err
	}
	if puzzle == nil {
		return nil, notFound("puzzle", id)
	}
	return puzzle, nil
}

func (s *Service) categoriesOrSentinel(ctx context.Context, tx store.Store, userID string, ids []uint) ([]uint, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	sentinel, err := NewOrphans(tx, s.opts.SentinelName).EnsureUncategorized(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []uint{sentinel.ID}, nil
}

// linkPuzzlesTo links counterpartID to every puzzle in puzzleIDs after
// checking they all belong to userID.
func linkPuzzlesTo(ctx context.Context, tx store.Store, kind store.Kind, userID string, counterpartID uint, puzzleIDs []uint) error {
	unique := dedupe(puzzleIDs)
	if len(unique) == 0 {
		return nil
	}
	owned, err := tx.ListPuzzleIDs(ctx, userID)
	if err != nil {
		return err
	}
	if missing := difference(unique, owned); len(missing) > 0 {
		return invalid("puzzle ids", "unknown puzzle ids %v", missing)
	}
	links := make([]store.Link, 0, len(unique))
	for _, id := range unique {
		links = append(links, store.Link{PuzzleID: id, CounterpartID: counterpartID})
	}
	return tx.InsertLinks(ctx, kind, links)
}

func applyPuzzleInput(p *db.Puzzle, in PuzzleInput) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.Solution = in.Solution
	p.UserAnswer = in.UserAnswer
	p.Difficulty = in.Difficulty
	p.Solved = in.Solved
	p.Favorite = in.Favorite
	p.Source = in.Source
}

func validatePuzzle(in PuzzleInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "must not be empty")
	}
	if in.Difficulty < db.MinDifficulty || in.Difficulty > db.MaxDifficulty {
		return invalid("difficulty", "must be between %d and %d", db.MinDifficulty, db.MaxDifficulty)
	}
	docs := []struct {
		field string
		doc   datatypes.JSON
	}{
		{"description", in.Description},
		{"solution", in.Solution},
		{"user answer", in.UserAnswer},
	}
	for _, d := range docs {
		if len(d.doc) > 0 && !json.Valid(d.doc) {
			return invalid(d.field, "not a valid JSON document")
		}
	}
	return nil
}

func validateApproach(in ApproachInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "must not be empty")
	}
	if len(in.Content) > 0 && !json.Valid(in.Content) {
		return invalid("content", "not a valid JSON document")
	}
	return nil
}
