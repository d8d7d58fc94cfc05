package importexport

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"github.com/smith3v/puzzle-keeper/pkg/store"
)

type Importer struct {
	store        store.Store
	sentinelName string
}

func NewImporter(st store.Store, sentinelName string) *Importer {
	return &Importer{store: st, sentinelName: sentinelName}
}

type Result struct {
	OpID             string
	Puzzles          int
	Categories       int
	CategoriesMerged int
	Approaches       int
	Hints            int
	CategoryLinks    int
	ApproachLinks    int
	// Reassigned lists imported puzzles that ended up in the sentinel
	// category because none of their category references survived.
	Reassigned []uint
	SentinelID uint
	Rejected   []collection.Rejection
}

// ImportAll adds the document's contents to userID's collection. Every
// record is re-homed to userID and gets a fresh id; references inside the
// document are remapped. Categories merge with existing ones of the same
// name.
//
// Records that cannot be applied, such as a hint whose puzzle is not in the
// document, are skipped and listed in the result. In that case the valid
// records are still committed and the returned error is a
// *collection.PartialFailure. Any other error rolls the whole import back.
func (im *Importer) ImportAll(ctx context.Context, userID string, doc *Document) (*Result, error) {
	if doc == nil {
		return nil, &collection.ValidationError{Field: "document", Reason: "missing"}
	}
	user, err := im.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &collection.NotFoundError{Entity: "user", ID: userID}
	}

	opID := uuid.NewString()
	ctx = logger.ContextWithOpID(ctx, opID)

	var res *Result
	err = im.store.Transaction(ctx, func(tx store.Store) error {
		run := &importRun{
			ctx:        ctx,
			tx:         tx,
			userID:     userID,
			orphans:    collection.NewOrphans(tx, im.sentinelName),
			links:      collection.NewLinks(tx),
			res:        &Result{OpID: opID},
			categories: make(map[uint]uint),
			byName:     make(map[string]uint),
			approaches: make(map[uint]uint),
			puzzles:    make(map[uint]uint),
		}
		if err := run.apply(doc); err != nil {
			return err
		}
		res = run.res
		return nil
	})
	if err != nil {
		logger.Error("import failed", "op_id", opID, "user_id", userID, "error", err)
		return nil, err
	}

	log := logger.With("op_id", res.OpID, "user_id", userID)
	log.Info("import finished",
		"puzzles", res.Puzzles,
		"categories", res.Categories,
		"categories_merged", res.CategoriesMerged,
		"approaches", res.Approaches,
		"hints", res.Hints,
		"rejected", len(res.Rejected),
	)
	if len(res.Rejected) > 0 {
		for _, r := range res.Rejected {
			log.Warn("import record rejected", "record", r.Record, "id", r.ID, "reason", r.Reason)
		}
		return res, &collection.PartialFailure{
			Op:       "import",
			OpID:     res.OpID,
			EntityID: userID,
			Rejected: res.Rejected,
		}
	}
	return res, nil
}

type importRun struct {
	ctx     context.Context
	tx      store.Store
	userID  string
	orphans *collection.Orphans
	links   *collection.Links
	res     *Result

	// old id -> new id
	categories map[uint]uint
	byName     map[string]uint
	approaches map[uint]uint
	puzzles    map[uint]uint
}

func (r *importRun) reject(record string, id uint, format string, args ...any) {
	r.res.Rejected = append(r.res.Rejected, collection.Rejection{
		Record: record,
		ID:     id,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (r *importRun) apply(doc *Document) error {
	if err := r.importCategories(doc.Categories); err != nil {
		return err
	}
	if err := r.importApproaches(doc.Approaches); err != nil {
		return err
	}
	if err := r.importPuzzles(doc.Puzzles); err != nil {
		return err
	}
	if err := r.importHints(doc.Hints); err != nil {
		return err
	}
	if err := r.linkPuzzles(doc.Puzzles); err != nil {
		return err
	}
	reassigned, err := r.orphans.Reassign(r.ctx, r.userID)
	if err != nil {
		return err
	}
	r.res.Reassigned = reassigned.PuzzleIDs
	r.res.SentinelID = reassigned.SentinelID
	return nil
}

// importCategories maps every category record onto one of userID's
// categories. Plain records merge by name. A sentinel record maps to the
// owner's sentinel, or becomes it under its own name when the owner has none.
func (r *importRun) importCategories(records []CategoryRecord) error {
	sentinel, err := r.tx.FindSentinelCategory(r.ctx, r.userID)
	if err != nil {
		return err
	}

	var fresh []*db.Category
	pending := make(map[string][]uint) // name -> old ids waiting for the insert
	queuedSentinel := ""               // name of a sentinel waiting in fresh
	for _, rec := range records {
		name := collection.NormalizeCategoryName(rec.Name)
		if name == "" {
			r.reject("category", rec.ID, "empty name")
			continue
		}

		if rec.IsSentinel {
			switch {
			case sentinel != nil:
				r.mapCategory(rec.ID, sentinel.Name, sentinel.ID)
				r.res.CategoriesMerged++
				continue
			case queuedSentinel != "":
				pending[queuedSentinel] = append(pending[queuedSentinel], rec.ID)
				continue
			}
			if ids, ok := pending[name]; ok {
				for _, c := range fresh {
					if c.Name == name {
						c.IsSentinel = true
					}
				}
				pending[name] = append(ids, rec.ID)
				queuedSentinel = name
				continue
			}
			existing, err := r.tx.FindCategoryByName(r.ctx, r.userID, name)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := r.tx.MarkSentinel(r.ctx, existing.ID); err != nil {
					return err
				}
				existing.IsSentinel = true
				sentinel = existing
				r.mapCategory(rec.ID, name, existing.ID)
				r.res.CategoriesMerged++
				continue
			}
			fresh = append(fresh, &db.Category{UserID: r.userID, Name: name, IsSentinel: true, CreatedAt: rec.CreatedAt})
			pending[name] = []uint{rec.ID}
			queuedSentinel = name
			continue
		}

		if id, ok := r.byName[name]; ok {
			r.mapCategory(rec.ID, name, id)
			continue
		}
		if ids, ok := pending[name]; ok {
			pending[name] = append(ids, rec.ID)
			continue
		}
		existing, err := r.tx.FindCategoryByName(r.ctx, r.userID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			r.mapCategory(rec.ID, name, existing.ID)
			r.res.CategoriesMerged++
			continue
		}
		fresh = append(fresh, &db.Category{UserID: r.userID, Name: name, CreatedAt: rec.CreatedAt})
		pending[name] = []uint{rec.ID}
	}

	if err := r.tx.CreateCategories(r.ctx, fresh); err != nil {
		return err
	}
	for _, c := range fresh {
		for _, oldID := range pending[c.Name] {
			r.mapCategory(oldID, c.Name, c.ID)
		}
	}
	r.res.Categories = len(fresh)
	return nil
}

func (r *importRun) mapCategory(oldID uint, name string, newID uint) {
	if oldID != 0 {
		r.categories[oldID] = newID
	}
	if _, ok := r.byName[name]; !ok {
		r.byName[name] = newID
	}
}

func (r *importRun) importApproaches(records []ApproachRecord) error {
	fresh := make([]*db.Approach, 0, len(records))
	oldIDs := make([]uint, 0, len(records))
	for _, rec := range records {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			r.reject("approach", rec.ID, "empty title")
			continue
		}
		fresh = append(fresh, &db.Approach{
			UserID:    r.userID,
			Title:     title,
			Content:   rec.Content,
			CreatedAt: rec.CreatedAt,
		})
		oldIDs = append(oldIDs, rec.ID)
	}
	if err := r.tx.CreateApproaches(r.ctx, fresh); err != nil {
		return err
	}
	for i, a := range fresh {
		if oldIDs[i] != 0 {
			r.approaches[oldIDs[i]] = a.ID
		}
	}
	r.res.Approaches = len(fresh)
	return nil
}

func (r *importRun) importPuzzles(records []PuzzleRecord) error {
	fresh := make([]*db.Puzzle, 0, len(records))
	oldIDs := make([]uint, 0, len(records))
	for _, rec := range records {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			r.reject("puzzle", rec.ID, "empty title")
			continue
		}
		difficulty := rec.Difficulty
		if difficulty == 0 {
			difficulty = db.MinDifficulty
		}
		if difficulty < db.MinDifficulty || difficulty > db.MaxDifficulty {
			r.reject("puzzle", rec.ID, "difficulty %d out of range", rec.Difficulty)
			continue
		}
		if rec.ID == 0 {
			r.reject("puzzle", 0, "missing id")
			continue
		}
		if _, dup := r.puzzles[rec.ID]; dup {
			r.reject("puzzle", rec.ID, "duplicate id")
			continue
		}
		r.puzzles[rec.ID] = 0
		fresh = append(fresh, &db.Puzzle{
			UserID:      r.userID,
			Title:       title,
			Description: rec.Description,
			Solution:    rec.Solution,
			UserAnswer:  rec.UserAnswer,
			Difficulty:  difficulty,
			Solved:      rec.Solved,
			Favorite:    rec.Favorite,
			Source:      rec.Source,
			CreatedAt:   rec.CreatedAt,
		})
		oldIDs = append(oldIDs, rec.ID)
	}
	if err := r.tx.CreatePuzzles(r.ctx, fresh); err != nil {
		return err
	}
	for i, p := range fresh {
		r.puzzles[oldIDs[i]] = p.ID
	}
	r.res.Puzzles = len(fresh)
	return nil
}

func (r *importRun) importHints(records []HintRecord) error {
	ordered := make([]HintRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	fresh := make([]*db.Hint, 0, len(ordered))
	for _, rec := range ordered {
		puzzleID, ok := r.puzzles[rec.PuzzleID]
		if !ok || puzzleID == 0 {
			r.reject("hint", rec.ID, "puzzle %d is not part of this import", rec.PuzzleID)
			continue
		}
		fresh = append(fresh, &db.Hint{PuzzleID: puzzleID, Content: rec.Content, CreatedAt: rec.CreatedAt})
	}
	if err := r.tx.CreateHints(r.ctx, fresh); err != nil {
		return err
	}
	r.res.Hints = len(fresh)
	return nil
}

// linkPuzzles rebuilds both join relations from the puzzle records. A
// reference to a category or approach that is not in the document is
// rejected on its own; the puzzle's other links still apply.
func (r *importRun) linkPuzzles(records []PuzzleRecord) error {
	for _, rec := range records {
		puzzleID := r.puzzles[rec.ID]
		if rec.ID == 0 || puzzleID == 0 {
			continue
		}

		var categoryIDs []uint
		for _, c := range rec.Categories {
			newID, ok := r.categories[c.ID]
			if !ok && c.ID == 0 {
				newID, ok = r.byName[collection.NormalizeCategoryName(c.Name)]
			}
			if !ok {
				r.reject("puzzle category link", rec.ID, "category %d (%s) is not part of this import", c.ID, c.Name)
				continue
			}
			categoryIDs = append(categoryIDs, newID)
		}
		if err := r.links.AddLinks(r.ctx, store.KindCategory, puzzleID, categoryIDs); err != nil {
			return err
		}
		r.res.CategoryLinks += len(categoryIDs)

		var approachIDs []uint
		for _, oldID := range rec.ApproachIDs {
			newID, ok := r.approaches[oldID]
			if !ok {
				r.reject("puzzle approach link", rec.ID, "approach %d is not part of this import", oldID)
				continue
			}
			approachIDs = append(approachIDs, newID)
		}
		if err := r.links.AddLinks(r.ctx, store.KindApproach, puzzleID, approachIDs); err != nil {
			return err
		}
		r.res.ApproachLinks += len(approachIDs)
	}
	return nil
}
