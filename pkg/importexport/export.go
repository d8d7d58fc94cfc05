package importexport

import (
	"context"
	"time"

	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/store"
)

type Exporter struct {
	store store.Store
	now   func() time.Time
}

func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st, now: time.Now}
}

// ExportAll returns everything userID owns, ordered by id. The reads share
// one transaction so the document is a consistent snapshot.
func (e *Exporter) ExportAll(ctx context.Context, userID string) (*Document, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &collection.NotFoundError{Entity: "user", ID: userID}
	}

	doc := &Document{
		Version:    DocumentVersion,
		ExportedAt: e.now().UTC(),
		Puzzles:    []PuzzleRecord{},
		Categories: []CategoryRecord{},
		Approaches: []ApproachRecord{},
		Hints:      []HintRecord{},
	}
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		categories, err := tx.ListCategories(ctx, userID)
		if err != nil {
			return err
		}
		byID := make(map[uint]CategoryRecord, len(categories))
		for _, c := range categories {
			rec := categoryRecord(c)
			byID[c.ID] = rec
			doc.Categories = append(doc.Categories, rec)
		}

		approaches, err := tx.ListApproaches(ctx, userID)
		if err != nil {
			return err
		}
		for _, a := range approaches {
			doc.Approaches = append(doc.Approaches, ApproachRecord{
				ID:        a.ID,
				UserID:    a.UserID,
				Title:     a.Title,
				Content:   a.Content,
				CreatedAt: a.CreatedAt,
				UpdatedAt: a.UpdatedAt,
			})
		}

		puzzles, err := tx.ListPuzzles(ctx, userID)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(puzzles))
		for _, p := range puzzles {
			ids = append(ids, p.ID)
		}
		categoryLinks, err := tx.ListLinks(ctx, store.KindCategory, ids)
		if err != nil {
			return err
		}
		approachLinks, err := tx.ListLinks(ctx, store.KindApproach, ids)
		if err != nil {
			return err
		}
		categoriesOf := make(map[uint][]CategoryRecord)
		for _, l := range categoryLinks {
			if rec, ok := byID[l.CounterpartID]; ok {
				categoriesOf[l.PuzzleID] = append(categoriesOf[l.PuzzleID], rec)
			}
		}
		approachesOf := make(map[uint][]uint)
		for _, l := range approachLinks {
			approachesOf[l.PuzzleID] = append(approachesOf[l.PuzzleID], l.CounterpartID)
		}

		for _, p := range puzzles {
			rec := PuzzleRecord{
				ID:          p.ID,
				UserID:      p.UserID,
				Title:       p.Title,
				Description: p.Description,
				Solution:    p.Solution,
				UserAnswer:  p.UserAnswer,
				Difficulty:  p.Difficulty,
				Solved:      p.Solved,
				Favorite:    p.Favorite,
				Source:      p.Source,
				CreatedAt:   p.CreatedAt,
				UpdatedAt:   p.UpdatedAt,
				Categories:  categoriesOf[p.ID],
				ApproachIDs: approachesOf[p.ID],
			}
			if rec.Categories == nil {
				rec.Categories = []CategoryRecord{}
			}
			if rec.ApproachIDs == nil {
				rec.ApproachIDs = []uint{}
			}
			doc.Puzzles = append(doc.Puzzles, rec)
		}

		hints, err := tx.ListHints(ctx, ids)
		if err != nil {
			return err
		}
		for _, h := range hints {
			doc.Hints = append(doc.Hints, HintRecord{
				ID:        h.ID,
				PuzzleID:  h.PuzzleID,
				Content:   h.Content,
				CreatedAt: h.CreatedAt,
				UpdatedAt: h.UpdatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
