// Package importexport moves one user's whole collection in and out of the
// store as a single JSON document.
package importexport

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/smith3v/puzzle-keeper/pkg/db"
	"gorm.io/datatypes"
)

const DocumentVersion = 1

// Document is the exchange format: four flat arrays. Puzzles carry their
// category links as expanded category records and their approach links as
// ids.
type Document struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Puzzles    []PuzzleRecord   `json:"puzzles"`
	Categories []CategoryRecord `json:"categories"`
	Approaches []ApproachRecord `json:"approaches"`
	Hints      []HintRecord     `json:"hints"`
}

type PuzzleRecord struct {
	ID          uint             `json:"id"`
	UserID      string           `json:"user_id,omitempty"`
	Title       string           `json:"title"`
	Description datatypes.JSON   `json:"description,omitempty"`
	Solution    datatypes.JSON   `json:"solution,omitempty"`
	UserAnswer  datatypes.JSON   `json:"user_answer,omitempty"`
	Difficulty  int              `json:"difficulty"`
	Solved      bool             `json:"solved"`
	Favorite    bool             `json:"favorite"`
	Source      *string          `json:"source,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Categories  []CategoryRecord `json:"categories"`
	ApproachIDs []uint           `json:"approach_ids"`
}

type CategoryRecord struct {
	ID         uint      `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Name       string    `json:"name"`
	IsSentinel bool      `json:"is_sentinel,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ApproachRecord struct {
	ID        uint           `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Title     string         `json:"title"`
	Content   datatypes.JSON `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type HintRecord struct {
	ID        uint           `json:"id"`
	PuzzleID  uint           `json:"puzzle_id"`
	Content   datatypes.JSON `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode import document: %w", err)
	}
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	return &doc, nil
}

func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ExportFilename(now time.Time) string {
	return fmt.Sprintf("puzzles-%s.json", now.Format("20060102"))
}

func categoryRecord(c db.Category) CategoryRecord {
	return CategoryRecord{
		ID:         c.ID,
		UserID:     c.UserID,
		Name:       c.Name,
		IsSentinel: c.IsSentinel,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
