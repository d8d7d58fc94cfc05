package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Tables carry no foreign keys: referential integrity is maintained by
// pkg/collection, not by the database.

type User struct {
	ID          string `gorm:"primaryKey"` // external auth identifier
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Puzzle struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description datatypes.JSON
	Solution    datatypes.JSON
	UserAnswer  datatypes.JSON
	Difficulty  int  `gorm:"not null;default:1"`
	Solved      bool `gorm:"not null;default:false"`
	Favorite    bool `gorm:"not null;default:false"`
	Source      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Category struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"not null;index;uniqueIndex:idx_category_user_name"`
	Name       string `gorm:"not null;uniqueIndex:idx_category_user_name"`
	IsSentinel bool   `gorm:"not null;default:false"` // the owner's "Uncategorized" fallback
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Approach struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Content   datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Hint struct {
	ID        uint `gorm:"primaryKey"`
	PuzzleID  uint `gorm:"not null;index"`
	Content   datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PuzzleCategory struct {
	PuzzleID   uint `gorm:"primaryKey;autoIncrement:false"`
	CategoryID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

type PuzzleApproach struct {
	PuzzleID   uint `gorm:"primaryKey;autoIncrement:false"`
	ApproachID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{
		&User{},
		&Puzzle{},
		&Category{},
		&Approach{},
		&Hint{},
		&PuzzleCategory{},
		&PuzzleApproach{},
	}
}
