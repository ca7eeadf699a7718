package model

import (
	"time"

	"gorm.io/datatypes"
)

// TreeRecord stores one named behavior tree definition from the editor.
// Definition holds the serialized node graph exactly as imported; the AI
// parser re-validates it on every load.
type TreeRecord struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string         `gorm:"size:256" json:"description"`
	Definition  datatypes.JSON `gorm:"not null" json:"definition"`
	Revision    int            `gorm:"default:1" json:"revision"`
	UpdatedBy   int64          `json:"updated_by"` // editor account ID
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TreeRecord) TableName() string { return "trees" }
