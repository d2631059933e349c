package models

import "time"

// ChecklistItem is one closing step of a quarterly URSSAF declaration.
type ChecklistItem struct {
	Model
	EstablishmentID string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_checklist_key" json:"establishment_id"`
	Year            int        `gorm:"not null;uniqueIndex:idx_checklist_key" json:"year"`
	Quarter         int        `gorm:"not null;uniqueIndex:idx_checklist_key" json:"quarter"`
	Key             string     `gorm:"size:50;not null;uniqueIndex:idx_checklist_key" json:"key"`
	Checked         bool       `gorm:"not null" json:"checked"`
	CheckedBy       string     `gorm:"type:varchar(36)" json:"checked_by"`
	CheckedAt       *time.Time `json:"checked_at,omitempty"`
}

// QuarterExport records every spreadsheet export of a quarter synthesis.
type QuarterExport struct {
	Model
	EstablishmentID string    `gorm:"type:varchar(36);index;not null" json:"establishment_id"`
	Year            int       `gorm:"not null" json:"year"`
	Quarter         int       `gorm:"not null" json:"quarter"`
	ExportedBy      string    `gorm:"type:varchar(36)" json:"exported_by"`
	ExportedAt      time.Time `gorm:"not null" json:"exported_at"`
}
