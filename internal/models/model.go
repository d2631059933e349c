package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is embedded by every persisted entity. IDs are UUID strings assigned on insert.
type Model struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// All returns every model in migration order.
func All() []any {
	return []any{
		&Establishment{},
		&Member{},
		&Product{},
		&StockLot{},
		&MenuItem{},
		&Ingredient{},
		&Sale{},
		&WasteEntry{},
		&AuditLog{},
		&ChecklistItem{},
		&QuarterExport{},
	}
}
