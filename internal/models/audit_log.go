package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

type AuditLog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EstablishmentID string `gorm:"type:varchar(36);index;not null" json:"establishment_id"`
	UserID          string `gorm:"type:varchar(36);index" json:"user_id"`

	// "sale", "waste_entry", "product", "menu_item", "stock_lot", "member", "checklist"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   string `gorm:"type:varchar(36);index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots, "null" when absent
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
