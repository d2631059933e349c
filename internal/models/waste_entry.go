package models

import "time"

// WasteEntry records lost stock. Its quantity is deducted from lots like a sale ingredient.
type WasteEntry struct {
	Model
	EstablishmentID string    `gorm:"type:varchar(36);index;not null" json:"establishment_id"`
	ProductID       string    `gorm:"type:varchar(36);index;not null" json:"product_id"`
	Product         *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	UserID          string    `gorm:"type:varchar(36)" json:"user_id"`
	Date            time.Time `gorm:"index;not null" json:"date"`
	Quantity        float64   `gorm:"not null" json:"quantity"`
	Unit            string    `gorm:"size:20;not null" json:"unit"`
	Note            string    `gorm:"size:500;not null" json:"note"` // who or what caused it
}
