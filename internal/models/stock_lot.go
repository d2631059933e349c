package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLot is one purchase batch of a product. Quantity is expressed in Unit and never drops below 0.
type StockLot struct {
	Model
	EstablishmentID string          `gorm:"type:varchar(36);index:idx_lot_product;not null" json:"establishment_id"`
	ProductID       string          `gorm:"type:varchar(36);index:idx_lot_product;not null" json:"product_id"`
	Quantity        float64         `gorm:"not null" json:"quantity"`
	Unit            string          `gorm:"size:20;not null" json:"unit"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"unit_price"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Supplier        string          `gorm:"size:100" json:"supplier"`
	Version         int             `gorm:"not null" json:"version"`
}
