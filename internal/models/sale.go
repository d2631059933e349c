package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is immutable once written. Deleting it restores the stock it consumed.
type Sale struct {
	Model
	EstablishmentID string          `gorm:"type:varchar(36);index:idx_sale_sold_at;not null" json:"establishment_id"`
	MenuItemID      string          `gorm:"type:varchar(36);index;not null" json:"menu_item_id"`
	MenuItem        *MenuItem       `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty"`
	UserID          string          `gorm:"type:varchar(36);index" json:"user_id"`
	Quantity        float64         `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	VATRate         decimal.Decimal `gorm:"type:numeric(5,4);not null" json:"vat_rate"`
	SoldAt          time.Time       `gorm:"index:idx_sale_sold_at;not null" json:"sold_at"`
}
