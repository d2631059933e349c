package models

import "github.com/shopspring/decimal"

// MenuItem is a sellable recipe. Price includes VAT.
type MenuItem struct {
	Model
	EstablishmentID string          `gorm:"type:varchar(36);index;not null" json:"establishment_id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Price           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	VATRate         decimal.Decimal `gorm:"type:numeric(5,4);not null" json:"vat_rate"`
	Active          bool            `gorm:"not null" json:"active"`
	Ingredients     []Ingredient    `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE" json:"ingredients"`
}

// Ingredient links a menu item to a product with a per-portion quantity in Unit.
type Ingredient struct {
	Model
	MenuItemID string  `gorm:"type:varchar(36);index;not null" json:"menu_item_id"`
	ProductID  string  `gorm:"type:varchar(36);index;not null" json:"product_id"`
	Quantity   float64 `gorm:"not null" json:"quantity"`
	Unit       string  `gorm:"size:20;not null" json:"unit"`
}
