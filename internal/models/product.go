package models

type ProductCategory string

const (
	CategoryFrozen ProductCategory = "frozen"
	CategoryFresh  ProductCategory = "fresh"
	CategoryDry    ProductCategory = "dry"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryFrozen, CategoryFresh, CategoryDry:
		return true
	}
	return false
}

// Product is a stockable item. Deactivated rather than deleted so sales and lots keep their reference.
type Product struct {
	Model
	EstablishmentID string          `gorm:"type:varchar(36);index;not null" json:"establishment_id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Category        ProductCategory `gorm:"size:20;not null" json:"category"`
	Unit            string          `gorm:"size:20;not null" json:"unit"` // canonical stock unit: kg, g, L, cl, ml, units, pieces
	MinStock        float64         `gorm:"not null" json:"min_stock"`
	Icon            string          `gorm:"size:50" json:"icon"`
	Active          bool            `gorm:"not null" json:"active"`
}
