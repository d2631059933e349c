package models

// Establishment is the tenant. Everything else is partitioned by its ID.
type Establishment struct {
	Model
	Name          string `gorm:"size:100;not null" json:"name"`
	Address       string `gorm:"size:255" json:"address"`
	SIRET         string `gorm:"size:14" json:"siret"`
	VATRegistered bool   `gorm:"not null" json:"vat_registered"`
}
