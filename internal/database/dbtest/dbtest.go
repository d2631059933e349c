// Package dbtest opens throwaway in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"stockguard/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated database private to t.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps transactions from tripping over SQLite table locks
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Establishment inserts a tenant and returns its ID.
func Establishment(t testing.TB, db *gorm.DB, name string) string {
	t.Helper()
	e := models.Establishment{Name: name}
	if err := db.Create(&e).Error; err != nil {
		t.Fatalf("seed establishment: %v", err)
	}
	return e.ID
}

// Product inserts an active product.
func Product(t testing.TB, db *gorm.DB, establishmentID, name, unit string) models.Product {
	t.Helper()
	p := models.Product{
		EstablishmentID: establishmentID,
		Name:            name,
		Category:        models.CategoryDry,
		Unit:            unit,
		Active:          true,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}
