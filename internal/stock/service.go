package stock

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/models"
	"stockguard/internal/unit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReceiveInput struct {
	ProductID string
	Quantity  float64
	Unit      string // defaults to the product unit
	UnitPrice decimal.Decimal
	ExpiresAt *time.Time
	Supplier  string
}

// Level is the stock on hand of one product, in the product's unit.
type Level struct {
	ProductID string                 `json:"product_id"`
	Name      string                 `json:"name"`
	Category  models.ProductCategory `json:"category"`
	Unit      string                 `json:"unit"`
	Quantity  float64                `json:"quantity"`
	MinStock  float64                `json:"min_stock"`
	Low       bool                   `json:"low"`
	Lots      int                    `json:"lots"`
}

// Service backs the stock endpoints: lot reception and stock read models.
type Service struct {
	repo Queries
	conv *unit.Converter
	log  *zap.Logger
}

func NewService(repo Queries, conv *unit.Converter, log *zap.Logger) *Service {
	return &Service{repo: repo, conv: conv, log: log.Named("stock")}
}

func (s *Service) Receive(ctx context.Context, establishmentID string, in ReceiveInput) (*models.StockLot, error) {
	if math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) || in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("unit price must not be negative: %w", apperr.ErrInvalid)
	}

	product, err := s.repo.Product(ctx, establishmentID, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("product %s is deactivated: %w", product.ID, apperr.ErrInvalid)
	}

	lotUnit := strings.TrimSpace(in.Unit)
	if lotUnit == "" {
		lotUnit = product.Unit
	}
	if _, ok := unit.Factor(lotUnit, product.Unit); !ok {
		return nil, fmt.Errorf("unit %q cannot be converted to %q: %w", lotUnit, product.Unit, apperr.ErrInvalid)
	}

	lot := &models.StockLot{
		EstablishmentID: establishmentID,
		ProductID:       product.ID,
		Quantity:        in.Quantity,
		Unit:            lotUnit,
		UnitPrice:       in.UnitPrice,
		ExpiresAt:       in.ExpiresAt,
		Supplier:        strings.TrimSpace(in.Supplier),
	}
	if err := s.repo.InsertLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("insert lot: %w", err)
	}
	s.log.Info("lot received",
		zap.String("establishment_id", establishmentID),
		zap.String("product_id", product.ID),
		zap.String("lot_id", lot.ID),
		zap.Float64("quantity", lot.Quantity),
	)
	return lot, nil
}

func (s *Service) Lots(ctx context.Context, establishmentID, productID string, order Order) ([]models.StockLot, error) {
	if _, err := s.repo.Product(ctx, establishmentID, productID); err != nil {
		return nil, err
	}
	return SelectLots(ctx, s.repo, LotQuery{
		EstablishmentID: establishmentID,
		ProductID:       productID,
		Order:           order,
	})
}

// Levels sums available lots per active product.
func (s *Service) Levels(ctx context.Context, establishmentID string) ([]Level, error) {
	products, err := s.repo.ActiveProducts(ctx, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	lots, err := s.repo.AvailableLots(ctx, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	levels := make([]Level, 0, len(products))
	index := make(map[string]int, len(products))
	for _, p := range products {
		index[p.ID] = len(levels)
		levels = append(levels, Level{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Unit:      p.Unit,
			MinStock:  p.MinStock,
		})
	}
	for _, l := range lots {
		i, ok := index[l.ProductID]
		if !ok {
			continue
		}
		levels[i].Quantity += s.conv.Convert(l.Quantity, l.Unit, levels[i].Unit)
		levels[i].Lots++
	}
	for i := range levels {
		levels[i].Low = levels[i].MinStock > 0 && levels[i].Quantity < levels[i].MinStock
	}
	return levels, nil
}

// LowStock is the subset of Levels below their minimum threshold.
func (s *Service) LowStock(ctx context.Context, establishmentID string) ([]Level, error) {
	levels, err := s.Levels(ctx, establishmentID)
	if err != nil {
		return nil, err
	}
	low := make([]Level, 0)
	for _, l := range levels {
		if l.Low {
			low = append(low, l)
		}
	}
	return low, nil
}

// maxExpiringDays bounds the look-ahead of Expiring.
const maxExpiringDays = 366

// Expiring lists non-empty lots expiring within days of now, soonest first.
func (s *Service) Expiring(ctx context.Context, establishmentID string, now time.Time, days int) ([]models.StockLot, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative: %w", apperr.ErrInvalid)
	}
	before := now.UTC().AddDate(0, 0, min(days, maxExpiringDays))
	return s.repo.ExpiringLots(ctx, establishmentID, before)
}
