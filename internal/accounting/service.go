// Package accounting prepares the quarterly URSSAF declaration of a micro-enterprise restaurant:
// revenue per VAT rate, estimated contribution, threshold alerts and a closing checklist.
package accounting

import (
	"context"
	"fmt"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/config"
	"stockguard/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidPeriod       = fmt.Errorf("year or quarter out of range: %w", apperr.ErrInvalid)
	ErrChecklistIncomplete = fmt.Errorf("quarter checklist is not complete: %w", apperr.ErrConflict)
)

// Settings are the micro-BIC parameters, in euros.
type Settings struct {
	URSSAFRate            decimal.Decimal
	RevenueCeiling        decimal.Decimal
	VATFranchiseThreshold decimal.Decimal
}

func SettingsFrom(cfg config.AccountingConfig) Settings {
	return Settings{
		URSSAFRate:            decimal.NewFromFloat(cfg.URSSAFRate),
		RevenueCeiling:        decimal.NewFromFloat(cfg.RevenueCeiling),
		VATFranchiseThreshold: decimal.NewFromFloat(cfg.VATFranchiseThreshold),
	}
}

type RateLine struct {
	VATRate    decimal.Decimal `json:"vat_rate"`
	Sales      int             `json:"sales"`
	RevenueTTC decimal.Decimal `json:"revenue_ttc"`
	RevenueHT  decimal.Decimal `json:"revenue_ht"`
	VAT        decimal.Decimal `json:"vat"`
}

type MonthLine struct {
	Month      time.Month      `json:"month"`
	Sales      int             `json:"sales"`
	RevenueTTC decimal.Decimal `json:"revenue_ttc"`
	RevenueHT  decimal.Decimal `json:"revenue_ht"`
}

type Synthesis struct {
	Year               int             `json:"year"`
	Quarter            int             `json:"quarter"`
	From               string          `json:"from"`
	To                 string          `json:"to"` // inclusive
	Sales              int             `json:"sales"`
	RevenueTTC         decimal.Decimal `json:"revenue_ttc"`
	RevenueHT          decimal.Decimal `json:"revenue_ht"`
	VAT                decimal.Decimal `json:"vat"`
	URSSAFRate         decimal.Decimal `json:"urssaf_rate"`
	URSSAFContribution decimal.Decimal `json:"urssaf_contribution"`
	WasteEntries       int             `json:"waste_entries"`
	ByRate             []RateLine      `json:"by_rate"`
	ByMonth            []MonthLine     `json:"by_month"`
	Checklist          []ChecklistView `json:"checklist"`
	ChecklistComplete  bool            `json:"checklist_complete"`
}

type Service struct {
	db       *gorm.DB
	x        *sqlx.DB
	settings Settings
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, x *sqlx.DB, settings Settings, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: db, x: x, settings: settings, loc: loc, log: log.Named("accounting"), now: time.Now}
}

// QuarterBounds returns [from, to) of a calendar quarter in loc.
func QuarterBounds(year, quarter int, loc *time.Location) (from, to time.Time, err error) {
	if year < 2000 || year > 2100 || quarter < 1 || quarter > 4 {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	from = time.Date(year, time.Month(3*(quarter-1)+1), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 3, 0), nil
}

// excludingVAT splits a VAT-inclusive amount. HT is rounded half-up to cents and VAT takes the remainder.
func excludingVAT(ttc, rate decimal.Decimal) (ht, vat decimal.Decimal) {
	ht = ttc.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
	return ht, ttc.Sub(ht)
}

func (s *Service) byRate(ctx context.Context, establishmentID string, from, to time.Time) ([]RateLine, error) {
	var rows []struct {
		VATRate decimal.Decimal `db:"vat_rate"`
		Sales   int             `db:"sales"`
		Revenue decimal.Decimal `db:"revenue"`
	}
	q := s.x.Rebind(`SELECT vat_rate, COUNT(*) AS sales, COALESCE(SUM(total_price), 0) AS revenue
		FROM sales
		WHERE establishment_id = ? AND sold_at >= ? AND sold_at < ?
		GROUP BY vat_rate
		ORDER BY vat_rate`)
	if err := s.x.SelectContext(ctx, &rows, q, establishmentID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("revenue by vat rate: %w", err)
	}

	lines := make([]RateLine, 0, len(rows))
	for _, r := range rows {
		ttc := r.Revenue.Round(2)
		ht, vat := excludingVAT(ttc, r.VATRate)
		lines = append(lines, RateLine{VATRate: r.VATRate, Sales: r.Sales, RevenueTTC: ttc, RevenueHT: ht, VAT: vat})
	}
	return lines, nil
}

func (s *Service) wasteCount(ctx context.Context, establishmentID string, from, to time.Time) (int, error) {
	var n int
	q := s.x.Rebind(`SELECT COUNT(*) FROM waste_entries WHERE establishment_id = ? AND date >= ? AND date < ?`)
	if err := s.x.GetContext(ctx, &n, q, establishmentID, from.UTC(), to.UTC()); err != nil {
		return 0, fmt.Errorf("count waste entries: %w", err)
	}
	return n, nil
}

// Quarter computes the declaration figures of one quarter.
func (s *Service) Quarter(ctx context.Context, establishmentID string, year, quarter int) (*Synthesis, error) {
	from, to, err := QuarterBounds(year, quarter, s.loc)
	if err != nil {
		return nil, err
	}

	syn := &Synthesis{
		Year:       year,
		Quarter:    quarter,
		From:       from.Format("2006-01-02"),
		To:         to.AddDate(0, 0, -1).Format("2006-01-02"),
		RevenueTTC: decimal.Zero,
		RevenueHT:  decimal.Zero,
		VAT:        decimal.Zero,
		URSSAFRate: s.settings.URSSAFRate,
	}

	if syn.ByRate, err = s.byRate(ctx, establishmentID, from, to); err != nil {
		return nil, err
	}
	for _, l := range syn.ByRate {
		syn.Sales += l.Sales
		syn.RevenueTTC = syn.RevenueTTC.Add(l.RevenueTTC)
		syn.RevenueHT = syn.RevenueHT.Add(l.RevenueHT)
		syn.VAT = syn.VAT.Add(l.VAT)
	}
	syn.URSSAFContribution = syn.RevenueHT.Mul(s.settings.URSSAFRate).Round(2)

	for m := from; m.Before(to); m = m.AddDate(0, 1, 0) {
		lines, err := s.byRate(ctx, establishmentID, m, m.AddDate(0, 1, 0))
		if err != nil {
			return nil, err
		}
		ml := MonthLine{Month: m.Month(), RevenueTTC: decimal.Zero, RevenueHT: decimal.Zero}
		for _, l := range lines {
			ml.Sales += l.Sales
			ml.RevenueTTC = ml.RevenueTTC.Add(l.RevenueTTC)
			ml.RevenueHT = ml.RevenueHT.Add(l.RevenueHT)
		}
		syn.ByMonth = append(syn.ByMonth, ml)
	}

	if syn.WasteEntries, err = s.wasteCount(ctx, establishmentID, from, to); err != nil {
		return nil, err
	}

	if syn.Checklist, err = s.Checklist(ctx, establishmentID, year, quarter); err != nil {
		return nil, err
	}
	syn.ChecklistComplete = complete(syn.Checklist)
	return syn, nil
}
