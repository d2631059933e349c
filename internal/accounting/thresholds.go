package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelExceeded Level = "exceeded"
)

var warningRatio = decimal.RequireFromString("0.8")

type Threshold struct {
	Name    string          `json:"name"`
	Limit   decimal.Decimal `json:"limit"`
	Revenue decimal.Decimal `json:"revenue"`
	Percent decimal.Decimal `json:"percent"`
	Level   Level           `json:"level"`
}

type ThresholdReport struct {
	Year      int             `json:"year"`
	RevenueHT decimal.Decimal `json:"revenue_ht"`
	Through   string          `json:"through"` // last day counted
	Alerts    []Threshold     `json:"alerts"`
}

func levelFor(revenue, limit decimal.Decimal) Level {
	if !limit.IsPositive() {
		return LevelOK
	}
	switch {
	case revenue.GreaterThanOrEqual(limit):
		return LevelExceeded
	case revenue.GreaterThanOrEqual(limit.Mul(warningRatio)):
		return LevelWarning
	}
	return LevelOK
}

func threshold(name string, revenue, limit decimal.Decimal) Threshold {
	t := Threshold{Name: name, Limit: limit, Revenue: revenue, Percent: decimal.Zero, Level: levelFor(revenue, limit)}
	if limit.IsPositive() {
		t.Percent = revenue.Div(limit).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return t
}

// Thresholds compares the year-to-date revenue, VAT excluded, with the micro-enterprise
// revenue ceiling and the VAT franchise threshold.
func (s *Service) Thresholds(ctx context.Context, establishmentID string, year int) (*ThresholdReport, error) {
	from, _, err := QuarterBounds(year, 1, s.loc)
	if err != nil {
		return nil, err
	}
	to := from.AddDate(1, 0, 0)
	if now := s.now().In(s.loc); now.Before(to) {
		to = startOfNextDay(now)
	}

	report := &ThresholdReport{Year: year, RevenueHT: decimal.Zero, Through: to.AddDate(0, 0, -1).Format("2006-01-02")}
	if to.After(from) {
		lines, err := s.byRate(ctx, establishmentID, from, to)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			report.RevenueHT = report.RevenueHT.Add(l.RevenueHT)
		}
	}

	report.Alerts = []Threshold{
		threshold("revenue_ceiling", report.RevenueHT, s.settings.RevenueCeiling),
		threshold("vat_franchise", report.RevenueHT, s.settings.VATFranchiseThreshold),
	}
	return report, nil
}

func startOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
