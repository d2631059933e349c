package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Summary is the revenue of a period, VAT included.
type Summary struct {
	Sales   int             `db:"sales" json:"sales"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}

type Totals struct {
	Today Summary `json:"today"`
	Month Summary `json:"month"`
}

type DailyTotal struct {
	Date    string          `json:"date"` // YYYY-MM-DD in the report location
	Sales   int             `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Reports runs read-only aggregates straight on the sales table.
type Reports struct {
	db  *sqlx.DB
	loc *time.Location
	now func() time.Time
}

// NewReports builds reports whose days and months start at midnight in loc.
func NewReports(db *sqlx.DB, loc *time.Location) *Reports {
	if loc == nil {
		loc = time.Local
	}
	return &Reports{db: db, loc: loc, now: time.Now}
}

func (r *Reports) sum(ctx context.Context, establishmentID string, from, to time.Time) (Summary, error) {
	var s Summary
	q := r.db.Rebind(`SELECT COUNT(*) AS sales, COALESCE(SUM(total_price), 0) AS revenue
		FROM sales
		WHERE establishment_id = ? AND sold_at >= ? AND sold_at < ?`)
	if err := r.db.GetContext(ctx, &s, q, establishmentID, from.UTC(), to.UTC()); err != nil {
		return Summary{}, fmt.Errorf("sum sales: %w", err)
	}
	s.Revenue = s.Revenue.Round(2)
	return s, nil
}

func (r *Reports) TodayTotal(ctx context.Context, establishmentID string) (Summary, error) {
	start := startOfDay(r.now().In(r.loc))
	return r.sum(ctx, establishmentID, start, start.AddDate(0, 0, 1))
}

func (r *Reports) MonthTotal(ctx context.Context, establishmentID string) (Summary, error) {
	now := r.now().In(r.loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)
	return r.sum(ctx, establishmentID, start, start.AddDate(0, 1, 0))
}

func (r *Reports) Totals(ctx context.Context, establishmentID string) (Totals, error) {
	today, err := r.TodayTotal(ctx, establishmentID)
	if err != nil {
		return Totals{}, err
	}
	month, err := r.MonthTotal(ctx, establishmentID)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Today: today, Month: month}, nil
}

// Daily breaks the calendar days [from, to) down, read in the report location.
// Days without sales are included.
func (r *Reports) Daily(ctx context.Context, establishmentID string, from, to time.Time) ([]DailyTotal, error) {
	from = r.calendarDay(from)
	to = r.calendarDay(to)
	if !to.After(from) {
		return []DailyTotal{}, nil
	}

	// day truncation differs per dialect and time zone, so rows are bucketed here
	var rows []struct {
		SoldAt     time.Time       `db:"sold_at"`
		TotalPrice decimal.Decimal `db:"total_price"`
	}
	q := r.db.Rebind(`SELECT sold_at, total_price
		FROM sales
		WHERE establishment_id = ? AND sold_at >= ? AND sold_at < ?
		ORDER BY sold_at`)
	if err := r.db.SelectContext(ctx, &rows, q, establishmentID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}

	var out []DailyTotal
	index := make(map[string]int)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		index[key] = len(out)
		out = append(out, DailyTotal{Date: key, Revenue: decimal.Zero})
	}
	for _, row := range rows {
		i, ok := index[row.SoldAt.In(r.loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		out[i].Sales++
		out[i].Revenue = out[i].Revenue.Add(row.TotalPrice)
	}
	for i := range out {
		out[i].Revenue = out[i].Revenue.Round(2)
	}
	return out, nil
}

// calendarDay keeps t's date and moves it to midnight in the report location.
func (r *Reports) calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
