package accounting

import (
	"context"
	"fmt"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChecklistKeys are the closing steps every quarter goes through, in display order.
var ChecklistKeys = []string{
	"sales_reconciled",
	"waste_reviewed",
	"stock_counted",
	"invoices_archived",
}

type ChecklistView struct {
	Key       string     `json:"key"`
	Checked   bool       `json:"checked"`
	CheckedBy string     `json:"checked_by,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

func knownKey(k string) bool {
	for _, key := range ChecklistKeys {
		if key == k {
			return true
		}
	}
	return false
}

func complete(items []ChecklistView) bool {
	for _, it := range items {
		if !it.Checked {
			return false
		}
	}
	return len(items) > 0
}

// Checklist returns every step of the quarter; steps never touched are unchecked.
func (s *Service) Checklist(ctx context.Context, establishmentID string, year, quarter int) ([]ChecklistView, error) {
	if _, _, err := QuarterBounds(year, quarter, s.loc); err != nil {
		return nil, err
	}

	var rows []models.ChecklistItem
	if err := s.db.WithContext(ctx).
		Where("establishment_id = ? AND year = ? AND quarter = ?", establishmentID, year, quarter).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load checklist: %w", err)
	}
	stored := make(map[string]models.ChecklistItem, len(rows))
	for _, r := range rows {
		stored[r.Key] = r
	}

	out := make([]ChecklistView, 0, len(ChecklistKeys))
	for _, k := range ChecklistKeys {
		v := ChecklistView{Key: k}
		if r, ok := stored[k]; ok && r.Checked {
			v.Checked = true
			v.CheckedBy = r.CheckedBy
			v.CheckedAt = r.CheckedAt
		}
		out = append(out, v)
	}
	return out, nil
}

// SetChecklist checks or unchecks the given steps and returns the whole checklist.
func (s *Service) SetChecklist(ctx context.Context, establishmentID, userID string, year, quarter int, items map[string]bool) ([]ChecklistView, error) {
	if _, _, err := QuarterBounds(year, quarter, s.loc); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no checklist item given: %w", apperr.ErrInvalid)
	}
	for k := range items {
		if !knownKey(k) {
			return nil, fmt.Errorf("unknown checklist item %q: %w", k, apperr.ErrInvalid)
		}
	}

	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range ChecklistKeys {
			checked, ok := items[k]
			if !ok {
				continue
			}
			row := models.ChecklistItem{
				EstablishmentID: establishmentID,
				Year:            year,
				Quarter:         quarter,
				Key:             k,
				Checked:         checked,
			}
			if checked {
				row.CheckedBy = userID
				row.CheckedAt = &now
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "establishment_id"}, {Name: "year"}, {Name: "quarter"}, {Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"checked", "checked_by", "checked_at", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("save checklist item %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Checklist(ctx, establishmentID, year, quarter)
}
