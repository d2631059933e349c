package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"stockguard/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LogOptions struct {
	EstablishmentID string
	UserID          string
	EntityType      string
	EntityID        string
	Action          models.AuditAction
	Description     string
	Before          any
	After           any
}

type Filter struct {
	EntityType string
	EntityID   string
	UserID     string
	Limit      int
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("audit")}
}

func (s *Service) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := models.AuditLog{
		ID:              uuid.NewString(),
		EstablishmentID: opts.EstablishmentID,
		UserID:          opts.UserID,
		EntityType:      opts.EntityType,
		EntityID:        opts.EntityID,
		Action:          opts.Action,
		Description:     opts.Description,
		BeforeData:      snapshot(opts.Before),
		AfterData:       snapshot(opts.After),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record writes a log entry and only logs a failure. Audit must never fail the mutation it describes.
func (s *Service) Record(ctx context.Context, opts LogOptions) {
	if err := s.WriteLog(ctx, opts); err != nil {
		s.log.Warn("audit log not written",
			zap.String("entity_type", opts.EntityType),
			zap.String("entity_id", opts.EntityID),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, establishmentID string, f Filter) ([]models.AuditLog, error) {
	dbq := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("establishment_id = ?", establishmentID)
	if f.EntityType != "" {
		dbq = dbq.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		dbq = dbq.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != "" {
		dbq = dbq.Where("user_id = ?", f.UserID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := dbq.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// snapshot encodes v for a jsonb column. Absent values are stored as JSON null.
func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
