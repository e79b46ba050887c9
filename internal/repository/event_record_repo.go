package repository

import (
	"context"

	"gorm.io/gorm"

	"astro-union/internal/model"
)

// EventRecordRepository 活动台账数据访问接口
type EventRecordRepository interface {
	Create(ctx context.Context, record *model.EventRecord) error
	GetByID(ctx context.Context, id string) (*model.EventRecord, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]model.EventRecord, error)
	ListActiveByOwner(ctx context.Context, tenantID, ownerID string) ([]model.EventRecord, error)
	SearchByName(ctx context.Context, tenantID, name string) ([]model.EventRecord, error)
	Update(ctx context.Context, record *model.EventRecord) error
	UpdateExternalMappings(ctx context.Context, eventID string, mappings model.ExternalMappings) error
	Deactivate(ctx context.Context, eventID string) error
}

type eventRecordRepo struct {
	db *gorm.DB
}

func NewEventRecordRepo(db *gorm.DB) EventRecordRepository {
	return &eventRecordRepo{db: db}
}

func (r *eventRecordRepo) Create(ctx context.Context, record *model.EventRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *eventRecordRepo) GetByID(ctx context.Context, id string) (*model.EventRecord, error) {
	var record model.EventRecord
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("event_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *eventRecordRepo) ListActiveByTenant(ctx context.Context, tenantID string) ([]model.EventRecord, error) {
	var records []model.EventRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *eventRecordRepo) ListActiveByOwner(ctx context.Context, tenantID, ownerID string) ([]model.EventRecord, error) {
	var records []model.EventRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ? AND is_active = ?", tenantID, ownerID, true).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *eventRecordRepo) SearchByName(ctx context.Context, tenantID, name string) ([]model.EventRecord, error) {
	var records []model.EventRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ? AND name LIKE ?", tenantID, true, "%"+name+"%").
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *eventRecordRepo) Update(ctx context.Context, record *model.EventRecord) error {
	return r.db.WithContext(ctx).
		Model(record).
		Where("event_id = ?", record.EventID).
		Updates(map[string]interface{}{
			"name":             record.Name,
			"description":      record.Description,
			"recurrence_kind":  record.RecurrenceKind,
			"weekday":          record.Weekday,
			"nth_weeks":        record.NthWeeks,
			"time_of_day":      record.TimeOfDay,
			"duration_minutes": record.DurationMinutes,
			"tags":             record.Tags,
			"color_name":       record.ColorName,
			"links":            record.Links,
		}).Error
}

// UpdateExternalMappings 写回外部映射（对账核心对台账的唯一写入点之一）
func (r *eventRecordRepo) UpdateExternalMappings(ctx context.Context, eventID string, mappings model.ExternalMappings) error {
	return r.db.WithContext(ctx).
		Model(&model.EventRecord{}).
		Where("event_id = ?", eventID).
		Update("external_events", mappings).Error
}

// Deactivate 软删除：永久排除在后续对账之外
func (r *eventRecordRepo) Deactivate(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Model(&model.EventRecord{}).
		Where("event_id = ?", eventID).
		Update("is_active", false).Error
}
