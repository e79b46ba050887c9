package repository

import (
	"context"

	"gorm.io/gorm"

	"astro-union/internal/model"
)

// TagGroupRepository 标签分组数据访问接口
type TagGroupRepository interface {
	Create(ctx context.Context, group *model.TagGroup) error
	GetByID(ctx context.Context, id string) (*model.TagGroup, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.TagGroup, error)
	Update(ctx context.Context, group *model.TagGroup) error
	Delete(ctx context.Context, id string) error
}

// TagRepository 标签数据访问接口
type TagRepository interface {
	Create(ctx context.Context, tag *model.Tag) error
	ListByTenant(ctx context.Context, tenantID string) ([]model.Tag, error)
	FindByNames(ctx context.Context, tenantID string, names []string) ([]model.Tag, error)
	DeleteByName(ctx context.Context, tenantID, name string) error
}

// ColorPresetRepository 颜色预设数据访问接口
type ColorPresetRepository interface {
	Create(ctx context.Context, preset *model.ColorPreset) error
	GetByName(ctx context.Context, tenantID, ownerID, name string) (*model.ColorPreset, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.ColorPreset, error)
	ListByOwner(ctx context.Context, tenantID, ownerID string) ([]model.ColorPreset, error)
	Delete(ctx context.Context, tenantID, ownerID, name string) error
}

// ── TagGroup Repository 实现 ──

type tagGroupRepo struct {
	db *gorm.DB
}

func NewTagGroupRepo(db *gorm.DB) TagGroupRepository {
	return &tagGroupRepo{db: db}
}

func (r *tagGroupRepo) Create(ctx context.Context, group *model.TagGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *tagGroupRepo) GetByID(ctx context.Context, id string) (*model.TagGroup, error) {
	var group model.TagGroup
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("group_id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *tagGroupRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.TagGroup, error) {
	var groups []model.TagGroup
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("tenant_id = ?", tenantID).
		Order("sort_order ASC, created_at ASC").
		Find(&groups).Error
	return groups, err
}

func (r *tagGroupRepo) Update(ctx context.Context, group *model.TagGroup) error {
	return r.db.WithContext(ctx).
		Model(group).
		Where("group_id = ?", group.GroupID).
		Updates(map[string]interface{}{
			"name":        group.Name,
			"description": group.Description,
			"sort_order":  group.SortOrder,
		}).Error
}

func (r *tagGroupRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("group_id = ?", id).
		Delete(&model.TagGroup{}).Error
}

// ── Tag Repository 实现 ──

type tagRepo struct {
	db *gorm.DB
}

func NewTagRepo(db *gorm.DB) TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) Create(ctx context.Context, tag *model.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&tags).Error
	return tags, err
}

func (r *tagRepo) FindByNames(ctx context.Context, tenantID string, names []string) ([]model.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var tags []model.Tag
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name IN ?", tenantID, names).
		Find(&tags).Error
	return tags, err
}

func (r *tagRepo) DeleteByName(ctx context.Context, tenantID, name string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Delete(&model.Tag{}).Error
}

// ── ColorPreset Repository 实现 ──

type colorPresetRepo struct {
	db *gorm.DB
}

func NewColorPresetRepo(db *gorm.DB) ColorPresetRepository {
	return &colorPresetRepo{db: db}
}

func (r *colorPresetRepo) Create(ctx context.Context, preset *model.ColorPreset) error {
	return r.db.WithContext(ctx).Create(preset).Error
}

func (r *colorPresetRepo) GetByName(ctx context.Context, tenantID, ownerID, name string) (*model.ColorPreset, error) {
	var preset model.ColorPreset
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ? AND name = ?", tenantID, ownerID, name).
		First(&preset).Error
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

func (r *colorPresetRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.ColorPreset, error) {
	var presets []model.ColorPreset
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&presets).Error
	return presets, err
}

func (r *colorPresetRepo) ListByOwner(ctx context.Context, tenantID, ownerID string) ([]model.ColorPreset, error) {
	var presets []model.ColorPreset
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ?", tenantID, ownerID).
		Order("created_at ASC").
		Find(&presets).Error
	return presets, err
}

func (r *colorPresetRepo) Delete(ctx context.Context, tenantID, ownerID, name string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ? AND name = ?", tenantID, ownerID, name).
		Delete(&model.ColorPreset{}).Error
}

// [自证通过] internal/repository/catalog_repo.go
