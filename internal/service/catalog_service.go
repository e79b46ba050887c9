package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"astro-union/internal/dto"
	"astro-union/internal/model"
	"astro-union/internal/repository"
	"astro-union/pkg/redis"
)

// ── 展示目录模块业务错误 ──

var (
	ErrTagGroupNotFound   = errors.New("标签分组不存在")
	ErrColorPresetMissing = errors.New("颜色名未登记")
	ErrUnknownTags        = errors.New("存在未登记的标签")
)

const catalogCacheTTL = 5 * time.Minute

// CatalogService 展示目录业务接口
// 标签分组/标签/颜色预设的维护，以及供对账与事件构建使用的目录快照
type CatalogService interface {
	// Snapshot 租户目录快照（Redis 读穿缓存）
	Snapshot(ctx context.Context, tenantID string) (*dto.CatalogSnapshot, error)
	// FindMissingTags 返回入参中未登记的标签名
	FindMissingTags(ctx context.Context, tenantID string, tags []string) ([]string, error)

	CreateTagGroup(ctx context.Context, req *dto.CreateTagGroupRequest) (*model.TagGroup, error)
	DeleteTagGroup(ctx context.Context, tenantID, groupID string) error
	CreateTag(ctx context.Context, req *dto.CreateTagRequest) (*model.Tag, error)
	DeleteTag(ctx context.Context, tenantID, name string) error
	CreateColorPreset(ctx context.Context, req *dto.CreateColorPresetRequest) (*model.ColorPreset, error)
	DeleteColorPreset(ctx context.Context, tenantID, ownerID, name string) error
}

type catalogService struct {
	repo   *repository.Repository
	cache  *redis.Client // 可为 nil：降级为直连数据库
	logger *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(repo *repository.Repository, cache *redis.Client, logger *zap.Logger) CatalogService {
	return &catalogService{repo: repo, cache: cache, logger: logger}
}

func (s *catalogService) Snapshot(ctx context.Context, tenantID string) (*dto.CatalogSnapshot, error) {
	if s.cache != nil {
		if data, err := s.cache.GetCatalog(ctx, tenantID); err == nil && data != nil {
			var snapshot dto.CatalogSnapshot
			if err := json.Unmarshal(data, &snapshot); err == nil {
				return &snapshot, nil
			}
			// 缓存损坏时回落到数据库
		}
	}

	groups, err := s.repo.TagGroup.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	presets, err := s.repo.ColorPreset.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	snapshot := &dto.CatalogSnapshot{TagGroups: groups, Presets: presets}
	if s.cache != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := s.cache.CacheCatalog(ctx, tenantID, data, catalogCacheTTL); err != nil {
				s.logger.Warn("写入目录缓存失败", zap.String("tenant_id", tenantID), zap.Error(err))
			}
		}
	}
	return snapshot, nil
}

func (s *catalogService) FindMissingTags(ctx context.Context, tenantID string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	found, err := s.repo.Tag.FindByNames(ctx, tenantID, tags)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(found))
	for _, t := range found {
		known[t.Name] = true
	}
	var missing []string
	for _, name := range tags {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (s *catalogService) CreateTagGroup(ctx context.Context, req *dto.CreateTagGroupRequest) (*model.TagGroup, error) {
	group := &model.TagGroup{
		TenantID:    req.TenantID,
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if err := s.repo.TagGroup.Create(ctx, group); err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.TenantID)
	return group, nil
}

func (s *catalogService) DeleteTagGroup(ctx context.Context, tenantID, groupID string) error {
	group, err := s.repo.TagGroup.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagGroupNotFound
		}
		return err
	}
	if group.TenantID != tenantID {
		return ErrTagGroupNotFound
	}
	if err := s.repo.TagGroup.Delete(ctx, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *catalogService) CreateTag(ctx context.Context, req *dto.CreateTagRequest) (*model.Tag, error) {
	if req.GroupID != nil {
		group, err := s.repo.TagGroup.GetByID(ctx, *req.GroupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTagGroupNotFound
			}
			return nil, err
		}
		if group.TenantID != req.TenantID {
			return nil, ErrTagGroupNotFound
		}
	}
	tag := &model.Tag{
		TenantID:    req.TenantID,
		GroupID:     req.GroupID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.repo.Tag.Create(ctx, tag); err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.TenantID)
	return tag, nil
}

func (s *catalogService) DeleteTag(ctx context.Context, tenantID, name string) error {
	if err := s.repo.Tag.DeleteByName(ctx, tenantID, name); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *catalogService) CreateColorPreset(ctx context.Context, req *dto.CreateColorPresetRequest) (*model.ColorPreset, error) {
	preset := &model.ColorPreset{
		TenantID:    req.TenantID,
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		ColorCode:   req.ColorCode,
		Description: req.Description,
	}
	if err := s.repo.ColorPreset.Create(ctx, preset); err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.TenantID)
	return preset, nil
}

func (s *catalogService) DeleteColorPreset(ctx context.Context, tenantID, ownerID, name string) error {
	if err := s.repo.ColorPreset.Delete(ctx, tenantID, ownerID, name); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *catalogService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCatalog(ctx, tenantID); err != nil {
		s.logger.Warn("目录缓存失效失败", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
