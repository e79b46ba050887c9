package dto

import "astro-union/internal/model"

// ── 展示目录请求 ──

// CreateTagGroupRequest 创建标签分组请求
type CreateTagGroupRequest struct {
	TenantID    string `json:"tenant_id"   binding:"required"`
	Name        string `json:"name"        binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	SortOrder   int    `json:"sort_order"  binding:"omitempty,min=0"`
}

// CreateTagRequest 创建标签请求
type CreateTagRequest struct {
	TenantID    string  `json:"tenant_id"   binding:"required"`
	GroupID     *string `json:"group_id"    binding:"omitempty,uuid"`
	Name        string  `json:"name"        binding:"required,max=100"`
	Description string  `json:"description" binding:"max=500"`
}

// CreateColorPresetRequest 创建颜色预设请求
type CreateColorPresetRequest struct {
	TenantID    string `json:"tenant_id"   binding:"required"`
	OwnerID     string `json:"owner_id"    binding:"required,uuid"`
	Name        string `json:"name"        binding:"required,max=50"`
	ColorCode   string `json:"color_code"  binding:"required,max=10"`
	Description string `json:"description" binding:"max=500"`
}

// ── 展示目录响应 / 快照 ──

// CatalogSnapshot 租户展示目录快照（Redis 缓存单元）
type CatalogSnapshot struct {
	TagGroups []model.TagGroup    `json:"tag_groups"`
	Presets   []model.ColorPreset `json:"presets"`
}

// PresetForOwner 按账户 + 颜色名查找预设；未命中返回 nil
func (s *CatalogSnapshot) PresetForOwner(ownerID, name string) *model.ColorPreset {
	if name == "" {
		return nil
	}
	for i := range s.Presets {
		if s.Presets[i].OwnerID == ownerID && s.Presets[i].Name == name {
			return &s.Presets[i]
		}
	}
	return nil
}

// PresetsForOwner 按账户过滤预设
func (s *CatalogSnapshot) PresetsForOwner(ownerID string) []model.ColorPreset {
	var out []model.ColorPreset
	for _, p := range s.Presets {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out
}
