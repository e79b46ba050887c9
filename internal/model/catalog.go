package model

// TagGroup 标签分组 — 对应 tag_groups
type TagGroup struct {
	GroupID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_id"`
	TenantID    string `gorm:"type:varchar(32);not null"                      json:"tenant_id"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	Description string `gorm:"type:varchar(500);not null;default:''"          json:"description,omitempty"`
	SortOrder   int    `gorm:"not null;default:0"                             json:"sort_order"`
	BaseModel

	// 关联
	Tags []Tag `gorm:"foreignKey:GroupID" json:"tags,omitempty"`
}

func (TagGroup) TableName() string { return "tag_groups" }

// Tag 标签 — 对应 tags
// GroupID 为 nil 时表示未分组标签
type Tag struct {
	TagID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"tag_id"`
	TenantID    string  `gorm:"type:varchar(32);not null"                      json:"tenant_id"`
	GroupID     *string `gorm:"type:uuid"                                      json:"group_id,omitempty"`
	Name        string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Description string  `gorm:"type:varchar(500);not null;default:''"          json:"description,omitempty"`
	BaseModel
}

func (Tag) TableName() string { return "tags" }

// ColorPreset 颜色预设 — 对应 color_presets
// 颜色名映射到外部日历的 colorId，按租户 + 账户隔离
type ColorPreset struct {
	PresetID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"preset_id"`
	TenantID    string `gorm:"type:varchar(32);not null"                      json:"tenant_id"`
	OwnerID     string `gorm:"type:uuid;not null"                             json:"owner_id"`
	Name        string `gorm:"type:varchar(50);not null"                      json:"name"`
	ColorCode   string `gorm:"type:varchar(10);not null"                      json:"color_code"`
	Description string `gorm:"type:varchar(500);not null;default:''"          json:"description,omitempty"`
	BaseModel
}

func (ColorPreset) TableName() string { return "color_presets" }

// Setting 键值设置 — 对应 settings（图例事件 ID 等）
type Setting struct {
	TenantID string `gorm:"type:varchar(32);primaryKey" json:"tenant_id"`
	Key      string `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value    string `gorm:"type:text;not null;default:''" json:"value"`
}

func (Setting) TableName() string { return "settings" }
