package model

// Tenant 租户 — 对应 tenants
// 一个租户即一个独立社区/服务器，拥有自己的活动台账与展示目录
type Tenant struct {
	TenantID string `gorm:"type:varchar(32);primaryKey"  json:"tenant_id"`
	Name     string `gorm:"type:varchar(100);not null"   json:"name"`
	IsActive bool   `gorm:"not null;default:true"        json:"is_active"`
	BaseModel
}

func (Tenant) TableName() string { return "tenants" }
