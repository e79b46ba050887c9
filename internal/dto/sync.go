package dto

import "time"

// ── 对账模块响应 ──

// OwnerSyncReport 单个日历账户的对账结果
type OwnerSyncReport struct {
	OwnerID   string `json:"owner_id"`
	Checked   int    `json:"checked"`   // 已比对的记录数
	Repaired  int    `json:"repaired"`  // 部分字段修复数
	Recreated int    `json:"recreated"` // 上游删除后重建数
	Failed    int    `json:"failed"`    // 本轮失败（下轮重试）数
	Excluded  int    `json:"excluded"`  // 校验不通过被排除的记录数
	Skipped   bool   `json:"skipped"`   // 凭证不可用，整体跳过
}

// TenantSyncReport 单租户的对账结果
type TenantSyncReport struct {
	TenantID string            `json:"tenant_id"`
	Owners   []OwnerSyncReport `json:"owners"`
}

// Totals 汇总租户内各账户的计数
func (r *TenantSyncReport) Totals() (checked, repaired, recreated, failed int) {
	for _, o := range r.Owners {
		checked += o.Checked
		repaired += o.Repaired
		recreated += o.Recreated
		failed += o.Failed
	}
	return
}

// SyncReport 一轮完整对账的结果
type SyncReport struct {
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Tenants    []TenantSyncReport `json:"tenants"`
}

// TokenRequest 运维 Token 换取请求
type TokenRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
	Subject  string `json:"subject"   binding:"omitempty,max=100"`
}

// TokenResponse 运维 Token 响应
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}
