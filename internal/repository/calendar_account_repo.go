package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"astro-union/internal/model"
)

// CalendarAccountRepository 日历账户数据访问接口
type CalendarAccountRepository interface {
	Create(ctx context.Context, account *model.CalendarAccount) error
	GetByID(ctx context.Context, id string) (*model.CalendarAccount, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]model.CalendarAccount, error)
	Update(ctx context.Context, account *model.CalendarAccount) error
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry *time.Time) error
	Deactivate(ctx context.Context, id string) error
}

type calendarAccountRepo struct {
	db *gorm.DB
}

func NewCalendarAccountRepo(db *gorm.DB) CalendarAccountRepository {
	return &calendarAccountRepo{db: db}
}

func (r *calendarAccountRepo) Create(ctx context.Context, account *model.CalendarAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *calendarAccountRepo) GetByID(ctx context.Context, id string) (*model.CalendarAccount, error) {
	var account model.CalendarAccount
	err := r.db.WithContext(ctx).
		Where("account_id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *calendarAccountRepo) ListActiveByTenant(ctx context.Context, tenantID string) ([]model.CalendarAccount, error) {
	var accounts []model.CalendarAccount
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *calendarAccountRepo) Update(ctx context.Context, account *model.CalendarAccount) error {
	return r.db.WithContext(ctx).
		Model(account).
		Where("account_id = ?", account.AccountID).
		Updates(map[string]interface{}{
			"label":       account.Label,
			"calendar_id": account.CalendarID,
			"is_active":   account.IsActive,
		}).Error
}

// UpdateTokens 持久化刷新后的 OAuth 凭证
func (r *calendarAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CalendarAccount{}).
		Where("account_id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_expiry":  expiry,
		}).Error
}

func (r *calendarAccountRepo) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.CalendarAccount{}).
		Where("account_id = ?", id).
		Update("is_active", false).Error
}
