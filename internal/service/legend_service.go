package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"astro-union/internal/dto"
	"astro-union/internal/gateway"
	"astro-union/internal/model"
	"astro-union/internal/repository"
)

// ── 图例模块 ──────────────────────────────────────────────
//
// 每个日历账户维护一条信息性全天事件（2000-01-01 → 2100-01-01），
// 内容为该账户可用的颜色预设与租户的标签分组。事件 ID 记在
// settings 表中；刷新与对账一样走 diff，无变化时零写入。
// ─────────────────────────────────────────────────────────────

const (
	legendSummary   = "颜色与标签图例"
	legendKeyPrefix = "legend_event_id:"
	legendStartYear = 2000
	legendEndYear   = 2100
)

// LegendService 图例业务接口
type LegendService interface {
	// RefreshTenant 刷新租户下所有账户的图例事件
	RefreshTenant(ctx context.Context, tenantID string) error
	// RefreshOwner 用给定网关刷新单个账户的图例事件
	RefreshOwner(ctx context.Context, tenantID string, account *model.CalendarAccount, gw gateway.CalendarGateway) error
}

type legendService struct {
	repo     *repository.Repository
	catalog  CatalogService
	gateways GatewayFactory
	logger   *zap.Logger
}

// NewLegendService 创建 LegendService 实例
func NewLegendService(repo *repository.Repository, catalog CatalogService, gateways GatewayFactory, logger *zap.Logger) LegendService {
	return &legendService{repo: repo, catalog: catalog, gateways: gateways, logger: logger}
}

func (s *legendService) RefreshTenant(ctx context.Context, tenantID string) error {
	accounts, err := s.repo.CalendarAccount.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range accounts {
		account := &accounts[i]
		gw, err := s.gateways.ForAccount(account, tokenPersister(s.repo, account.AccountID))
		if err != nil {
			s.logger.Warn("账户凭证不可用，跳过图例刷新",
				zap.String("tenant_id", tenantID),
				zap.String("account_id", account.AccountID),
				zap.Error(err),
			)
			continue
		}
		if err := s.RefreshOwner(ctx, tenantID, account, gw); err != nil {
			s.logger.Error("图例刷新失败",
				zap.String("tenant_id", tenantID),
				zap.String("account_id", account.AccountID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *legendService) RefreshOwner(ctx context.Context, tenantID string, account *model.CalendarAccount, gw gateway.CalendarGateway) error {
	snapshot, err := s.catalog.Snapshot(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("读取展示目录失败: %w", err)
	}
	description := buildLegendDescription(snapshot, account.AccountID)

	key := legendKeyPrefix + account.AccountID
	legendID, err := s.repo.Setting.Get(ctx, tenantID, key)
	if err != nil {
		return fmt.Errorf("读取图例事件 ID 失败: %w", err)
	}

	if legendID != "" {
		existing, err := gw.Get(ctx, legendID)
		switch {
		case errors.Is(err, gateway.ErrEventNotFound):
			// 图例被上游删除，走重建
		case err != nil:
			return err
		default:
			fields := gateway.UpdateFields{}
			if existing.Summary != legendSummary {
				summary := legendSummary
				fields.Summary = &summary
			}
			if existing.Description != description {
				fields.Description = &description
			}
			if fields.IsEmpty() {
				return nil
			}
			return gw.Update(ctx, legendID, fields)
		}
	}

	newID, err := gw.CreateAllDay(ctx, gateway.AllDayEventInput{
		Summary:     legendSummary,
		Description: description,
		StartDate:   time.Date(legendStartYear, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(legendEndYear, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return err
	}
	return s.repo.Setting.Set(ctx, tenantID, key, newID)
}

// buildLegendDescription 图例正文；与期望事件一样要求确定性输出
func buildLegendDescription(snapshot *dto.CatalogSnapshot, ownerID string) string {
	lines := []string{"【颜色预设】"}
	presets := snapshot.PresetsForOwner(ownerID)
	if len(presets) == 0 {
		lines = append(lines, "- 暂无")
	}
	for _, p := range presets {
		lines = append(lines, fmt.Sprintf("- %s (colorId %s): %s", p.Name, p.ColorCode, p.Description))
	}

	lines = append(lines, "", "【标签分组】")
	if len(snapshot.TagGroups) == 0 {
		lines = append(lines, "- 暂无")
	}
	for _, g := range snapshot.TagGroups {
		lines = append(lines, fmt.Sprintf("- %s: %s", g.Name, g.Description))
		for _, t := range g.Tags {
			lines = append(lines, fmt.Sprintf("  - %s: %s", t.Name, t.Description))
		}
	}

	return strings.Join(lines, "\n")
}
