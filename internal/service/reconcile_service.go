package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"astro-union/internal/dto"
	"astro-union/internal/gateway"
	"astro-union/internal/model"
	"astro-union/internal/repository"
)

// ── 对账模块业务错误 ──

var (
	ErrPassInProgress = errors.New("上一轮对账尚未结束")
	ErrTenantNotFound = errors.New("租户不存在")
)

// GatewayFactory 按日历账户构建外部日历网关（测试中以 mock 替换）
type GatewayFactory interface {
	ForAccount(account *model.CalendarAccount, persist gateway.TokenPersistFunc) (gateway.CalendarGateway, error)
}

// ReconcileService 对账业务接口
//
// 周期性控制循环：租户 → 账户 → 记录，逐条比对外部快照与期望形态，
// 漂移则修复（部分更新）或重建（上游删除）。单条记录的失败只影响
// 自身，绝不中断整轮；无上游变化的一轮对账产生零次写调用。
type ReconcileService interface {
	// RunPass 对所有活跃租户执行一轮对账
	RunPass(ctx context.Context) (*dto.SyncReport, error)
	// RunTenant 对单个租户执行一轮对账（按需触发）
	RunTenant(ctx context.Context, tenantID string) (*dto.TenantSyncReport, error)
}

type reconcileService struct {
	repo     *repository.Repository
	catalog  CatalogService
	legend   LegendService
	gateways GatewayFactory
	location *time.Location
	logger   *zap.Logger

	// 轮次串行化：新一轮在上一轮结束前不启动
	mu sync.Mutex
}

// NewReconcileService 创建 ReconcileService 实例
func NewReconcileService(
	repo *repository.Repository,
	catalog CatalogService,
	legend LegendService,
	gateways GatewayFactory,
	location *time.Location,
	logger *zap.Logger,
) ReconcileService {
	if location == nil {
		location = time.UTC
	}
	return &reconcileService{
		repo:     repo,
		catalog:  catalog,
		legend:   legend,
		gateways: gateways,
		location: location,
		logger:   logger,
	}
}

// ═══════════════════════════════════════════════════════════
// RunPass — 全量对账一轮
// ═══════════════════════════════════════════════════════════

func (s *reconcileService) RunPass(ctx context.Context) (*dto.SyncReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.mu.Unlock()

	report := &dto.SyncReport{StartedAt: time.Now()}

	tenants, err := s.repo.Tenant.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, tenant := range tenants {
		tenantReport, err := s.runTenantLocked(ctx, tenant.TenantID)
		if err != nil {
			// 租户级失败（台账读取等）不终止其余租户
			s.logger.Error("租户对账失败", zap.String("tenant_id", tenant.TenantID), zap.Error(err))
			continue
		}
		report.Tenants = append(report.Tenants, *tenantReport)
	}

	report.FinishedAt = time.Now()
	s.logger.Info("对账完成",
		zap.Int("tenants", len(report.Tenants)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *reconcileService) RunTenant(ctx context.Context, tenantID string) (*dto.TenantSyncReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.mu.Unlock()

	if _, err := s.repo.Tenant.GetByID(ctx, tenantID); err != nil {
		return nil, ErrTenantNotFound
	}
	return s.runTenantLocked(ctx, tenantID)
}

func (s *reconcileService) runTenantLocked(ctx context.Context, tenantID string) (*dto.TenantSyncReport, error) {
	report := &dto.TenantSyncReport{TenantID: tenantID}

	accounts, err := s.repo.CalendarAccount.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.catalog.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for i := range accounts {
		account := &accounts[i]
		ownerReport := dto.OwnerSyncReport{OwnerID: account.AccountID}

		gw, err := s.gateways.ForAccount(account, tokenPersister(s.repo, account.AccountID))
		if err != nil {
			// 凭证不可用只跳过该账户，不影响租户下其余账户
			s.logger.Warn("账户凭证不可用，跳过对账",
				zap.String("tenant_id", tenantID),
				zap.String("account_id", account.AccountID),
				zap.Error(err),
			)
			ownerReport.Skipped = true
			report.Owners = append(report.Owners, ownerReport)
			continue
		}

		s.reconcileOwner(ctx, gw, tenantID, account, snapshot, &ownerReport)

		// 活动记录之后刷新该账户的图例事件（同样幂等）
		if err := s.legend.RefreshOwner(ctx, tenantID, account, gw); err != nil {
			s.logger.Error("图例刷新失败",
				zap.String("tenant_id", tenantID),
				zap.String("account_id", account.AccountID),
				zap.Error(err),
			)
		}

		report.Owners = append(report.Owners, ownerReport)
	}

	return report, nil
}

// reconcileOwner 逐条对账单个账户的活动记录
func (s *reconcileService) reconcileOwner(
	ctx context.Context,
	gw gateway.CalendarGateway,
	tenantID string,
	account *model.CalendarAccount,
	snapshot *dto.CatalogSnapshot,
	report *dto.OwnerSyncReport,
) {
	records, err := s.repo.EventRecord.ListActiveByOwner(ctx, tenantID, account.AccountID)
	if err != nil {
		s.logger.Error("读取活动台账失败",
			zap.String("tenant_id", tenantID),
			zap.String("account_id", account.AccountID),
			zap.Error(err),
		)
		report.Failed++
		return
	}

	for i := range records {
		record := &records[i]

		// 不定期记录无外部镜像预期，不参与对账
		if record.RecurrenceKind == model.RecurrenceIrregular {
			continue
		}
		// 配置错误的记录排除在调度之外，记录一次，上游修正前不再重试
		if err := ValidateSchedule(record.RecurrenceKind, record.Weekday, record.NthWeeks); err != nil {
			s.logger.Warn("记录日程配置无效，排除在对账之外",
				zap.String("event_id", record.EventID),
				zap.Error(err),
			)
			report.Excluded++
			continue
		}
		if len(record.ExternalEvents) == 0 {
			continue
		}

		report.Checked++

		// 单条记录的任何失败都被捕获在此，不中断其余记录
		if err := s.reconcileRecord(ctx, gw, record, snapshot, report); err != nil {
			s.logger.Error("记录对账失败，下一轮重试",
				zap.String("event_id", record.EventID),
				zap.String("name", record.Name),
				zap.Bool("transient", gateway.IsTransient(err)),
				zap.Error(err),
			)
			report.Failed++
		}
	}
}

// reconcileRecord 比对单条记录的全部外部映射
func (s *reconcileService) reconcileRecord(
	ctx context.Context,
	gw gateway.CalendarGateway,
	record *model.EventRecord,
	snapshot *dto.CatalogSnapshot,
	report *dto.OwnerSyncReport,
) error {
	expected := BuildExpectedEvent(record, snapshot.TagGroups, snapshot.PresetForOwner(record.OwnerID, record.ColorName))

	for _, mapping := range record.ExternalEvents {
		external, err := gw.Get(ctx, mapping.ExternalID)
		if errors.Is(err, gateway.ErrEventNotFound) {
			// 上游删除：整条记录重建一次，随后立即停止处理剩余映射 id
			//（遗留的多 id 记录由一次重建统一取代，避免同轮内重复重建）
			if err := s.recreateRecord(ctx, gw, record, expected); err != nil {
				return err
			}
			report.Recreated++
			return nil
		}
		if err != nil {
			return err
		}

		fields, restored := diffExpected(external, expected)
		if fields.IsEmpty() {
			continue
		}
		if err := gw.Update(ctx, mapping.ExternalID, fields); err != nil {
			return err
		}
		s.logger.Info("已修复上游漂移",
			zap.String("event_id", record.EventID),
			zap.String("external_id", mapping.ExternalID),
			zap.Strings("restored_fields", restored),
		)
		report.Repaired++
	}
	return nil
}

// diffExpected 逐字段比较快照与期望，返回仅含变化字段的部分更新
func diffExpected(external *gateway.EventSnapshot, expected ExpectedEvent) (gateway.UpdateFields, []string) {
	var fields gateway.UpdateFields
	var restored []string

	if external.Summary != expected.Summary {
		summary := expected.Summary
		fields.Summary = &summary
		restored = append(restored, "summary")
	}
	if external.Description != expected.Description {
		description := expected.Description
		fields.Description = &description
		restored = append(restored, "description")
	}
	if expected.ColorCode != "" && external.ColorCode != expected.ColorCode {
		colorCode := expected.ColorCode
		fields.ColorCode = &colorCode
		restored = append(restored, "color")
	}
	return fields, restored
}

// tokenPersister 凭证刷新后的台账写回闭包
func tokenPersister(repo *repository.Repository, accountID string) gateway.TokenPersistFunc {
	return func(ctx context.Context, accessToken, refreshToken string, expiry *time.Time) error {
		return repo.CalendarAccount.UpdateTokens(ctx, accountID, accessToken, refreshToken, expiry)
	}
}
