package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"astro-union/internal/model"
	"astro-union/internal/repository"
)

func setupLegendTest(t *testing.T) (LegendService, *reconcileFixture) {
	t.Helper()
	f := &reconcileFixture{
		tenantRepo:  newMockTenantRepo(),
		accountRepo: newMockAccountRepo(),
		eventRepo:   newMockEventRepo(),
		presetRepo:  newMockPresetRepo(),
		settingRepo: newMockSettingRepo(),
		gw:          newMockGateway(),
	}
	f.factory = &mockGatewayFactory{gw: f.gw}

	repo := &repository.Repository{
		Tenant:          f.tenantRepo,
		CalendarAccount: f.accountRepo,
		EventRecord:     f.eventRepo,
		TagGroup:        newMockTagGroupRepo(),
		Tag:             newMockTagRepo(),
		ColorPreset:     f.presetRepo,
		Setting:         f.settingRepo,
	}

	logger := zap.NewNop()
	f.catalog = NewCatalogService(repo, nil, logger)
	svc := NewLegendService(repo, f.catalog, f.factory, logger)

	ctx := context.Background()
	f.accountRepo.accounts["owner-1"] = &model.CalendarAccount{
		AccountID:   "owner-1",
		TenantID:    "tenant-a",
		Label:       "主日历",
		CalendarID:  "cal-1",
		AccessToken: "token",
		IsActive:    true,
	}
	f.presetRepo.Create(ctx, &model.ColorPreset{
		TenantID:    "tenant-a",
		OwnerID:     "owner-1",
		Name:        "蓝色",
		ColorCode:   "9",
		Description: "歌枠用",
	})

	return svc, f
}

func TestLegend_CreateOnFirstRefresh(t *testing.T) {
	svc, f := setupLegendTest(t)
	account := f.accountRepo.accounts["owner-1"]

	if err := svc.RefreshOwner(context.Background(), "tenant-a", account, f.gw); err != nil {
		t.Fatalf("RefreshOwner 应成功: %v", err)
	}

	legendID, _ := f.settingRepo.Get(context.Background(), "tenant-a", "legend_event_id:owner-1")
	if legendID == "" {
		t.Fatal("图例事件 ID 应写入 settings")
	}
	event, ok := f.gw.events[legendID]
	if !ok {
		t.Fatal("图例事件未创建")
	}
	if event.Summary != "颜色与标签图例" {
		t.Errorf("图例标题异常: %q", event.Summary)
	}
	if !strings.Contains(event.Description, "蓝色") || !strings.Contains(event.Description, "colorId 9") {
		t.Errorf("图例正文应包含颜色预设: %q", event.Description)
	}
}

func TestLegend_SecondRefreshNoWrites(t *testing.T) {
	svc, f := setupLegendTest(t)
	account := f.accountRepo.accounts["owner-1"]
	ctx := context.Background()

	if err := svc.RefreshOwner(ctx, "tenant-a", account, f.gw); err != nil {
		t.Fatalf("首次刷新应成功: %v", err)
	}
	writes := f.gw.writes()

	if err := svc.RefreshOwner(ctx, "tenant-a", account, f.gw); err != nil {
		t.Fatalf("二次刷新应成功: %v", err)
	}
	if got := f.gw.writes(); got != writes {
		t.Errorf("目录未变化时不应有写调用: 前 %d 后 %d", writes, got)
	}
}

func TestLegend_RecreateAfterUpstreamDelete(t *testing.T) {
	svc, f := setupLegendTest(t)
	account := f.accountRepo.accounts["owner-1"]
	ctx := context.Background()

	if err := svc.RefreshOwner(ctx, "tenant-a", account, f.gw); err != nil {
		t.Fatalf("首次刷新应成功: %v", err)
	}
	oldID, _ := f.settingRepo.Get(ctx, "tenant-a", "legend_event_id:owner-1")
	delete(f.gw.events, oldID)

	if err := svc.RefreshOwner(ctx, "tenant-a", account, f.gw); err != nil {
		t.Fatalf("重建刷新应成功: %v", err)
	}
	newID, _ := f.settingRepo.Get(ctx, "tenant-a", "legend_event_id:owner-1")
	if newID == "" || newID == oldID {
		t.Errorf("图例应重建并更新 settings: old=%q new=%q", oldID, newID)
	}
	if _, ok := f.gw.events[newID]; !ok {
		t.Error("重建后的图例事件不存在")
	}
}

func TestLegend_DriftRepaired(t *testing.T) {
	svc, f := setupLegendTest(t)
	account := f.accountRepo.accounts["owner-1"]
	ctx := context.Background()

	if err := svc.RefreshOwner(ctx, "tenant-a", account, f.gw); err != nil {
		t.Fatalf("首次刷新应成功: %v", err)
	}
	legendID, _ := f.settingRepo.Get(ctx, "tenant-a", "legend_event_id:owner-1")
	f.gw.events[legendID].Description = "被手动改掉的正文"

	if err := svc.RefreshOwner(ctx, "tenant-a", account, f.gw); err != nil {
		t.Fatalf("修复刷新应成功: %v", err)
	}
	if !strings.Contains(f.gw.events[legendID].Description, "【颜色预设】") {
		t.Errorf("图例正文未恢复: %q", f.gw.events[legendID].Description)
	}
}
