package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"astro-union/internal/dto"
	"astro-union/internal/gateway"
	"astro-union/internal/model"
	"astro-union/internal/repository"
)

// ── 测试辅助 ──

type reconcileFixture struct {
	tenantRepo  *mockTenantRepo
	accountRepo *mockAccountRepo
	eventRepo   *mockEventRepo
	presetRepo  *mockPresetRepo
	settingRepo *mockSettingRepo
	gw          *mockGateway
	factory     *mockGatewayFactory
	catalog     CatalogService
}

func setupReconcileTest(t *testing.T) (ReconcileService, *reconcileFixture) {
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

	groupRepo := newMockTagGroupRepo()
	tagRepo := newMockTagRepo()
	repo := &repository.Repository{
		Tenant:          f.tenantRepo,
		CalendarAccount: f.accountRepo,
		EventRecord:     f.eventRepo,
		TagGroup:        groupRepo,
		Tag:             tagRepo,
		ColorPreset:     f.presetRepo,
		Setting:         f.settingRepo,
	}

	logger := zap.NewNop()
	f.catalog = NewCatalogService(repo, nil, logger)
	legend := NewLegendService(repo, f.catalog, f.factory, logger)
	svc := NewReconcileService(repo, f.catalog, legend, f.factory, time.UTC, logger)

	// 基础数据：租户 + 账户 + 目录
	ctx := context.Background()
	f.tenantRepo.Create(ctx, &model.Tenant{TenantID: "tenant-a", Name: "测试社团", IsActive: true})
	f.accountRepo.accounts["owner-1"] = &model.CalendarAccount{
		AccountID:   "owner-1",
		TenantID:    "tenant-a",
		Label:       "主日历",
		CalendarID:  "cal-1",
		AccessToken: "token",
		IsActive:    true,
	}
	groupRepo.groups["grp-platform"] = &model.TagGroup{
		GroupID:   "grp-platform",
		TenantID:  "tenant-a",
		Name:      "配信先",
		SortOrder: 1,
		Tags:      []model.Tag{{Name: "YouTube"}, {Name: "Twitch"}},
	}
	f.presetRepo.Create(ctx, &model.ColorPreset{
		TenantID:  "tenant-a",
		OwnerID:   "owner-1",
		Name:      "蓝色",
		ColorCode: "9",
	})

	return svc, f
}

// expectedFor 用当前目录计算记录的期望形态
func (f *reconcileFixture) expectedFor(t *testing.T, record *model.EventRecord) ExpectedEvent {
	t.Helper()
	snapshot, err := f.catalog.Snapshot(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	return BuildExpectedEvent(record, snapshot.TagGroups, snapshot.PresetForOwner(record.OwnerID, record.ColorName))
}

// seedRecord 写入一条带外部映射的周例记录，并在网关中播种与期望完全一致的事件
func (f *reconcileFixture) seedRecord(t *testing.T, name string) *model.EventRecord {
	t.Helper()

	record := &model.EventRecord{
		EventID:         "evt-" + name,
		TenantID:        "tenant-a",
		OwnerID:         "owner-1",
		Name:            name,
		Description:     "定例配信。",
		RecurrenceKind:  model.RecurrenceWeekly,
		Weekday:         intPtr(2),
		TimeOfDay:       "19:30",
		DurationMinutes: 90,
		Tags:            model.StringArray{"YouTube"},
		ColorName:       "蓝色",
		IsActive:        true,
	}

	extID := "ext-" + name
	record.ExternalEvents = model.ExternalMappings{{ExternalID: extID, Rule: "FREQ=WEEKLY;BYDAY=WE"}}
	f.eventRepo.records[record.EventID] = record

	expected := f.expectedFor(t, record)
	f.gw.events[extID] = &gateway.EventSnapshot{
		ExternalID:  extID,
		Summary:     expected.Summary,
		Description: expected.Description,
		ColorCode:   expected.ColorCode,
		Rule:        "FREQ=WEEKLY;BYDAY=WE",
	}
	return record
}

// ownerReport 跑一轮全量对账并取出唯一账户的计数
func ownerReport(t *testing.T, svc ReconcileService) dto.OwnerSyncReport {
	t.Helper()
	full, err := svc.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass 应成功: %v", err)
	}
	if len(full.Tenants) != 1 || len(full.Tenants[0].Owners) != 1 {
		t.Fatalf("期望 1 租户 1 账户, 实际: %+v", full)
	}
	return full.Tenants[0].Owners[0]
}

// ── 幂等性测试 ──

func TestReconcile_UnchangedPass_NoWrites(t *testing.T) {
	svc, f := setupReconcileTest(t)
	f.seedRecord(t, "每周歌枠")

	// 第一轮：记录无漂移；图例事件首次创建
	r1 := ownerReport(t, svc)
	if r1.Checked != 1 || r1.Repaired != 0 || r1.Recreated != 0 || r1.Failed != 0 {
		t.Fatalf("第一轮计数异常: %+v", r1)
	}
	writesAfterFirst := f.gw.writes()

	// 第二轮：包括图例在内完全无变化，外部零写入
	r2 := ownerReport(t, svc)
	if r2.Checked != 1 || r2.Repaired != 0 {
		t.Fatalf("第二轮计数异常: %+v", r2)
	}
	if got := f.gw.writes(); got != writesAfterFirst {
		t.Errorf("无变化的一轮不应产生写调用, 第一轮后 %d, 第二轮后 %d", writesAfterFirst, got)
	}
}

// ── 漂移修复测试 ──

func TestReconcile_SummaryDrift_PartialUpdate(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	extID := record.ExternalEvents[0].ExternalID
	f.gw.events[extID].Summary = "被手动改掉的标题"

	r := ownerReport(t, svc)
	if r.Repaired != 1 {
		t.Fatalf("期望 Repaired=1, 实际: %+v", r)
	}
	if len(f.gw.updateCalls) != 1 {
		t.Fatalf("期望恰好 1 次更新, 实际 %d 次", len(f.gw.updateCalls))
	}

	// 部分更新：只有 summary 字段被携带
	fields := f.gw.updateCalls[0]
	if fields.Summary == nil || *fields.Summary != record.Name {
		t.Errorf("期望更新 Summary=%q, 实际: %+v", record.Name, fields.Summary)
	}
	if fields.Description != nil || fields.ColorCode != nil {
		t.Errorf("未漂移的字段不应携带: %+v", fields)
	}
	if f.gw.events[extID].Summary != record.Name {
		t.Errorf("上游标题未恢复: %q", f.gw.events[extID].Summary)
	}
}

func TestReconcile_ColorDrift_PartialUpdate(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	extID := record.ExternalEvents[0].ExternalID
	f.gw.events[extID].ColorCode = "5"

	r := ownerReport(t, svc)
	if r.Repaired != 1 {
		t.Fatalf("期望 Repaired=1, 实际: %+v", r)
	}
	fields := f.gw.updateCalls[0]
	if fields.ColorCode == nil || *fields.ColorCode != "9" {
		t.Errorf("期望恢复 ColorCode=9, 实际: %+v", fields.ColorCode)
	}
	if fields.Summary != nil || fields.Description != nil {
		t.Errorf("未漂移的字段不应携带: %+v", fields)
	}
}

// ── 重建测试 ──

func TestReconcile_RecreateOnMissing(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	// 上游删除
	extID := record.ExternalEvents[0].ExternalID
	delete(f.gw.events, extID)

	r := ownerReport(t, svc)
	if r.Recreated != 1 || r.Failed != 0 {
		t.Fatalf("期望 Recreated=1, 实际: %+v", r)
	}

	// 映射被替换为单条新 id
	stored := f.eventRepo.records[record.EventID]
	if len(stored.ExternalEvents) != 1 {
		t.Fatalf("期望单条映射, 实际 %d 条", len(stored.ExternalEvents))
	}
	newID := stored.ExternalEvents[0].ExternalID
	if newID == extID {
		t.Error("映射应指向新创建的事件")
	}
	created, ok := f.gw.events[newID]
	if !ok {
		t.Fatal("新事件未在网关中创建")
	}
	if created.Rule != "FREQ=WEEKLY;BYDAY=WE" {
		t.Errorf("重建事件 RRULE 期望 FREQ=WEEKLY;BYDAY=WE, 实际 %q", created.Rule)
	}
	expected := f.expectedFor(t, record)
	if created.Summary != expected.Summary || created.Description != expected.Description {
		t.Error("重建事件内容与期望形态不符")
	}
	// 对已消失的 id 不应再发更新/删除
	if len(f.gw.updateCalls) != 0 || len(f.gw.deleteCalls) != 0 {
		t.Errorf("重建路径不应产生更新/删除调用: updates=%d deletes=%d",
			len(f.gw.updateCalls), len(f.gw.deleteCalls))
	}
}

func TestReconcile_MultiMapping_RecreateOnce(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	// 遗留多映射：第一条已消失，第二条仍存在
	liveID := record.ExternalEvents[0].ExternalID
	record.ExternalEvents = model.ExternalMappings{
		{ExternalID: "ext-vanished", Rule: "FREQ=WEEKLY;BYDAY=WE"},
		{ExternalID: liveID, Rule: "FREQ=WEEKLY;BYDAY=WE"},
	}

	r := ownerReport(t, svc)
	if r.Recreated != 1 {
		t.Fatalf("期望 Recreated=1, 实际: %+v", r)
	}

	// 一次重建取代整条记录的全部映射，存活的旧事件也不再被处理
	stored := f.eventRepo.records[record.EventID]
	if len(stored.ExternalEvents) != 1 {
		t.Fatalf("期望单条映射, 实际 %d 条", len(stored.ExternalEvents))
	}
	if len(f.gw.updateCalls) != 0 {
		t.Errorf("发现缺失后应立即短路, 不应再更新存活映射: %d 次更新", len(f.gw.updateCalls))
	}
}

func TestReconcile_RecreateCreateFails_KeepsStaleMapping(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	extID := record.ExternalEvents[0].ExternalID
	delete(f.gw.events, extID)
	f.gw.failCreate = true

	r := ownerReport(t, svc)
	if r.Failed != 1 || r.Recreated != 0 {
		t.Fatalf("期望 Failed=1, 实际: %+v", r)
	}

	// 旧映射保留，下一轮重试重建
	stored := f.eventRepo.records[record.EventID]
	if len(stored.ExternalEvents) != 1 || stored.ExternalEvents[0].ExternalID != extID {
		t.Errorf("创建失败时旧映射应原样保留: %+v", stored.ExternalEvents)
	}
}

func TestReconcile_PersistFailureAfterCreate(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	extID := record.ExternalEvents[0].ExternalID
	delete(f.gw.events, extID)
	f.eventRepo.failUpdateMappings = true

	r := ownerReport(t, svc)
	// 外部事件已创建但台账写回失败：按失败上报，映射不变
	if r.Failed != 1 || r.Recreated != 0 {
		t.Fatalf("期望 Failed=1, 实际: %+v", r)
	}
	if f.eventRepo.mappingUpdates != 0 {
		t.Error("台账不应被写回")
	}
}

// ── 隔离与排除测试 ──

func TestReconcile_InvalidRecordExcluded(t *testing.T) {
	svc, f := setupReconcileTest(t)
	f.seedRecord(t, "每周歌枠")

	// 缺 weekday 的 weekly 记录：排除在对账之外，不影响其余记录
	f.eventRepo.records["evt-broken"] = &model.EventRecord{
		EventID:        "evt-broken",
		TenantID:       "tenant-a",
		OwnerID:        "owner-1",
		Name:           "坏记录",
		RecurrenceKind: model.RecurrenceWeekly,
		ExternalEvents: model.ExternalMappings{{ExternalID: "ext-broken"}},
		IsActive:       true,
	}

	r := ownerReport(t, svc)
	if r.Excluded != 1 {
		t.Errorf("期望 Excluded=1, 实际: %+v", r)
	}
	if r.Checked != 1 || r.Failed != 0 {
		t.Errorf("正常记录应照常对账: %+v", r)
	}
}

func TestReconcile_IrregularSkipped(t *testing.T) {
	svc, f := setupReconcileTest(t)

	f.eventRepo.records["evt-adhoc"] = &model.EventRecord{
		EventID:        "evt-adhoc",
		TenantID:       "tenant-a",
		OwnerID:        "owner-1",
		Name:           "临时企划",
		RecurrenceKind: model.RecurrenceIrregular,
		IsActive:       true,
	}

	r := ownerReport(t, svc)
	if r.Checked != 0 || r.Excluded != 0 || r.Failed != 0 {
		t.Errorf("不定期记录不应参与对账: %+v", r)
	}
}

func TestReconcile_TransientFailure_OtherRecordsProcessed(t *testing.T) {
	svc, f := setupReconcileTest(t)
	record := f.seedRecord(t, "每周歌枠")

	// 第二条记录映射缺失且创建失败 → 仅它失败
	f.gw.failCreate = true
	f.eventRepo.records["evt-broken"] = &model.EventRecord{
		EventID:         "evt-broken",
		TenantID:        "tenant-a",
		OwnerID:         "owner-1",
		Name:            "缺失记录",
		RecurrenceKind:  model.RecurrenceWeekly,
		Weekday:         intPtr(0),
		ExternalEvents:  model.ExternalMappings{{ExternalID: "ext-nowhere"}},
		DurationMinutes: 60,
		IsActive:        true,
	}

	r := ownerReport(t, svc)
	if r.Failed != 1 {
		t.Errorf("期望 Failed=1, 实际: %+v", r)
	}
	if r.Checked != 2 {
		t.Errorf("两条记录都应被比对: %+v", r)
	}
	// 健康记录保持无漂移
	extID := record.ExternalEvents[0].ExternalID
	if _, ok := f.gw.events[extID]; !ok {
		t.Error("健康记录的外部事件不应被动过")
	}
}

func TestReconcile_BadCredentials_OwnerSkipped(t *testing.T) {
	svc, f := setupReconcileTest(t)
	f.seedRecord(t, "每周歌枠")
	f.factory.failAccount = "owner-1"

	r := ownerReport(t, svc)
	if !r.Skipped {
		t.Fatalf("期望账户被跳过: %+v", r)
	}
	if r.Checked != 0 {
		t.Errorf("跳过的账户不应比对记录: %+v", r)
	}
	if f.gw.writes() != 0 || f.gw.getCalls != 0 {
		t.Error("跳过的账户不应产生任何网关调用")
	}
}

// ── RunTenant 测试 ──

func TestReconcile_RunTenant_NotFound(t *testing.T) {
	svc, _ := setupReconcileTest(t)

	_, err := svc.RunTenant(context.Background(), "nonexistent")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Errorf("期望 ErrTenantNotFound, 实际: %v", err)
	}
}

func TestReconcile_RunTenant_Success(t *testing.T) {
	svc, f := setupReconcileTest(t)
	f.seedRecord(t, "每周歌枠")

	report, err := svc.RunTenant(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("RunTenant 应成功: %v", err)
	}
	if report.TenantID != "tenant-a" || len(report.Owners) != 1 {
		t.Fatalf("报告结构异常: %+v", report)
	}
	if report.Owners[0].Checked != 1 {
		t.Errorf("期望 Checked=1, 实际: %+v", report.Owners[0])
	}
}
