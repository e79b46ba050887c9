package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"astro-union/internal/dto"
	"astro-union/internal/model"
	"astro-union/internal/repository"
)

// ── 测试辅助 ──

type eventFixture struct {
	eventRepo *mockEventRepo
	tagRepo   *mockTagRepo
	gw        *mockGateway
}

func setupEventTest(t *testing.T) (EventService, *eventFixture) {
	t.Helper()
	f := &eventFixture{
		eventRepo: newMockEventRepo(),
		tagRepo:   newMockTagRepo(),
		gw:        newMockGateway(),
	}
	factory := &mockGatewayFactory{gw: f.gw}

	accountRepo := newMockAccountRepo()
	groupRepo := newMockTagGroupRepo()
	presetRepo := newMockPresetRepo()
	repo := &repository.Repository{
		Tenant:          newMockTenantRepo(),
		CalendarAccount: accountRepo,
		EventRecord:     f.eventRepo,
		TagGroup:        groupRepo,
		Tag:             f.tagRepo,
		ColorPreset:     presetRepo,
		Setting:         newMockSettingRepo(),
	}

	logger := zap.NewNop()
	catalog := NewCatalogService(repo, nil, logger)
	svc := NewEventService(repo, catalog, factory, time.UTC, logger)

	ctx := context.Background()
	accountRepo.accounts["owner-1"] = &model.CalendarAccount{
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
		Tags:      []model.Tag{{Name: "YouTube"}},
	}
	f.tagRepo.Create(ctx, &model.Tag{TenantID: "tenant-a", Name: "YouTube"})
	presetRepo.Create(ctx, &model.ColorPreset{
		TenantID:  "tenant-a",
		OwnerID:   "owner-1",
		Name:      "蓝色",
		ColorCode: "9",
	})

	return svc, f
}

func weeklyCreateRequest() *dto.CreateEventRequest {
	return &dto.CreateEventRequest{
		TenantID:        "tenant-a",
		OwnerID:         "owner-1",
		Name:            "每周歌枠",
		Description:     "定例配信。",
		RecurrenceKind:  model.RecurrenceWeekly,
		Weekday:         intPtr(2),
		TimeOfDay:       "19:30",
		DurationMinutes: 90,
		Tags:            []string{"YouTube"},
		ColorName:       "蓝色",
	}
}

// ── Create 测试 ──

func TestEventService_Create_Weekly(t *testing.T) {
	svc, f := setupEventTest(t)

	record, err := svc.Create(context.Background(), weeklyCreateRequest())
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if record.EventID == "" {
		t.Error("记录应分配 ID")
	}
	if len(record.ExternalEvents) != 1 {
		t.Fatalf("期望单条外部映射, 实际 %d 条", len(record.ExternalEvents))
	}
	if record.ExternalEvents[0].Rule != "FREQ=WEEKLY;BYDAY=WE" {
		t.Errorf("映射 RRULE 期望 FREQ=WEEKLY;BYDAY=WE, 实际 %q", record.ExternalEvents[0].Rule)
	}

	created, ok := f.gw.events[record.ExternalEvents[0].ExternalID]
	if !ok {
		t.Fatal("外部事件未创建")
	}
	if created.Summary != "每周歌枠" {
		t.Errorf("外部事件标题期望 每周歌枠, 实际 %q", created.Summary)
	}
	if created.ColorCode != "9" {
		t.Errorf("外部事件 colorId 期望 9, 实际 %q", created.ColorCode)
	}
	if _, ok := f.eventRepo.records[record.EventID]; !ok {
		t.Error("记录未入台账")
	}
}

func TestEventService_Create_Irregular_NoMirror(t *testing.T) {
	svc, f := setupEventTest(t)

	req := weeklyCreateRequest()
	req.RecurrenceKind = model.RecurrenceIrregular
	req.Weekday = nil
	req.TimeOfDay = ""

	record, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if len(record.ExternalEvents) != 0 {
		t.Errorf("不定期活动不应创建外部事件: %+v", record.ExternalEvents)
	}
	if f.gw.createCalls != 0 {
		t.Errorf("网关不应被调用, 实际 %d 次创建", f.gw.createCalls)
	}
}

func TestEventService_Create_UnknownTag(t *testing.T) {
	svc, _ := setupEventTest(t)

	req := weeklyCreateRequest()
	req.Tags = []string{"YouTube", "未登记标签"}

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrUnknownTags) {
		t.Errorf("期望 ErrUnknownTags, 实际: %v", err)
	}
}

func TestEventService_Create_ColorPresetMissing(t *testing.T) {
	svc, _ := setupEventTest(t)

	req := weeklyCreateRequest()
	req.ColorName = "不存在的颜色"

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrColorPresetMissing) {
		t.Errorf("期望 ErrColorPresetMissing, 实际: %v", err)
	}
}

func TestEventService_Create_InvalidSchedule(t *testing.T) {
	svc, _ := setupEventTest(t)

	req := weeklyCreateRequest()
	req.Weekday = nil

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrInvalidWeekday) {
		t.Errorf("期望 ErrInvalidWeekday, 实际: %v", err)
	}
}

func TestEventService_Create_UnknownOwner(t *testing.T) {
	svc, _ := setupEventTest(t)

	req := weeklyCreateRequest()
	req.OwnerID = "owner-unknown"

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Errorf("期望 ErrOwnerNotFound, 实际: %v", err)
	}
}

// ── Update 测试 ──

func TestEventService_Update_PushesToMirror(t *testing.T) {
	svc, f := setupEventTest(t)

	record, err := svc.Create(context.Background(), weeklyCreateRequest())
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	newName := "改名后的歌枠"
	updated, err := svc.Update(context.Background(), "tenant-a", record.EventID, &dto.UpdateEventRequest{Name: &newName})
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if updated.Name != newName {
		t.Errorf("台账名称未更新: %q", updated.Name)
	}

	external := f.gw.events[record.ExternalEvents[0].ExternalID]
	if external.Summary != newName {
		t.Errorf("镜像标题应同步更新, 实际 %q", external.Summary)
	}
}

func TestEventService_Update_TenantMismatch(t *testing.T) {
	svc, _ := setupEventTest(t)

	record, err := svc.Create(context.Background(), weeklyCreateRequest())
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	name := "x"
	_, err = svc.Update(context.Background(), "tenant-b", record.EventID, &dto.UpdateEventRequest{Name: &name})
	if !errors.Is(err, ErrTenantMismatch) {
		t.Errorf("期望 ErrTenantMismatch, 实际: %v", err)
	}
}

// ── Delete 测试 ──

func TestEventService_Delete(t *testing.T) {
	svc, f := setupEventTest(t)

	record, err := svc.Create(context.Background(), weeklyCreateRequest())
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	extID := record.ExternalEvents[0].ExternalID

	if err := svc.Delete(context.Background(), "tenant-a", record.EventID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if _, ok := f.gw.events[extID]; ok {
		t.Error("外部事件应被删除")
	}
	if f.eventRepo.records[record.EventID].IsActive {
		t.Error("记录应被软删除")
	}
}

// ── Upcoming 测试 ──

func TestEventService_Upcoming_ThisWeek(t *testing.T) {
	svc, _ := setupEventTest(t)

	if _, err := svc.Create(context.Background(), weeklyCreateRequest()); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	out, err := svc.Upcoming(context.Background(), &dto.UpcomingRequest{TenantID: "tenant-a", Range: "this_week"})
	if err != nil {
		t.Fatalf("Upcoming 应成功: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("本周应恰有一次日程, 实际 %d 次: %+v", len(out), out)
	}
	if out[0].Name != "每周歌枠" || out[0].TimeOfDay != "19:30" {
		t.Errorf("日程内容异常: %+v", out[0])
	}
	date, err := time.Parse("2006-01-02", out[0].Date)
	if err != nil {
		t.Fatalf("日期格式异常: %q", out[0].Date)
	}
	if isoWeekday(date) != 2 {
		t.Errorf("日程应落在周三, 实际 %s", out[0].Date)
	}
}

func TestEventService_Upcoming_IrregularExcluded(t *testing.T) {
	svc, f := setupEventTest(t)

	f.eventRepo.records["evt-adhoc"] = &model.EventRecord{
		EventID:        "evt-adhoc",
		TenantID:       "tenant-a",
		Name:           "临时企划",
		RecurrenceKind: model.RecurrenceIrregular,
		IsActive:       true,
	}

	out, err := svc.Upcoming(context.Background(), &dto.UpcomingRequest{TenantID: "tenant-a", Range: "this_month"})
	if err != nil {
		t.Fatalf("Upcoming 应成功: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("不定期记录不应出现在日程中: %+v", out)
	}
}
