package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"astro-union/internal/dto"
	"astro-union/internal/gateway"
	"astro-union/internal/model"
	"astro-union/internal/repository"
)

// ── 活动台账业务错误 ──

var (
	ErrEventNotFound  = errors.New("活动记录不存在")
	ErrOwnerNotFound  = errors.New("日历账户不存在")
	ErrTenantMismatch = errors.New("活动记录不属于该租户")
)

// EventService 活动台账业务接口
type EventService interface {
	// Create 创建活动记录；非不定期记录同步创建外部镜像事件
	Create(ctx context.Context, req *dto.CreateEventRequest) (*model.EventRecord, error)
	// Get 获取单条活动记录
	Get(ctx context.Context, tenantID, eventID string) (*model.EventRecord, error)
	// List 列出租户的全部活跃记录
	List(ctx context.Context, tenantID string) ([]model.EventRecord, error)
	// Search 按名称模糊检索
	Search(ctx context.Context, tenantID, name string) ([]model.EventRecord, error)
	// Update 更新记录并把变化推送到外部镜像
	Update(ctx context.Context, tenantID, eventID string, req *dto.UpdateEventRequest) (*model.EventRecord, error)
	// Delete 软删除记录并删除外部镜像事件
	Delete(ctx context.Context, tenantID, eventID string) error
	// Upcoming 展开指定时间窗内的全部日程
	Upcoming(ctx context.Context, req *dto.UpcomingRequest) ([]dto.OccurrenceResponse, error)
}

type eventService struct {
	repo     *repository.Repository
	catalog  CatalogService
	gateways GatewayFactory
	location *time.Location
	logger   *zap.Logger
}

// NewEventService 创建 EventService 实例
func NewEventService(
	repo *repository.Repository,
	catalog CatalogService,
	gateways GatewayFactory,
	location *time.Location,
	logger *zap.Logger,
) EventService {
	if location == nil {
		location = time.UTC
	}
	return &eventService{
		repo:     repo,
		catalog:  catalog,
		gateways: gateways,
		location: location,
		logger:   logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Create — 创建活动并镜像到外部日历
// ═══════════════════════════════════════════════════════════

func (s *eventService) Create(ctx context.Context, req *dto.CreateEventRequest) (*model.EventRecord, error) {
	if req.RecurrenceKind != model.RecurrenceIrregular {
		if err := ValidateSchedule(req.RecurrenceKind, req.Weekday, req.NthWeeks); err != nil {
			return nil, err
		}
		if req.TimeOfDay != "" {
			if _, _, err := parseTimeOfDay(req.TimeOfDay); err != nil {
				return nil, err
			}
		}
	}

	// 标签与颜色必须在目录中预先登记，拒绝台账出现野值
	missing, err := s.catalog.FindMissingTags(ctx, req.TenantID, req.Tags)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, ErrUnknownTags
	}

	account, err := s.repo.CalendarAccount.GetByID(ctx, req.OwnerID)
	if err != nil {
		return nil, ErrOwnerNotFound
	}
	if account.TenantID != req.TenantID {
		return nil, ErrOwnerNotFound
	}

	snapshot, err := s.catalog.Snapshot(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	var preset *model.ColorPreset
	if req.ColorName != "" {
		preset = snapshot.PresetForOwner(req.OwnerID, req.ColorName)
		if preset == nil {
			return nil, ErrColorPresetMissing
		}
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	record := &model.EventRecord{
		EventID:         uuid.NewString(),
		TenantID:        req.TenantID,
		OwnerID:         req.OwnerID,
		Name:            req.Name,
		Description:     req.Description,
		RecurrenceKind:  req.RecurrenceKind,
		Weekday:         req.Weekday,
		NthWeeks:        req.NthWeeks,
		TimeOfDay:       req.TimeOfDay,
		DurationMinutes: duration,
		Tags:            req.Tags,
		ColorName:       req.ColorName,
		Links:           toLinkFields(req.Links),
		ExternalEvents:  model.ExternalMappings{},
		IsActive:        true,
	}

	// 不定期活动只入台账，不创建外部事件
	if req.RecurrenceKind != model.RecurrenceIrregular {
		externalID, rule, err := s.createMirror(ctx, account, record, snapshot)
		if err != nil {
			return nil, err
		}
		record.ExternalEvents = model.ExternalMappings{{ExternalID: externalID, Rule: rule}}
	}

	if err := s.repo.EventRecord.Create(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("已创建活动记录",
		zap.String("event_id", record.EventID),
		zap.String("name", record.Name),
		zap.String("recurrence_kind", record.RecurrenceKind),
	)
	return record, nil
}

// createMirror 在外部日历中创建镜像事件，返回外部 id 与 RRULE
func (s *eventService) createMirror(
	ctx context.Context,
	account *model.CalendarAccount,
	record *model.EventRecord,
	snapshot *dto.CatalogSnapshot,
) (string, string, error) {
	gw, err := s.gateways.ForAccount(account, tokenPersister(s.repo, account.AccountID))
	if err != nil {
		return "", "", err
	}

	weekday := 0
	if record.Weekday != nil {
		weekday = *record.Weekday
	}
	rule, err := ToRule(record.RecurrenceKind, weekday, record.NthWeeks)
	if err != nil {
		return "", "", err
	}
	start, err := NextOccurrence(record.RecurrenceKind, weekday, record.NthWeeks, record.TimeOfDay, time.Now().In(s.location))
	if err != nil {
		return "", "", err
	}

	expected := BuildExpectedEvent(record, snapshot.TagGroups, snapshot.PresetForOwner(record.OwnerID, record.ColorName))
	externalID, err := gw.CreateRecurring(ctx, gateway.RecurringEventInput{
		Summary:     expected.Summary,
		Description: expected.Description,
		ColorCode:   expected.ColorCode,
		Start:       start,
		End:         start.Add(time.Duration(record.DurationMinutes) * time.Minute),
		Rule:        rule,
		Metadata: map[string]string{
			"record_id": record.EventID,
			"tenant_id": record.TenantID,
		},
	})
	if err != nil {
		return "", "", err
	}
	return externalID, rule, nil
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *eventService) Get(ctx context.Context, tenantID, eventID string) (*model.EventRecord, error) {
	record, err := s.repo.EventRecord.GetByID(ctx, eventID)
	if err != nil {
		return nil, ErrEventNotFound
	}
	if record.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return record, nil
}

func (s *eventService) List(ctx context.Context, tenantID string) ([]model.EventRecord, error) {
	return s.repo.EventRecord.ListActiveByTenant(ctx, tenantID)
}

func (s *eventService) Search(ctx context.Context, tenantID, name string) ([]model.EventRecord, error) {
	return s.repo.EventRecord.SearchByName(ctx, tenantID, name)
}

// ═══════════════════════════════════════════════════════════
// Update — 更新台账并推送到镜像
// ═══════════════════════════════════════════════════════════

func (s *eventService) Update(ctx context.Context, tenantID, eventID string, req *dto.UpdateEventRequest) (*model.EventRecord, error) {
	record, err := s.Get(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}

	if req.TimeOfDay != nil && *req.TimeOfDay != "" {
		if _, _, err := parseTimeOfDay(*req.TimeOfDay); err != nil {
			return nil, err
		}
	}
	if req.Tags != nil {
		missing, err := s.catalog.FindMissingTags(ctx, tenantID, req.Tags)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, ErrUnknownTags
		}
	}

	snapshot, err := s.catalog.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if req.ColorName != nil && *req.ColorName != "" {
		if snapshot.PresetForOwner(record.OwnerID, *req.ColorName) == nil {
			return nil, ErrColorPresetMissing
		}
	}

	if req.Name != nil {
		record.Name = *req.Name
	}
	if req.Description != nil {
		record.Description = *req.Description
	}
	if req.TimeOfDay != nil {
		record.TimeOfDay = *req.TimeOfDay
	}
	if req.Tags != nil {
		record.Tags = req.Tags
	}
	if req.ColorName != nil {
		record.ColorName = *req.ColorName
	}
	if req.Links != nil {
		record.Links = toLinkFields(req.Links)
	}

	if err := s.repo.EventRecord.Update(ctx, record); err != nil {
		return nil, err
	}

	// 镜像推送失败不回滚台账：对账环会在下一轮修复漂移
	if err := s.pushMirror(ctx, record, snapshot); err != nil {
		s.logger.Warn("镜像推送失败，等待对账修复",
			zap.String("event_id", record.EventID),
			zap.Error(err),
		)
	}
	return record, nil
}

// pushMirror 把台账当前形态推送到全部外部映射
func (s *eventService) pushMirror(ctx context.Context, record *model.EventRecord, snapshot *dto.CatalogSnapshot) error {
	if len(record.ExternalEvents) == 0 {
		return nil
	}
	account, err := s.repo.CalendarAccount.GetByID(ctx, record.OwnerID)
	if err != nil {
		return err
	}
	gw, err := s.gateways.ForAccount(account, tokenPersister(s.repo, account.AccountID))
	if err != nil {
		return err
	}

	expected := BuildExpectedEvent(record, snapshot.TagGroups, snapshot.PresetForOwner(record.OwnerID, record.ColorName))
	fields := gateway.UpdateFields{
		Summary:     &expected.Summary,
		Description: &expected.Description,
	}
	if expected.ColorCode != "" {
		fields.ColorCode = &expected.ColorCode
	}
	for _, mapping := range record.ExternalEvents {
		if err := gw.Update(ctx, mapping.ExternalID, fields); err != nil {
			return err
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// Delete — 软删除并回收镜像
// ═══════════════════════════════════════════════════════════

func (s *eventService) Delete(ctx context.Context, tenantID, eventID string) error {
	record, err := s.Get(ctx, tenantID, eventID)
	if err != nil {
		return err
	}

	if len(record.ExternalEvents) > 0 {
		account, err := s.repo.CalendarAccount.GetByID(ctx, record.OwnerID)
		if err == nil {
			if gw, err := s.gateways.ForAccount(account, tokenPersister(s.repo, account.AccountID)); err == nil {
				for _, mapping := range record.ExternalEvents {
					// Delete 对已不存在的事件保持幂等
					if err := gw.Delete(ctx, mapping.ExternalID); err != nil {
						s.logger.Warn("外部事件删除失败",
							zap.String("event_id", record.EventID),
							zap.String("external_id", mapping.ExternalID),
							zap.Error(err),
						)
					}
				}
			}
		}
	}

	if err := s.repo.EventRecord.Deactivate(ctx, eventID); err != nil {
		return err
	}
	s.logger.Info("已删除活动记录", zap.String("event_id", eventID))
	return nil
}

// ═══════════════════════════════════════════════════════════
// Upcoming — 时间窗内的日程展开
// ═══════════════════════════════════════════════════════════

func (s *eventService) Upcoming(ctx context.Context, req *dto.UpcomingRequest) ([]dto.OccurrenceResponse, error) {
	from, to := s.dateRange(req.Range, time.Now().In(s.location))

	records, err := s.repo.EventRecord.ListActiveByTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	var out []dto.OccurrenceResponse
	for i := range records {
		record := &records[i]
		if !record.IsSchedulable() {
			continue
		}
		weekday := 0
		if record.Weekday != nil {
			weekday = *record.Weekday
		}
		dates, err := Occurrences(record.RecurrenceKind, weekday, record.NthWeeks, from, to)
		if err != nil {
			// 配置异常的记录静默跳过，对账环负责上报
			continue
		}
		for _, d := range dates {
			out = append(out, dto.OccurrenceResponse{
				EventID:   record.EventID,
				Name:      record.Name,
				Date:      d.Format("2006-01-02"),
				TimeOfDay: record.TimeOfDay,
				Tags:      record.Tags,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].TimeOfDay != out[j].TimeOfDay {
			return out[i].TimeOfDay < out[j].TimeOfDay
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// dateRange 把查询范围换算为闭区间 [from, to]
func (s *eventService) dateRange(name string, now time.Time) (time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monday := today.AddDate(0, 0, -isoWeekday(today))

	switch name {
	case "today":
		return today, today
	case "next_week":
		return monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 13)
	case "this_month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return first, first.AddDate(0, 1, -1)
	default: // this_week
		return monday, monday.AddDate(0, 0, 6)
	}
}

func toLinkFields(links []dto.LinkInput) model.LinkFields {
	out := make(model.LinkFields, 0, len(links))
	for _, l := range links {
		out = append(out, model.LinkField{Label: l.Label, URL: l.URL})
	}
	return out
}
