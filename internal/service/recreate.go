package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-union/internal/gateway"
	"astro-union/internal/model"
	pkgerrors "astro-union/pkg/errors"
)

// recreateRecord 为上游已删除的记录重建外部事件
//
// 重建顺序不可颠倒：先创建新事件拿到新 id，成功后才覆写台账映射。
// 创建失败时旧映射原样保留，下一轮重新发现缺失并重试；
// 创建成功但台账写回失败则产生孤儿外部事件，按严重不一致上报。
func (s *reconcileService) recreateRecord(
	ctx context.Context,
	gw gateway.CalendarGateway,
	record *model.EventRecord,
	expected ExpectedEvent,
) error {
	if record.RecurrenceKind == model.RecurrenceIrregular {
		return ErrIrregularRecurrence
	}

	weekday := 0
	if record.Weekday != nil {
		weekday = *record.Weekday
	}

	rule, err := ToRule(record.RecurrenceKind, weekday, record.NthWeeks)
	if err != nil {
		return err
	}
	start, err := NextOccurrence(record.RecurrenceKind, weekday, record.NthWeeks, record.TimeOfDay, time.Now().In(s.location))
	if err != nil {
		return err
	}
	duration := time.Duration(record.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = time.Hour
	}

	externalID, err := gw.CreateRecurring(ctx, gateway.RecurringEventInput{
		Summary:     expected.Summary,
		Description: expected.Description,
		ColorCode:   expected.ColorCode,
		Start:       start,
		End:         start.Add(duration),
		Rule:        rule,
		Metadata: map[string]string{
			"record_id": record.EventID,
			"tenant_id": record.TenantID,
		},
	})
	if err != nil {
		// 旧映射保留，下一轮继续走重建路径
		return err
	}

	mappings := model.ExternalMappings{{ExternalID: externalID, Rule: rule}}
	if err := s.repo.EventRecord.UpdateExternalMappings(ctx, record.EventID, mappings); err != nil {
		// 新事件已在外部存在但台账不知道它——人工介入信号
		s.logger.Error("重建后台账写回失败，存在孤儿外部事件",
			zap.String("event_id", record.EventID),
			zap.String("external_id", externalID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: event_id=%s external_id=%s", pkgerrors.ErrCriticalInconsistency, record.EventID, externalID)
	}

	record.ExternalEvents = mappings
	s.logger.Info("已重建外部事件",
		zap.String("event_id", record.EventID),
		zap.String("name", record.Name),
		zap.String("external_id", externalID),
		zap.String("rule", rule),
	)
	return nil
}
