package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"astro-union/internal/model"
	"astro-union/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrInvalidExportRange = errors.New("导出月数必须在 1-12 之间")

// ExportService 日程导出业务接口
type ExportService interface {
	// MonthlyWorkbook 生成 xlsx 日程表，自起始月起每月一个工作表
	MonthlyWorkbook(ctx context.Context, tenantID string, start time.Time, months int) ([]byte, error)
	// ICSFeed 生成 iCalendar 订阅文件，每条活跃记录一个 VEVENT
	ICSFeed(ctx context.Context, tenantID string) ([]byte, error)
}

type exportService struct {
	repo     *repository.Repository
	catalog  CatalogService
	location *time.Location
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, catalog CatalogService, location *time.Location, logger *zap.Logger) ExportService {
	if location == nil {
		location = time.UTC
	}
	return &exportService{repo: repo, catalog: catalog, location: location, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// MonthlyWorkbook — xlsx 日程表
// ═══════════════════════════════════════════════════════════

var workbookHeaders = []string{"日付", "曜日", "時刻", "活动名", "标签", "颜色"}

var weekdayLabels = []string{"月", "火", "水", "木", "金", "土", "日"}

func (s *exportService) MonthlyWorkbook(ctx context.Context, tenantID string, start time.Time, months int) ([]byte, error) {
	if months < 1 || months > 12 {
		return nil, ErrInvalidExportRange
	}
	records, err := s.repo.EventRecord.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	for m := 0; m < months; m++ {
		first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, s.location).AddDate(0, m, 0)
		last := first.AddDate(0, 1, -1)
		sheet := first.Format("2006-01")

		if m == 0 {
			// excelize 初始工作表固定叫 Sheet1，改名复用
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}

		for col, header := range workbookHeaders {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sheet, cell, header); err != nil {
				return nil, err
			}
		}

		row := 2
		for _, occ := range s.expand(records, first, last) {
			values := []interface{}{
				occ.date.Format("2006-01-02"),
				weekdayLabels[isoWeekday(occ.date)],
				occ.record.TimeOfDay,
				occ.record.Name,
				strings.Join(occ.record.Tags, "、"),
				occ.record.ColorName,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, err
				}
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type occurrence struct {
	date   time.Time
	record *model.EventRecord
}

// expand 把记录集合展开为 [from, to] 区间内按日期排序的日程行
func (s *exportService) expand(records []model.EventRecord, from, to time.Time) []occurrence {
	var out []occurrence
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
			continue
		}
		for _, d := range dates {
			out = append(out, occurrence{date: d, record: record})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].date.Equal(out[j].date) {
			return out[i].date.Before(out[j].date)
		}
		if out[i].record.TimeOfDay != out[j].record.TimeOfDay {
			return out[i].record.TimeOfDay < out[j].record.TimeOfDay
		}
		return out[i].record.Name < out[j].record.Name
	})
	return out
}

// ═══════════════════════════════════════════════════════════
// ICSFeed — iCalendar 订阅
// ═══════════════════════════════════════════════════════════

func (s *exportService) ICSFeed(ctx context.Context, tenantID string) ([]byte, error) {
	records, err := s.repo.EventRecord.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.catalog.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//astro-union//schedule//JA")

	now := time.Now().In(s.location)
	for i := range records {
		record := &records[i]
		if !record.IsSchedulable() {
			continue
		}
		weekday := 0
		if record.Weekday != nil {
			weekday = *record.Weekday
		}
		rule, err := ToRule(record.RecurrenceKind, weekday, record.NthWeeks)
		if err != nil {
			continue
		}
		start, err := NextOccurrence(record.RecurrenceKind, weekday, record.NthWeeks, record.TimeOfDay, now)
		if err != nil {
			continue
		}

		expected := BuildExpectedEvent(record, snapshot.TagGroups, snapshot.PresetForOwner(record.OwnerID, record.ColorName))

		event := cal.AddEvent(fmt.Sprintf("%s@astro-union", record.EventID))
		event.SetSummary(expected.Summary)
		event.SetDescription(expected.Description)
		event.SetStartAt(start)
		event.SetEndAt(start.Add(time.Duration(record.DurationMinutes) * time.Minute))
		event.SetDtStampTime(now)
		event.AddRrule(rule)
	}

	return []byte(cal.Serialize()), nil
}
