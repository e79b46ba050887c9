package dto

import "astro-union/internal/model"

// ── 活动台账请求 ──

// LinkInput 带标签的链接入参
type LinkInput struct {
	Label string `json:"label" binding:"max=100"`
	URL   string `json:"url"   binding:"required,url"`
}

// CreateEventRequest 创建周期性活动请求
type CreateEventRequest struct {
	TenantID        string      `json:"tenant_id"        binding:"required"`
	OwnerID         string      `json:"owner_id"         binding:"required,uuid"`
	Name            string      `json:"name"             binding:"required,max=200"`
	Description     string      `json:"description"      binding:"max=4000"`
	RecurrenceKind  string      `json:"recurrence_kind"  binding:"required,oneof=weekly biweekly nth_week irregular"`
	Weekday         *int        `json:"weekday"          binding:"omitempty,min=0,max=6"`
	NthWeeks        []int       `json:"nth_weeks"        binding:"omitempty,dive,min=1,max=5"`
	TimeOfDay       string      `json:"time_of_day"      binding:"omitempty,len=5"`
	DurationMinutes int         `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
	Tags            []string    `json:"tags"             binding:"omitempty,dive,max=100"`
	ColorName       string      `json:"color_name"       binding:"max=50"`
	Links           []LinkInput `json:"links"            binding:"omitempty,dive"`
}

// UpdateEventRequest 更新周期性活动请求（指针字段为 nil 表示不变）
type UpdateEventRequest struct {
	Name        *string     `json:"name"        binding:"omitempty,max=200"`
	Description *string     `json:"description" binding:"omitempty,max=4000"`
	TimeOfDay   *string     `json:"time_of_day" binding:"omitempty,len=5"`
	Tags        []string    `json:"tags"        binding:"omitempty,dive,max=100"`
	ColorName   *string     `json:"color_name"  binding:"omitempty,max=50"`
	Links       []LinkInput `json:"links"       binding:"omitempty,dive"`
}

// UpcomingRequest 近期日程查询参数
type UpcomingRequest struct {
	TenantID string `form:"tenant_id" binding:"required"`
	Range    string `form:"range"     binding:"omitempty,oneof=today this_week next_week this_month"`
}

// ── 活动台账响应 ──

// EventResponse 活动记录响应
type EventResponse struct {
	EventID         string                 `json:"event_id"`
	TenantID        string                 `json:"tenant_id"`
	OwnerID         string                 `json:"owner_id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	RecurrenceKind  string                 `json:"recurrence_kind"`
	Weekday         *int                   `json:"weekday,omitempty"`
	NthWeeks        []int                  `json:"nth_weeks,omitempty"`
	TimeOfDay       string                 `json:"time_of_day,omitempty"`
	DurationMinutes int                    `json:"duration_minutes"`
	Tags            []string               `json:"tags,omitempty"`
	ColorName       string                 `json:"color_name,omitempty"`
	Links           []LinkInput            `json:"links,omitempty"`
	ExternalEvents  []model.ExternalMapping `json:"external_events,omitempty"`
	NextDate        string                 `json:"next_date,omitempty"` // YYYY-MM-DD
	CreatedAt       string                 `json:"created_at"`
}

// OccurrenceResponse 展开后的单次日程
type OccurrenceResponse struct {
	EventID   string   `json:"event_id"`
	Name      string   `json:"name"`
	Date      string   `json:"date"` // YYYY-MM-DD
	TimeOfDay string   `json:"time_of_day,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// FromEventRecord 将台账记录转为响应
func FromEventRecord(record *model.EventRecord) EventResponse {
	links := make([]LinkInput, 0, len(record.Links))
	for _, l := range record.Links {
		links = append(links, LinkInput{Label: l.Label, URL: l.URL})
	}
	return EventResponse{
		EventID:         record.EventID,
		TenantID:        record.TenantID,
		OwnerID:         record.OwnerID,
		Name:            record.Name,
		Description:     record.Description,
		RecurrenceKind:  record.RecurrenceKind,
		Weekday:         record.Weekday,
		NthWeeks:        record.NthWeeks,
		TimeOfDay:       record.TimeOfDay,
		DurationMinutes: record.DurationMinutes,
		Tags:            record.Tags,
		ColorName:       record.ColorName,
		Links:           links,
		ExternalEvents:  record.ExternalEvents,
		CreatedAt:       record.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
