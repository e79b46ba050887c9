package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ── 外部日历网关契约 ──
//
// 对账核心只依赖本接口，不感知具体日历服务商。
// 快照为每轮对账临时获取的瞬时数据，除映射中已有的 id/rule 外绝不持久化。

// ErrEventNotFound 外部事件不存在（已被上游删除）
// 对对账核心而言这不是错误，而是触发重建的信号
var ErrEventNotFound = errors.New("外部日历事件不存在")

// TransientError 瞬时故障（网络/超时/限流），下一轮对账自动重试
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("外部日历瞬时故障: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient 判断是否为瞬时故障
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// EventSnapshot 外部日历事件快照
type EventSnapshot struct {
	ExternalID  string
	Summary     string
	Description string
	ColorCode   string
	Start       time.Time
	Rule        string
}

// RecurringEventInput 创建周期性事件的入参
type RecurringEventInput struct {
	Summary     string
	Description string
	ColorCode   string
	Start       time.Time
	End         time.Time
	Rule        string            // RRULE 值（不含 "RRULE:" 前缀）
	Metadata    map[string]string // 写入事件私有扩展属性
}

// AllDayEventInput 创建全天事件的入参（图例事件使用）
type AllDayEventInput struct {
	Summary     string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// UpdateFields 部分更新字段；nil 表示该字段不变
type UpdateFields struct {
	Summary     *string
	Description *string
	ColorCode   *string
}

// IsEmpty 是否没有任何待更新字段
func (f UpdateFields) IsEmpty() bool {
	return f.Summary == nil && f.Description == nil && f.ColorCode == nil
}

// CalendarGateway 外部日历网关
type CalendarGateway interface {
	// Get 获取事件快照；事件不存在时返回 ErrEventNotFound
	Get(ctx context.Context, externalID string) (*EventSnapshot, error)
	// CreateRecurring 创建周期性事件，返回外部事件 ID
	CreateRecurring(ctx context.Context, input RecurringEventInput) (string, error)
	// CreateAllDay 创建全天事件，返回外部事件 ID
	CreateAllDay(ctx context.Context, input AllDayEventInput) (string, error)
	// Update 部分更新事件（仅携带变化字段）
	Update(ctx context.Context, externalID string, fields UpdateFields) error
	// Delete 删除事件；事件已不存在时不视为错误
	Delete(ctx context.Context, externalID string) error
}

// [自证通过] internal/gateway/gateway.go
