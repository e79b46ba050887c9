package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"astro-union/internal/dto"
	"astro-union/internal/gateway"
	"astro-union/internal/model"
	"astro-union/internal/service"
	"astro-union/pkg/response"
)

// EventHandler 活动台账 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// Create 创建周期性活动
// POST /api/v1/events
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	record, err := h.eventSvc.Create(c.Request.Context(), &req)
	if err != nil {
		writeEventError(c, err)
		return
	}
	response.Created(c, dto.FromEventRecord(record))
}

// Get 获取单条活动
// GET /api/v1/events/:id
func (h *EventHandler) Get(c *gin.Context) {
	record, err := h.eventSvc.Get(c.Request.Context(), c.Query("tenant_id"), c.Param("id"))
	if err != nil {
		writeEventError(c, err)
		return
	}
	response.OK(c, dto.FromEventRecord(record))
}

// List 列出租户活跃活动
// GET /api/v1/events?tenant_id=xxx&name=yyy
func (h *EventHandler) List(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		response.BadRequest(c, 10001, "tenant_id 不能为空")
		return
	}

	var (
		records []model.EventRecord
		err     error
	)
	if name := c.Query("name"); name != "" {
		records, err = h.eventSvc.Search(c.Request.Context(), tenantID, name)
	} else {
		records, err = h.eventSvc.List(c.Request.Context(), tenantID)
	}
	if err != nil {
		response.InternalError(c)
		return
	}

	out := make([]dto.EventResponse, 0, len(records))
	for i := range records {
		out = append(out, dto.FromEventRecord(&records[i]))
	}
	response.OK(c, out)
}

// Update 更新活动
// PATCH /api/v1/events/:id
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	record, err := h.eventSvc.Update(c.Request.Context(), c.Query("tenant_id"), c.Param("id"), &req)
	if err != nil {
		writeEventError(c, err)
		return
	}
	response.OK(c, dto.FromEventRecord(record))
}

// Delete 删除活动（软删除 + 回收外部镜像）
// DELETE /api/v1/events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.eventSvc.Delete(c.Request.Context(), c.Query("tenant_id"), c.Param("id")); err != nil {
		writeEventError(c, err)
		return
	}
	response.OK(c, nil)
}

// Upcoming 近期日程展开
// GET /api/v1/events/upcoming?tenant_id=xxx&range=this_week
func (h *EventHandler) Upcoming(c *gin.Context) {
	var req dto.UpcomingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	occurrences, err := h.eventSvc.Upcoming(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, occurrences)
}

// writeEventError 活动模块业务错误到 HTTP 响应的映射
func writeEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 20001, "活动记录不存在")
	case errors.Is(err, service.ErrTenantMismatch):
		response.NotFound(c, 20001, "活动记录不存在")
	case errors.Is(err, service.ErrOwnerNotFound):
		response.BadRequest(c, 20002, "日历账户不存在")
	case errors.Is(err, service.ErrUnknownTags):
		response.BadRequest(c, 20003, "存在未登记的标签")
	case errors.Is(err, service.ErrColorPresetMissing):
		response.BadRequest(c, 20004, "颜色名未登记")
	case errors.Is(err, service.ErrInvalidWeekday),
		errors.Is(err, service.ErrInvalidNthWeeks),
		errors.Is(err, service.ErrInvalidTimeFormat):
		response.BadRequest(c, 20005, err.Error())
	case gateway.IsTransient(err):
		response.Error(c, http.StatusBadGateway, 20006, "外部日历暂时不可用，请稍后重试")
	default:
		response.InternalError(c)
	}
}
