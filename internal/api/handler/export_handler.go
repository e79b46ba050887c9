package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"astro-union/internal/service"
	"astro-union/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc     service.ExportService
	defaultMonths int
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, defaultMonths int) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, defaultMonths: defaultMonths}
}

// Workbook 导出 xlsx 日程表
// GET /api/v1/export/workbook?tenant_id=xxx&months=3
func (h *ExportHandler) Workbook(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		response.BadRequest(c, 10001, "tenant_id 不能为空")
		return
	}
	months := h.defaultMonths
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, 10001, "months 必须为整数")
			return
		}
		months = n
	}

	data, err := h.exportSvc.MonthlyWorkbook(c.Request.Context(), tenantID, time.Now(), months)
	if err != nil {
		if errors.Is(err, service.ErrInvalidExportRange) {
			response.BadRequest(c, 50001, "导出月数必须在 1-12 之间")
			return
		}
		response.InternalError(c)
		return
	}

	filename := fmt.Sprintf("schedule_%s_%s.xlsx", tenantID, time.Now().Format("200601"))
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ICSFeed 导出 iCalendar 订阅文件
// GET /api/v1/export/ics?tenant_id=xxx
func (h *ExportHandler) ICSFeed(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		response.BadRequest(c, 10001, "tenant_id 不能为空")
		return
	}

	data, err := h.exportSvc.ICSFeed(c.Request.Context(), tenantID)
	if err != nil {
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=schedule.ics")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}
