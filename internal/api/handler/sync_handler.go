package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"astro-union/internal/service"
	"astro-union/pkg/response"
)

// SyncHandler 对账与图例 HTTP 处理器
type SyncHandler struct {
	reconcileSvc service.ReconcileService
	legendSvc    service.LegendService
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(reconcileSvc service.ReconcileService, legendSvc service.LegendService) *SyncHandler {
	return &SyncHandler{reconcileSvc: reconcileSvc, legendSvc: legendSvc}
}

// RunPass 手动触发一轮全量对账
// POST /api/v1/sync/run
func (h *SyncHandler) RunPass(c *gin.Context) {
	report, err := h.reconcileSvc.RunPass(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrPassInProgress) {
			response.Conflict(c, 40001, "上一轮对账尚未结束")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, report)
}

// RunTenant 手动触发单租户对账
// POST /api/v1/sync/tenants/:id
func (h *SyncHandler) RunTenant(c *gin.Context) {
	report, err := h.reconcileSvc.RunTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPassInProgress):
			response.Conflict(c, 40001, "上一轮对账尚未结束")
		case errors.Is(err, service.ErrTenantNotFound):
			response.NotFound(c, 40002, "租户不存在")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, report)
}

// RefreshLegend 手动刷新租户图例事件
// POST /api/v1/sync/tenants/:id/legend
func (h *SyncHandler) RefreshLegend(c *gin.Context) {
	if err := h.legendSvc.RefreshTenant(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, http.StatusBadGateway, 40003, "图例刷新失败")
		return
	}
	response.OK(c, nil)
}
