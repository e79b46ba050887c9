package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"astro-union/internal/dto"
	"astro-union/internal/service"
	"astro-union/pkg/response"
)

// CatalogHandler 展示目录 HTTP 处理器
type CatalogHandler struct {
	catalogSvc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(catalogSvc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// Snapshot 获取租户的完整展示目录
// GET /api/v1/catalog?tenant_id=xxx
func (h *CatalogHandler) Snapshot(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		response.BadRequest(c, 10001, "tenant_id 不能为空")
		return
	}

	snapshot, err := h.catalogSvc.Snapshot(c.Request.Context(), tenantID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, snapshot)
}

// CreateTagGroup 创建标签分组
// POST /api/v1/catalog/groups
func (h *CatalogHandler) CreateTagGroup(c *gin.Context) {
	var req dto.CreateTagGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	group, err := h.catalogSvc.CreateTagGroup(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Created(c, group)
}

// DeleteTagGroup 删除标签分组（级联删除组内标签）
// DELETE /api/v1/catalog/groups/:id
func (h *CatalogHandler) DeleteTagGroup(c *gin.Context) {
	err := h.catalogSvc.DeleteTagGroup(c.Request.Context(), c.Query("tenant_id"), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTagGroupNotFound) {
			response.NotFound(c, 30001, "标签分组不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}

// CreateTag 创建标签
// POST /api/v1/catalog/tags
func (h *CatalogHandler) CreateTag(c *gin.Context) {
	var req dto.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	tag, err := h.catalogSvc.CreateTag(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrTagGroupNotFound) {
			response.BadRequest(c, 30001, "标签分组不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, tag)
}

// DeleteTag 按名称删除标签
// DELETE /api/v1/catalog/tags/:name
func (h *CatalogHandler) DeleteTag(c *gin.Context) {
	if err := h.catalogSvc.DeleteTag(c.Request.Context(), c.Query("tenant_id"), c.Param("name")); err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}

// CreateColorPreset 创建颜色预设
// POST /api/v1/catalog/colors
func (h *CatalogHandler) CreateColorPreset(c *gin.Context) {
	var req dto.CreateColorPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	preset, err := h.catalogSvc.CreateColorPreset(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Created(c, preset)
}

// DeleteColorPreset 删除颜色预设
// DELETE /api/v1/catalog/colors/:name
func (h *CatalogHandler) DeleteColorPreset(c *gin.Context) {
	err := h.catalogSvc.DeleteColorPreset(c.Request.Context(), c.Query("tenant_id"), c.Query("owner_id"), c.Param("name"))
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}
