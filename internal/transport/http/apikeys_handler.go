package httptransport

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aegisx/backend/internal/domain"
	"aegisx/backend/internal/modules/apikeys"
	"aegisx/backend/internal/query"
	"aegisx/backend/internal/service"
)

// APIKeyHandler API密钥相关的 HTTP 处理器
type APIKeyHandler struct {
	module *apikeys.Module
	log    *zap.Logger
}

// NewAPIKeyHandler 创建API密钥处理器
func NewAPIKeyHandler(module *apikeys.Module, log *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		module: module,
		log:    log,
	}
}

// createAPIKeyRequest 创建密钥请求
type createAPIKeyRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	ExpiresIn   *int64 `json:"expiresInSeconds"` // 为空表示永不过期
}

// updateAPIKeyRequest 更新密钥请求；密钥材料字段不可更新
type updateAPIKeyRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// actorFrom 从请求上下文还原操作者身份
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: c.GetString("userID"),
		Role:   domain.ParseRole(c.GetString("role")),
		IP:     c.ClientIP(),
	}
}

// bindListQuery 解析通用列表查询参数。
// filterKeys 之外的查询参数一律忽略，范围过滤用 <key>_min / <key>_max。
func bindListQuery(c *gin.Context, filterKeys ...string) query.ListQuery {
	q := query.ListQuery{
		Sort:   c.Query("sort"),
		Search: c.Query("search"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		q.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		q.Limit = limit
	}
	if fields := c.Query("fields"); fields != "" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				q.Fields = append(q.Fields, f)
			}
		}
	}
	for _, key := range filterKeys {
		for _, suffix := range []string{"", "_min", "_max"} {
			if v, ok := c.GetQuery(key + suffix); ok && v != "" {
				if q.Filters == nil {
					q.Filters = map[string]any{}
				}
				q.Filters[key+suffix] = v
			}
		}
	}
	q.Normalize()
	return q
}

// Create 创建新的API密钥，明文仅此一次返回
// @Summary 创建API密钥
// @Tags apikeys
// @Accept json
// @Produce json
// @Param request body createAPIKeyRequest true "密钥参数"
// @Success 201 {object} Response
// @Router /v1/apikeys [post]
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := apikeys.CreateInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.ExpiresIn != nil {
		if *req.ExpiresIn <= 0 {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		d := time.Duration(*req.ExpiresIn) * time.Second
		input.ExpiresIn = &d
	}

	created, err := h.module.CreateWithSecret(c.Request.Context(), input, actorFrom(c))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Created(c, created)
}

// List 分页列出API密钥；返回字段按调用方角色裁剪
// @Summary API密钥列表
// @Tags apikeys
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Param sort query string false "排序表达式，如 createdAt:desc,name:asc"
// @Param search query string false "按名称/描述搜索"
// @Param fields query string false "投影字段，逗号分隔"
// @Success 200 {object} Response
// @Router /v1/apikeys [get]
func (h *APIKeyHandler) List(c *gin.Context) {
	q := bindListQuery(c, "is_active", "usage_count", "expires_at", "created_by")

	keys, page, err := h.module.List(c.Request.Context(), q, actorFrom(c))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	SuccessList(c, keys, page)
}

// Get 按 ID 获取API密钥详情
// @Summary API密钥详情
// @Tags apikeys
// @Produce json
// @Param id path string true "密钥ID"
// @Success 200 {object} Response
// @Router /v1/apikeys/{id} [get]
func (h *APIKeyHandler) Get(c *gin.Context) {
	key, err := h.module.Entities().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}
	if key == nil {
		NotFound(c, MsgNotFound)
		return
	}

	Success(c, key)
}

// Update 更新API密钥的名称、描述或启用状态
// @Summary 更新API密钥
// @Tags apikeys
// @Accept json
// @Produce json
// @Param id path string true "密钥ID"
// @Param request body updateAPIKeyRequest true "更新字段"
// @Success 200 {object} Response
// @Router /v1/apikeys/{id} [patch]
func (h *APIKeyHandler) Update(c *gin.Context) {
	var req updateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	partial := map[string]any{}
	if req.Name != nil {
		partial["name"] = *req.Name
	}
	if req.Description != nil {
		partial["description"] = *req.Description
	}
	if req.IsActive != nil {
		partial["is_active"] = *req.IsActive
	}
	if len(partial) == 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	key, err := h.module.Entities().Update(c.Request.Context(), c.Param("id"), partial, actorFrom(c))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, key)
}

// Delete 删除API密钥并清理其关联附件
// @Summary 删除API密钥
// @Tags apikeys
// @Param id path string true "密钥ID"
// @Success 204
// @Router /v1/apikeys/{id} [delete]
func (h *APIKeyHandler) Delete(c *gin.Context) {
	if err := h.module.Entities().Delete(c.Request.Context(), c.Param("id")); err != nil {
		WriteError(c, h.log, err)
		return
	}

	NoContent(c)
}
