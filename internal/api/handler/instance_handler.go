package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/service"
	pkgerrors "classbridge/backend/pkg/errors"
	"classbridge/backend/pkg/response"
)

// InstanceHandler 课表实例 HTTP 处理器（物化与区间调整）
type InstanceHandler struct {
	materializeSvc service.MaterializeService
	instanceSvc    service.InstanceService
}

// NewInstanceHandler 创建 InstanceHandler
func NewInstanceHandler(materializeSvc service.MaterializeService, instanceSvc service.InstanceService) *InstanceHandler {
	return &InstanceHandler{materializeSvc: materializeSvc, instanceSvc: instanceSvc}
}

// Materialize 物化实例在指定区间内的课表条目
// POST /api/v1/instances/:id/materialize
func (h *InstanceHandler) Materialize(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 14001, "课表实例ID不能为空")
		return
	}

	var req dto.MaterializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	result, err := h.materializeSvc.MaterializeRange(c.Request.Context(), id, &req, nil)
	if err != nil {
		h.handleInstanceError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateRange 调整课表实例学期区间并重建物化条目
// PUT /api/v1/instances/:id/range
func (h *InstanceHandler) UpdateRange(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 14001, "课表实例ID不能为空")
		return
	}

	var req dto.UpdateInstanceRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	result, err := h.instanceSvc.UpdateRange(c.Request.Context(), id, &req)
	if err != nil {
		h.handleInstanceError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *InstanceHandler) handleInstanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInstanceNotFound):
		response.NotFound(c, 14101, "课表实例不存在")
	case errors.Is(err, service.ErrMaterializeRange):
		response.BadRequest(c, 14102, "物化区间非法")
	case errors.Is(err, service.ErrRangeOutsideTerm):
		response.BadRequest(c, 14103, "物化区间超出学期范围")
	case errors.Is(err, service.ErrInstanceRange):
		response.BadRequest(c, 14104, "学期区间非法")
	case errors.Is(err, service.ErrInstanceBackdate):
		response.BadRequest(c, 14105, "学期起始日不可回溯")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 14106, "数据已被其他操作修改，请重试", nil)
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/instance_handler.go
