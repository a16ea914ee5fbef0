package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"content-forge-api/internal/interfaces/http/dto"
	"content-forge-api/internal/interfaces/http/middleware"
)

// UsageHandler 用量与额度处理器
type UsageHandler struct {
	usage UsageService
}

// NewUsageHandler 创建用量处理器
func NewUsageHandler(usage UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// CanGenerate 查询当前用户是否可以生成
// 首次访问时按注册默认值创建用户记录
// @Summary 生成资格
// @Tags Usage
// @Produce json
// @Success 200 {object} dto.Response[dto.CanGenerateResponse]
// @Failure 401 {object} dto.ErrorResponse
// @Router /v1/usage/can-generate [get]
func (h *UsageHandler) CanGenerate(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	user, err := h.usage.EnsureUser(ctx, userID)
	if err != nil {
		respondError(c, "ensure user", err)
		return
	}

	decision, err := h.usage.Evaluate(ctx, userID)
	if err != nil {
		respondError(c, "evaluate usage", err)
		return
	}

	resp := dto.CanGenerateResponse{
		Allowed: decision.Allowed,
		Role:    decision.Role,
		User:    dto.ToUserUsageResponse(user),
	}
	if decision.Reason != nil {
		resp.Reason = decision.Reason.Message
		if decision.Reason.Detail != "" {
			resp.Reason = decision.Reason.Detail
		}
	}
	dto.Success(c, resp)
}

// GrantCredits 管理员为付费用户充值
// @Summary 充值额度
// @Tags Admin
// @Accept json
// @Produce json
// @Param uid path string true "用户 ID"
// @Param body body dto.GrantCreditsRequest true "充值数量"
// @Success 200 {object} dto.Response[dto.UserUsageResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/admin/users/{uid}/credits [post]
func (h *UsageHandler) GrantCredits(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("uid"))
	if userID == "" {
		dto.BadRequest(c, "user id is required")
		return
	}

	var req dto.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.usage.GrantCredits(c.Request.Context(), userID, req.Credits)
	if err != nil {
		respondError(c, "grant credits", err)
		return
	}
	dto.Success(c, dto.ToUserUsageResponse(user))
}
