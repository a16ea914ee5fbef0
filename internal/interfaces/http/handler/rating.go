package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"content-forge-api/internal/application/quota"
	"content-forge-api/internal/interfaces/http/dto"
)

// ModelHandler 模型评分与排行榜处理器
type ModelHandler struct {
	usage       UsageService
	leaderboard quota.LeaderboardReader
}

// NewModelHandler 创建模型处理器
func NewModelHandler(usage UsageService, leaderboard quota.LeaderboardReader) *ModelHandler {
	return &ModelHandler{
		usage:       usage,
		leaderboard: leaderboard,
	}
}

// SubmitRating 提交模型评分
// @Summary 提交模型评分
// @Tags Models
// @Accept json
// @Produce json
// @Param model path string true "模型名"
// @Param body body dto.RatingRequest true "评分，每项 0-1"
// @Success 200 {object} dto.Response[any]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/models/{model}/ratings [post]
func (h *ModelHandler) SubmitRating(c *gin.Context) {
	model := strings.TrimSpace(c.Param("model"))
	if model == "" {
		dto.BadRequest(c, "model is required")
		return
	}

	var req dto.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.usage.SubmitRating(c.Request.Context(), model, req.ToEntity()); err != nil {
		respondError(c, "submit rating", err)
		return
	}
	dto.Success[any](c, nil)
}

// Leaderboard 模型排行榜
// @Summary 模型排行榜
// @Tags Models
// @Produce json
// @Success 200 {object} dto.Response[dto.LeaderboardResponse]
// @Router /v1/leaderboard [get]
func (h *ModelHandler) Leaderboard(c *gin.Context) {
	entries, err := h.leaderboard.Fetch(c.Request.Context())
	if err != nil {
		respondError(c, "fetch leaderboard", err)
		return
	}
	dto.Success(c, dto.LeaderboardResponse{Entries: entries})
}
