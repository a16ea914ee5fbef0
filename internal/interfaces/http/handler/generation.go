package handler

import (
	"github.com/gin-gonic/gin"

	"content-forge-api/internal/interfaces/http/dto"
	"content-forge-api/internal/interfaces/http/middleware"
)

// GenerationHandler 内容生成处理器
type GenerationHandler struct {
	generator Generator
}

// NewGenerationHandler 创建内容生成处理器
func NewGenerationHandler(generator Generator) *GenerationHandler {
	return &GenerationHandler{generator: generator}
}

// Generate 生成内容
// @Summary 生成内容
// @Description 根据内容类型、模板与表单生成 HTML 片段；携带令牌时计入用量
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), req.ToEntity(middleware.UserID(c)))
	if err != nil {
		respondError(c, "generate content", err)
		return
	}

	if result.UsageWarning != "" {
		c.Header(middleware.UsageWarningHeader, result.UsageWarning)
	}
	dto.Success(c, dto.GenerateResponse{
		HTML:         result.HTML,
		UsageWarning: result.UsageWarning,
	})
}
