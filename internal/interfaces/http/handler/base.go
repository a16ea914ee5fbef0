// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"content-forge-api/internal/application/quota"
	"content-forge-api/internal/domain/entity"
	"content-forge-api/internal/interfaces/http/dto"
	apperrors "content-forge-api/pkg/errors"
	"content-forge-api/pkg/logger"
)

// Generator 内容生成编排
type Generator interface {
	Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error)
}

// UsageService 用量账本
type UsageService interface {
	Evaluate(ctx context.Context, userID string) (quota.Decision, error)
	EnsureUser(ctx context.Context, userID string) (*entity.User, error)
	SubmitRating(ctx context.Context, model string, rating entity.Rating) error
	GrantCredits(ctx context.Context, userID string, n int) (*entity.User, error)
}

// respondError 输出错误；非业务错误按 500 处理并记录
func respondError(c *gin.Context, op string, err error) {
	if !apperrors.IsAppError(err) {
		logger.Error(c.Request.Context(), op+" failed", err)
		dto.InternalError(c, op+" failed")
		return
	}
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), op+" failed", err, "code", string(appErr.Code))
	}
	dto.AppError(c, err)
}
