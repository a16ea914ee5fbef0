package dto

import (
	"content-forge-api/internal/domain/entity"
)

// GenerateRequest 内容生成请求
type GenerateRequest struct {
	ContentType string         `json:"content_type" binding:"required"`
	Template    string         `json:"template"`
	Model       string         `json:"model"`
	FormData    map[string]any `json:"form_data"`
}

// ToEntity 转换为领域请求
func (r *GenerateRequest) ToEntity(userID string) entity.GenerationRequest {
	return entity.GenerationRequest{
		ContentType: r.ContentType,
		Template:    r.Template,
		Model:       r.Model,
		FormData:    r.FormData,
		UserID:      userID,
	}
}

// GenerateResponse 内容生成响应
type GenerateResponse struct {
	HTML         string `json:"html"`
	UsageWarning string `json:"usage_warning,omitempty"`
}

// RatingRequest 模型评分请求，三项均为 0-1
type RatingRequest struct {
	ContentAccuracy *float64 `json:"content_accuracy" binding:"required"`
	Formatting      *float64 `json:"formatting" binding:"required"`
	OverallQuality  *float64 `json:"overall_quality" binding:"required"`
}

// ToEntity 转换为领域评分
func (r *RatingRequest) ToEntity() entity.Rating {
	return entity.Rating{
		ContentAccuracy: *r.ContentAccuracy,
		Formatting:      *r.Formatting,
		OverallQuality:  *r.OverallQuality,
	}
}

// LeaderboardResponse 排行榜
type LeaderboardResponse struct {
	Entries []entity.LeaderboardEntry `json:"entries"`
}
