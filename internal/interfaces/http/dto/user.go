package dto

import (
	"time"

	"content-forge-api/internal/domain/entity"
)

// UserUsageResponse 用户用量
type UserUsageResponse struct {
	ID                 string      `json:"id"`
	Role               entity.Role `json:"role"`
	Credits            int         `json:"credits"`
	GenerationCount    int         `json:"generation_count"`
	LastGenerationDate *time.Time  `json:"last_generation_date,omitempty"`
}

// ToUserUsageResponse 转换用户用量
func ToUserUsageResponse(u *entity.User) *UserUsageResponse {
	if u == nil {
		return nil
	}
	return &UserUsageResponse{
		ID:                 u.ID,
		Role:               u.Role,
		Credits:            u.Credits,
		GenerationCount:    u.GenerationCount,
		LastGenerationDate: u.LastGenerationDate,
	}
}

// CanGenerateResponse 生成资格
type CanGenerateResponse struct {
	Allowed bool               `json:"allowed"`
	Role    entity.Role        `json:"role"`
	Reason  string             `json:"reason,omitempty"`
	User    *UserUsageResponse `json:"user,omitempty"`
}

// GrantCreditsRequest 管理员充值请求
type GrantCreditsRequest struct {
	Credits int `json:"credits" binding:"required,gt=0"`
}
