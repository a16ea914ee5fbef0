package repository

import (
	"context"

	"content-forge-api/internal/domain/entity"
)

// ModelRateLimitRepository 模型限额记录仓储接口
// 查询方法在记录不存在时返回 (nil, nil)
type ModelRateLimitRepository interface {
	// GetByModel 根据模型名获取记录
	GetByModel(ctx context.Context, model string) (*entity.ModelRateLimit, error)

	// GetForUpdate 在事务内读取并锁定模型记录
	GetForUpdate(ctx context.Context, model string) (*entity.ModelRateLimit, error)

	// ListByModels 批量获取记录，不存在的模型不返回
	ListByModels(ctx context.Context, models []string) ([]*entity.ModelRateLimit, error)

	// Save 写回计数与评分累计
	Save(ctx context.Context, record *entity.ModelRateLimit) error

	// Provision 确保记录存在并同步静态上限，不触碰计数
	Provision(ctx context.Context, model string, rpmLimit, tpmLimit, rpdLimit int) error
}
