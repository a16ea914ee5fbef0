package repository

import (
	"context"

	"content-forge-api/internal/domain/entity"
)

// UserRepository 用户仓储接口
// 查询方法在记录不存在时返回 (nil, nil)
type UserRepository interface {
	// GetByID 根据 ID 获取用户
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// GetForUpdate 在事务内读取并锁定用户记录
	GetForUpdate(ctx context.Context, id string) (*entity.User, error)

	// Create 创建用户，已存在时不覆盖
	Create(ctx context.Context, user *entity.User) error

	// Save 写回用户用量字段
	Save(ctx context.Context, user *entity.User) error
}
