package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"content-forge-api/internal/domain/entity"
	"content-forge-api/internal/domain/repository"
)

// UserRepository 用户仓储实现
type UserRepository struct {
	client *Client
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository 创建用户仓储
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// GetByID 根据 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByID")
	defer span.End()

	return r.first(ctx, getDB(ctx, r.client.db), id)
}

// GetForUpdate 在事务内以 SELECT ... FOR UPDATE 读取用户
func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.first(ctx, db, id)
}

func (r *UserRepository) first(_ context.Context, db *gorm.DB, id string) (*entity.User, error) {
	var user entity.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

// Create 创建用户，主键冲突时保留已有记录
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error; err != nil {
		span.RecordError(err)
		return wrapErr("create user", err)
	}
	return nil
}

// Save 写回角色与用量字段
func (r *UserRepository) Save(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"role":                 user.Role,
			"last_generation_date": user.LastGenerationDate,
			"credits":              user.Credits,
			"generation_count":     user.GenerationCount,
			"updated_at":           time.Now(),
		}).Error
	if err != nil {
		span.RecordError(err)
		return wrapErr("save user", err)
	}
	return nil
}
