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

// ModelRateLimitRepository 模型限额记录仓储实现
type ModelRateLimitRepository struct {
	client *Client
}

var _ repository.ModelRateLimitRepository = (*ModelRateLimitRepository)(nil)

func NewModelRateLimitRepository(client *Client) *ModelRateLimitRepository {
	return &ModelRateLimitRepository{client: client}
}

func (r *ModelRateLimitRepository) GetByModel(ctx context.Context, model string) (*entity.ModelRateLimit, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelRateLimitRepository.GetByModel")
	defer span.End()

	return r.first(getDB(ctx, r.client.db), model)
}

// GetForUpdate 锁定模型记录；所有用户的生成都会竞争这一行
func (r *ModelRateLimitRepository) GetForUpdate(ctx context.Context, model string) (*entity.ModelRateLimit, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelRateLimitRepository.GetForUpdate")
	defer span.End()

	return r.first(getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"}), model)
}

func (r *ModelRateLimitRepository) first(db *gorm.DB, model string) (*entity.ModelRateLimit, error) {
	var rec entity.ModelRateLimit
	if err := db.First(&rec, "model = ?", model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapErr("get model rate limit", err)
	}
	return &rec, nil
}

func (r *ModelRateLimitRepository) ListByModels(ctx context.Context, models []string) ([]*entity.ModelRateLimit, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelRateLimitRepository.ListByModels")
	defer span.End()

	if len(models) == 0 {
		return []*entity.ModelRateLimit{}, nil
	}
	var list []*entity.ModelRateLimit
	if err := getDB(ctx, r.client.db).Where("model IN ?", models).Find(&list).Error; err != nil {
		span.RecordError(err)
		return nil, wrapErr("list model rate limits", err)
	}
	return list, nil
}

// Save 写回计数、窗口与评分累计，静态上限不在此更新
func (r *ModelRateLimitRepository) Save(ctx context.Context, rec *entity.ModelRateLimit) error {
	ctx, span := tracer.Start(ctx, "postgres.ModelRateLimitRepository.Save")
	defer span.End()

	err := getDB(ctx, r.client.db).Model(&entity.ModelRateLimit{}).
		Where("model = ?", rec.Model).
		Updates(map[string]any{
			"rpm":                 rec.RPM,
			"tpm":                 rec.TPM,
			"rpd":                 rec.RPD,
			"minute_window_start": rec.MinuteWindowStart,
			"day_window_start":    rec.DayWindowStart,
			"content_accuracy":    rec.ContentAccuracy,
			"formatting":          rec.Formatting,
			"overall_quality":     rec.OverallQuality,
			"rating_count":        rec.RatingCount,
			"total_generations":   rec.TotalGenerations,
			"updated_at":          time.Now(),
		}).Error
	if err != nil {
		span.RecordError(err)
		return wrapErr("save model rate limit", err)
	}
	return nil
}

// Provision 确保模型记录存在，并把上限同步为配置值
func (r *ModelRateLimitRepository) Provision(ctx context.Context, model string, rpmLimit, tpmLimit, rpdLimit int) error {
	ctx, span := tracer.Start(ctx, "postgres.ModelRateLimitRepository.Provision")
	defer span.End()

	rec := &entity.ModelRateLimit{
		Model:     model,
		RPMLimit:  rpmLimit,
		TPMLimit:  tpmLimit,
		RPDLimit:  rpdLimit,
		UpdatedAt: time.Now(),
	}
	err := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model"}},
		DoUpdates: clause.AssignmentColumns([]string{"rpm_limit", "tpm_limit", "rpd_limit", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		span.RecordError(err)
		return wrapErr("provision model rate limit", err)
	}
	return nil
}
