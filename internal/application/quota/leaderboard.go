package quota

import (
	"context"
	"sort"
	"time"

	"content-forge-api/internal/domain/entity"
)

// LeaderboardReader 排行榜读取接口
type LeaderboardReader interface {
	Fetch(ctx context.Context) ([]entity.LeaderboardEntry, error)
}

// RecordLister 排行榜的数据来源，仓储或其缓存装饰都满足
type RecordLister interface {
	ListByModels(ctx context.Context, models []string) ([]*entity.ModelRateLimit, error)
}

// Leaderboard 模型排行榜聚合器，只读；条目每次读取时现算，不落存储
type Leaderboard struct {
	models    RecordLister
	whitelist []string
	retry     RetryPolicy
	now       func() time.Time
}

// NewLeaderboard 创建排行榜聚合器，仅白名单内的模型参与排名
func NewLeaderboard(models RecordLister, whitelist []string, retry RetryPolicy) *Leaderboard {
	wl := make([]string, len(whitelist))
	copy(wl, whitelist)
	return &Leaderboard{
		models:    models,
		whitelist: wl,
		retry:     retry,
		now:       time.Now,
	}
}

// Fetch 计算排行榜，按平均分降序
func (b *Leaderboard) Fetch(ctx context.Context) ([]entity.LeaderboardEntry, error) {
	if len(b.whitelist) == 0 {
		return []entity.LeaderboardEntry{}, nil
	}

	var records []*entity.ModelRateLimit
	err := b.retry.Do(ctx, "fetch_leaderboard", func(ctx context.Context) error {
		var listErr error
		records, listErr = b.models.ListByModels(ctx, b.whitelist)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(b.whitelist))
	for _, m := range b.whitelist {
		allowed[m] = struct{}{}
	}

	now := b.now()
	entries := make([]entity.LeaderboardEntry, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if _, ok := allowed[rec.Model]; !ok {
			continue
		}
		entries = append(entries, buildEntry(*rec, now))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageRating > entries[j].AverageRating
	})
	return entries, nil
}

// buildEntry 在副本上应用窗口重置，展示当前窗口的计数而不写回
func buildEntry(rec entity.ModelRateLimit, now time.Time) entity.LeaderboardEntry {
	rec.ResetExpiredWindows(now)
	return entity.LeaderboardEntry{
		Model:         rec.Model,
		AverageRating: rec.AverageRating(),
		RatingCount:   rec.RatingCount,
		Generations:   rec.TotalGenerations,
		RPM:           rec.RPM,
		TPM:           rec.TPM,
		RPD:           rec.RPD,
		Available:     !rec.Exhausted(),
	}
}
