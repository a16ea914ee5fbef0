package quota

import (
	"fmt"
	"time"

	"content-forge-api/internal/domain/entity"
	apperrors "content-forge-api/pkg/errors"
)

// 免费用户日限策略名称
const (
	DailyCalendarDay = "calendar_day"
	DailyRolling24h  = "rolling_24h"
	DailyCount       = "daily_count"
)

// DailyPolicy 免费用户日限策略
type DailyPolicy interface {
	// Allows 判断当前是否还能生成
	Allows(u *entity.User, now time.Time) bool
	// Record 记录一次已接受的生成
	Record(u *entity.User, now time.Time)
}

// NewDailyPolicy 按名称构造日限策略
func NewDailyPolicy(name string, dailyCap int, loc *time.Location) (DailyPolicy, error) {
	if loc == nil {
		loc = time.Local
	}
	switch name {
	case "", DailyCalendarDay:
		return calendarDay{loc: loc}, nil
	case DailyRolling24h:
		return rolling24h{}, nil
	case DailyCount:
		if dailyCap <= 0 {
			return nil, fmt.Errorf("daily cap must be positive, got %d", dailyCap)
		}
		return dailyCount{cap: dailyCap}, nil
	default:
		return nil, fmt.Errorf("unknown daily policy %q", name)
	}
}

// calendarDay 按本地日历日比较：上次生成日期早于今天才允许
type calendarDay struct {
	loc *time.Location
}

func (p calendarDay) Allows(u *entity.User, now time.Time) bool {
	if u.LastGenerationDate == nil {
		return true
	}
	ly, lm, ld := u.LastGenerationDate.In(p.loc).Date()
	ny, nm, nd := now.In(p.loc).Date()
	last := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return last.Before(today)
}

func (p calendarDay) Record(u *entity.User, now time.Time) {
	u.MarkGenerated(now)
}

// rolling24h 距上次生成满 24 小时才允许
type rolling24h struct{}

func (rolling24h) Allows(u *entity.User, now time.Time) bool {
	if u.LastGenerationDate == nil {
		return true
	}
	return now.Sub(*u.LastGenerationDate) >= 24*time.Hour
}

func (rolling24h) Record(u *entity.User, now time.Time) {
	u.MarkGenerated(now)
}

// dailyCount 以上次生成时间为锚点，24 小时内最多 cap 次
type dailyCount struct {
	cap int
}

func (p dailyCount) windowExpired(u *entity.User, now time.Time) bool {
	return u.LastGenerationDate == nil || now.Sub(*u.LastGenerationDate) >= 24*time.Hour
}

func (p dailyCount) Allows(u *entity.User, now time.Time) bool {
	if p.windowExpired(u, now) {
		return true
	}
	return u.GenerationCount < p.cap
}

func (p dailyCount) Record(u *entity.User, now time.Time) {
	if p.windowExpired(u, now) {
		u.GenerationCount = 0
	}
	u.GenerationCount++
	u.MarkGenerated(now)
}

// RolePolicy 角色策略
type RolePolicy interface {
	// Allows 事务外的资格判断
	Allows(u *entity.User, now time.Time) bool
	// Apply 事务内重新校验前置条件并施加唯一一次角色变更，返回是否需要写回
	Apply(u *entity.User, now time.Time) (bool, error)
	// BypassRateLimit 是否跳过模型限流检查
	BypassRateLimit() bool
}

type adminPolicy struct{}

func (adminPolicy) Allows(*entity.User, time.Time) bool         { return true }
func (adminPolicy) Apply(*entity.User, time.Time) (bool, error) { return false, nil }
func (adminPolicy) BypassRateLimit() bool                       { return true }

type freePolicy struct {
	daily DailyPolicy
}

func (p freePolicy) Allows(u *entity.User, now time.Time) bool { return p.daily.Allows(u, now) }
func (freePolicy) BypassRateLimit() bool                       { return false }

func (p freePolicy) Apply(u *entity.User, now time.Time) (bool, error) {
	p.daily.Record(u, now)
	return true, nil
}

type paidPolicy struct{}

func (paidPolicy) Allows(u *entity.User, _ time.Time) bool { return u.Credits > 0 }
func (paidPolicy) BypassRateLimit() bool                   { return false }

func (paidPolicy) Apply(u *entity.User, _ time.Time) (bool, error) {
	if u.Credits <= 0 {
		return false, apperrors.ErrInsufficientCredits
	}
	u.Credits--
	return true, nil
}

// guestPolicy 持久化为 guest 的记录不具备生成资格；匿名调用方不会走到账本
type guestPolicy struct{}

func (guestPolicy) Allows(*entity.User, time.Time) bool { return false }
func (guestPolicy) BypassRateLimit() bool               { return false }

func (guestPolicy) Apply(*entity.User, time.Time) (bool, error) {
	return false, apperrors.ErrGenerationDenied.WithDetail("guest accounts cannot generate")
}

// PolicyFor 按角色查找策略，未知角色返回 UnknownRole
func PolicyFor(role entity.Role, daily DailyPolicy) (RolePolicy, error) {
	switch role {
	case entity.RoleAdmin:
		return adminPolicy{}, nil
	case entity.RoleFree:
		return freePolicy{daily: daily}, nil
	case entity.RolePaid:
		return paidPolicy{}, nil
	case entity.RoleGuest:
		return guestPolicy{}, nil
	default:
		return nil, apperrors.ErrUnknownRole.WithDetail(string(role))
	}
}
