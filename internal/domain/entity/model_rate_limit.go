package entity

import "time"

const (
	// MinuteWindow rpm/tpm 计数窗口
	MinuteWindow = time.Minute
	// DayWindow rpd 计数窗口
	DayWindow = 24 * time.Hour
)

// ModelRateLimit 模型限额与评分累计记录，每个模型一行
type ModelRateLimit struct {
	Model string `json:"model" gorm:"type:varchar(128);primaryKey"`

	RPM int `json:"rpm" gorm:"not null;default:0"`
	TPM int `json:"tpm" gorm:"not null;default:0"`
	RPD int `json:"rpd" gorm:"not null;default:0"`

	RPMLimit int `json:"rpm_limit" gorm:"not null;default:0"`
	TPMLimit int `json:"tpm_limit" gorm:"not null;default:0"`
	RPDLimit int `json:"rpd_limit" gorm:"not null;default:0"`

	MinuteWindowStart time.Time `json:"minute_window_start"`
	DayWindowStart    time.Time `json:"day_window_start"`

	ContentAccuracy  float64 `json:"content_accuracy" gorm:"not null;default:0"`
	Formatting       float64 `json:"formatting" gorm:"not null;default:0"`
	OverallQuality   float64 `json:"overall_quality" gorm:"not null;default:0"`
	RatingCount      int64   `json:"rating_count" gorm:"not null;default:0"`
	TotalGenerations int64   `json:"total_generations" gorm:"not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (ModelRateLimit) TableName() string {
	return "model_rate_limits"
}

// ResetExpiredWindows 窗口过期时将对应计数清零，返回是否发生了重置
func (m *ModelRateLimit) ResetExpiredWindows(now time.Time) bool {
	reset := false
	if m.MinuteWindowStart.IsZero() || now.Sub(m.MinuteWindowStart) > MinuteWindow {
		m.RPM = 0
		m.TPM = 0
		m.MinuteWindowStart = now
		reset = true
	}
	if m.DayWindowStart.IsZero() || now.Sub(m.DayWindowStart) > DayWindow {
		m.RPD = 0
		m.DayWindowStart = now
		reset = true
	}
	return reset
}

// Exhausted 任一计数达到上限即视为不可用；未配置的上限（<=0）不参与判断
func (m *ModelRateLimit) Exhausted() bool {
	return reached(m.RPM, m.RPMLimit) || reached(m.TPM, m.TPMLimit) || reached(m.RPD, m.RPDLimit)
}

func reached(current, limit int) bool {
	return limit > 0 && current >= limit
}

// RecordGeneration 记录一次生成：rpm 与 rpd 各加一，tpm 累加 token 数
func (m *ModelRateLimit) RecordGeneration(tokens int) {
	m.RPM++
	m.RPD++
	if tokens > 0 {
		m.TPM += tokens
	}
	m.TotalGenerations++
}

// AddRating 累计一次评分
func (m *ModelRateLimit) AddRating(r Rating) {
	m.ContentAccuracy += r.ContentAccuracy
	m.Formatting += r.Formatting
	m.OverallQuality += r.OverallQuality
	m.RatingCount++
}

// AverageRating 三项评分折算到 0-5 分
func (m *ModelRateLimit) AverageRating() float64 {
	if m.RatingCount <= 0 {
		return 0
	}
	total := m.ContentAccuracy + m.Formatting + m.OverallQuality
	return total / (float64(m.RatingCount) * 3) * 5
}
