package entity

import "time"

// User 用户用量记录
type User struct {
	ID                 string     `json:"id" gorm:"type:varchar(128);primaryKey"`
	Role               Role       `json:"role" gorm:"type:varchar(32);not null;default:free"`
	LastGenerationDate *time.Time `json:"last_generation_date,omitempty"`
	Credits            int        `json:"credits" gorm:"not null;default:0;check:credits >= 0"`
	GenerationCount    int        `json:"generation_count" gorm:"not null;default:0"`
	CreatedAt          time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// NewUser 创建注册用户，初始为免费角色
func NewUser(id string) *User {
	now := time.Now()
	return &User{
		ID:        id,
		Role:      RoleFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin 检查用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// MarkGenerated 记录一次生成时间，时间只前进不后退
func (u *User) MarkGenerated(at time.Time) {
	if u.LastGenerationDate != nil && at.Before(*u.LastGenerationDate) {
		return
	}
	t := at
	u.LastGenerationDate = &t
}
