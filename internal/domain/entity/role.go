// Package entity 定义领域实体
package entity

import "strings"

// Role 用户角色，封闭枚举
type Role string

const (
	RoleAdmin Role = "admin"
	RoleFree  Role = "free"
	RolePaid  Role = "paid"
	RoleGuest Role = "guest"
)

// ParseRole 解析存储中的角色字符串，兼容历史取值 "user" 与 "paid user"
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "free", "user":
		return RoleFree, true
	case "paid", "paid user", "paid_user":
		return RolePaid, true
	case "guest":
		return RoleGuest, true
	default:
		return Role(s), false
	}
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFree, RolePaid, RoleGuest:
		return true
	}
	return false
}

// String 实现 fmt.Stringer
func (r Role) String() string {
	return string(r)
}
