package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"content-forge-api/internal/domain/entity"
)

// RequireRole 角色检查中间件，角色取自令牌声明
func RequireRole(roles ...entity.Role) gin.HandlerFunc {
	roleSet := make(map[entity.Role]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		roleStr := c.GetString(ctxRole)
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		role, ok := entity.ParseRole(roleStr)
		if !ok || !roleSet[role] {
			abortForbidden(c, "role not allowed")
			return
		}

		c.Next()
	}
}

// RequireAdmin 管理员权限检查
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(entity.RoleAdmin)
}

// abortForbidden 终止请求并返回 403
func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":     http.StatusForbidden,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
