package http

import (
	"net/http"

	"fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Сервис живёт за api-gateway: identity приходит проверенными заголовками
// X-User-Id / X-User-Role / X-Session-Id, здесь только прокладываем их в контекст.

// Identity кладёт user/role/session из заголовков в request context.
// Не требует аутентификации: анонимные резервации идут по одной сессии.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if v := c.GetHeader("X-User-Id"); v != "" {
			if uid, err := uuid.Parse(v); err == nil {
				ctx = service.WithUserID(ctx, uid)
			}
		}
		if v := c.GetHeader("X-User-Role"); v != "" {
			ctx = service.WithRole(ctx, service.Role(v))
		}
		if v := c.GetHeader("X-Session-Id"); v != "" {
			ctx = service.WithSessionID(ctx, v)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthRequired отклоняет запросы без проверенного user id.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := service.UserIDFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewUnauthorizedError("missing user identity"))
			return
		}
		c.Next()
	}
}

// RoleRequired пропускает только перечисленные роли.
func RoleRequired(roles ...service.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := service.RoleFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, NewForbiddenError("missing role"))
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, NewForbiddenError("insufficient role"))
	}
}
