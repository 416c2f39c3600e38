package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"
	"storefront-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires a valid bearer token. When the auth service has no
// secret every request passes through anonymously.
func AuthMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !service.Enabled() {
			c.Next()
			return
		}

		claims, err := service.ParseAccessToken(extractBearer(c))
		if err != nil || strings.TrimSpace(claims.UserID) == "" {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), claims.UserID, claims.Role)
		ctx = context.WithValue(ctx, logger.UserIdKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
