package middleware

import (
	"go.uber.org/zap"

	"storefront-chat/internal/transport/httpdto"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders errors attached with c.Error when no handler wrote a
// response.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Ctx(c.Request.Context()).Error("request error", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(chat_errors.HTTPStatus(err), httpdto.ErrorResponseFrom(err))
	}
}
