package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
)

// Recovery turns a handler panic into a 500 error envelope.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				if log != nil {
					ctx := log.WithField(c.Request.Context(), "panic", fmt.Sprint(rec))
					log.Error(ctx, "panic.recovered", err)
				}
				WriteError(c, nil, apperr.Wrap(apperr.CodeInternal, err, "panic"))
			}
		}()
		c.Next()
	}
}
