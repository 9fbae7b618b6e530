// README: apperr to JSON error envelope for gin handlers and middleware.
package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// WriteError aborts the request with err mapped to its HTTP status. Uncoded errors become
// internal errors and keep their text out of the response.
func WriteError(c *gin.Context, log *logger.Logger, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case apperr.CodeInternal, apperr.CodeStorage:
	default:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	if log != nil && meta.HTTPStatus >= 500 {
		ctx := log.WithField(c.Request.Context(), "error_code", string(typed.Code()))
		log.Error(ctx, "request.failed", err)
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, errorEnvelope{Error: apiError{
		Code:    string(typed.Code()),
		Message: msg,
		Details: typed.Details(),
	}})
}
