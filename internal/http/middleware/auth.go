// README: Firebase ID-token auth; seeds the gin context with the caller's uid and role.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/infra"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

const (
	ctxUID  = "caller_uid"
	ctxRole = "caller_role"

	// tokenQueryParam carries the token on websocket upgrades, where browsers cannot set headers.
	tokenQueryParam = "access_token"
)

// Auth requires "Authorization: Bearer <id token>".
func Auth(verifier infra.TokenVerifier, log *logger.Logger) gin.HandlerFunc {
	return authenticate(verifier, log, false)
}

// AuthWebsocket also accepts the token as the access_token query parameter.
func AuthWebsocket(verifier infra.TokenVerifier, log *logger.Logger) gin.HandlerFunc {
	return authenticate(verifier, log, true)
}

func authenticate(verifier infra.TokenVerifier, log *logger.Logger, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = strings.TrimSpace(c.Query(tokenQueryParam))
			ok = token != ""
		}
		if !ok {
			WriteError(c, log, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}

		verified, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil || verified == nil || verified.UID == "" {
			WriteError(c, log, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid token"))
			return
		}

		role := roleOf(verified.Role())
		c.Set(ctxUID, verified.UID)
		c.Set(ctxRole, role)

		if log != nil {
			ctx := log.WithFields(c.Request.Context(), map[string]any{
				"user_id": verified.UID,
				"role":    string(role),
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// roleOf maps the custom claim onto a known role; anything else is a plain user.
func roleOf(claim string) types.Role {
	switch r := types.Role(strings.ToLower(claim)); r {
	case types.RoleOperator, types.RoleAgent:
		return r
	default:
		return types.RoleUser
	}
}

// CallerUID returns the authenticated uid, empty when Auth did not run.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) types.Role {
	if v, ok := c.Get(ctxRole); ok {
		if r, ok := v.(types.Role); ok {
			return r
		}
	}
	return ""
}

// Caller returns the authenticated actor.
func Caller(c *gin.Context) types.Actor {
	return types.Actor{ID: types.ID(CallerUID(c)), Role: CallerRole(c)}
}

// RequireRole rejects callers whose role differs from role.
func RequireRole(role types.Role, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			WriteError(c, log, apperr.Newf(apperr.CodeForbidden, "%s role required", role))
			return
		}
		c.Next()
	}
}
