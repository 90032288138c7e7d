package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth runs the full authentication guard on the Authorization header
// and stores the resolved identity in the request context. A missing account
// is reported the same way as a bad signature so token probing cannot confirm
// account existence.
func RequireAuth(authService *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authService.Authenticate(c.Request.Context(), c.GetHeader("Authorization"), c.ClientIP())
		if err != nil {
			abortAuthError(c, err)
			return
		}

		c.Set(IdentityKey, identity)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.IdentityID = identity.ID
		}

		c.Next()
	}
}

func abortAuthError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitedError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			newErrorResponse(c, "too many attempts, slow down"))
		return
	}

	var accountErr *usecase.AccountInvalidError
	if errors.As(err, &accountErr) {
		switch accountErr.Reason {
		case usecase.AccountNotFound:
			// Indistinguishable from any other bad token.
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid access token"))
		case usecase.AccountLocked:
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "account temporarily locked"))
		case usecase.AccountEmailNotVerified:
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "email verification required"))
		default:
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "account is not permitted to access this resource"))
		}
		return
	}

	switch {
	case errors.Is(err, security.ErrCredentialMissing):
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			newErrorResponse(c, "missing authorization header"))
	case errors.Is(err, security.ErrTokenExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			newErrorResponse(c, "access token expired"))
	case errors.Is(err, security.ErrCredentialMalformed),
		errors.Is(err, security.ErrSignatureInvalid),
		errors.Is(err, security.ErrTokenNotYetValid),
		errors.Is(err, usecase.ErrStaleToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			newErrorResponse(c, "invalid access token"))
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			newErrorResponse(c, "authentication failed"))
	}
}

// RequireRole gates a route on the authenticated identity carrying at least
// the supplied role.
func RequireRole(minimum domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !identity.Role.AtLeast(minimum) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}
