package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tailhaven/adoption-service/internal/usecase"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth           *usecase.AuthService
	accessTokenTTL int
}

// NewAuthHandler builds an AuthHandler. accessTokenTTLSeconds feeds the
// expires_in field of login responses.
func NewAuthHandler(auth *usecase.AuthService, accessTokenTTLSeconds int) *AuthHandler {
	return &AuthHandler{auth: auth, accessTokenTTL: accessTokenTTLSeconds}
}

// RegisterRoutes binds authentication endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, extra ...gin.HandlerFunc) {
	loginHandlers := append([]gin.HandlerFunc{}, extra...)
	loginHandlers = append(loginHandlers, h.Login)
	r.POST("/login", loginHandlers...)
}

// Login verifies credentials and returns an access token. Invalid email and
// invalid password produce the same response so the endpoint cannot be used
// to enumerate accounts.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	token, identity, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var rateErr *usecase.RateLimitedError
		if errors.As(err, &rateErr) {
			c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many login attempts"))
			return
		}

		var accountErr *usecase.AccountInvalidError
		if errors.As(err, &accountErr) {
			switch accountErr.Reason {
			case usecase.AccountLocked:
				c.JSON(http.StatusForbidden, NewErrorResponse(c, "account temporarily locked"))
			case usecase.AccountEmailNotVerified:
				c.JSON(http.StatusForbidden, NewErrorResponse(c, "email verification required"))
			default:
				c.JSON(http.StatusForbidden, NewErrorResponse(c, "account is not permitted to sign in"))
			}
			return
		}

		if errors.Is(err, usecase.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid email or password"))
			return
		}

		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   h.accessTokenTTL,
		Identity:    newIdentitySummary(identity),
	})
}
