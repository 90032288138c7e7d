package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/usecase"
)

// RegistrationHandler exposes endpoints for account registration and email
// verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	isDev        bool
}

func NewRegistrationHandler(registration *usecase.RegistrationService, isDev bool) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, isDev: isDev}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/verify", h.Verify)
}

// Register creates a new pending-verification account.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	input := usecase.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
	}

	identity, verificationToken, err := h.registration.Register(c.Request.Context(), input, c.ClientIP())
	if err != nil {
		var rateErr *usecase.RateLimitedError
		if errors.As(err, &rateErr) {
			c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many registration attempts"))
			return
		}

		var validationErr *usecase.ValidationError
		if errors.As(err, &validationErr) {
			respondValidationError(c, validationErr)
			return
		}

		var passwordErr *security.PasswordValidationError
		if errors.As(err, &passwordErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, passwordErr.Error()))
			return
		}

		if errors.Is(err, usecase.ErrEmailTaken) {
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already registered"))
			return
		}

		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to register account"))
		return
	}

	resp := RegisterResponse{
		Identity:             newIdentitySummary(identity),
		RequiresVerification: identity.Status == domain.IdentityStatusPendingVerification,
	}

	if resp.RequiresVerification {
		resp.Message = "verification required"
		if h.isDev && verificationToken != "" {
			resp.DevToken = &verificationToken
		}
	}

	c.JSON(http.StatusCreated, resp)
}

// Verify consumes a verification token and activates the account.
func (h *RegistrationHandler) Verify(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	if err := h.registration.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVerificationInvalid, Status: http.StatusBadRequest, Message: "verification token is invalid or expired"},
		}, http.StatusInternalServerError, "failed to verify email")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email verified"})
}

func respondValidationError(c *gin.Context, err *usecase.ValidationError) {
	fields := make([]FieldIssue, 0, len(err.Fields))
	for _, f := range err.Fields {
		fields = append(fields, FieldIssue{Field: f.Field, Message: f.Message})
	}

	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Error:   "validation failed",
		Fields:  fields,
		TraceID: traceIDStr,
	})
}
