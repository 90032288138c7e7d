package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/transport/http/middleware"
	"github.com/tailhaven/adoption-service/internal/usecase"
)

// IdentityHandler exposes administrative identity endpoints and self-service
// password changes.
type IdentityHandler struct {
	identities *usecase.IdentityService
}

// NewIdentityHandler builds an IdentityHandler.
func NewIdentityHandler(identities *usecase.IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// RegisterRoutes binds identity endpoints. The group must already run the
// authentication middleware; role checks happen per endpoint.
func (h *IdentityHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
	r.POST("/me/password", h.ChangePassword)
	r.GET("/:id", middleware.RequireRole(domain.RoleStaff), h.Get)
	r.PATCH("/:id/role", middleware.RequireRole(domain.RoleAdmin), h.UpdateRole)
	r.PATCH("/:id/status", middleware.RequireRole(domain.RoleAdmin), h.UpdateStatus)
	r.POST("/:id/unlock", middleware.RequireRole(domain.RoleAdmin), h.Unlock)
}

// Me returns the authenticated identity.
func (h *IdentityHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, newIdentitySummary(identity))
}

// Get returns one identity by id.
func (h *IdentityHandler) Get(c *gin.Context) {
	identity, err := h.identities.GetIdentity(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to load identity")
		return
	}

	c.JSON(http.StatusOK, newIdentitySummary(identity))
}

// UpdateRole grants a new role subject to the grant ordering.
func (h *IdentityHandler) UpdateRole(c *gin.Context) {
	actor, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role := domain.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown role"))
		return
	}

	if err := h.identities.GrantRole(c.Request.Context(), *actor, c.Param("id"), role); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "you may not grant this role"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role updated"})
}

// UpdateStatus moves an account between statuses.
func (h *IdentityHandler) UpdateStatus(c *gin.Context) {
	actor, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid status payload"))
		return
	}

	status := domain.IdentityStatus(req.Status)
	switch status {
	case domain.IdentityStatusActive, domain.IdentityStatusInactive,
		domain.IdentityStatusSuspended, domain.IdentityStatusBanned:
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown status"))
		return
	}

	if err := h.identities.UpdateStatus(c.Request.Context(), *actor, c.Param("id"), status); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "you may not change this account"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to update status")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "status updated"})
}

// Unlock clears a lockout ahead of its natural expiry.
func (h *IdentityHandler) Unlock(c *gin.Context) {
	actor, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.identities.Unlock(c.Request.Context(), *actor, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "you may not unlock this account"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to unlock account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account unlocked"})
}

// ChangePassword verifies the current password and stores a new one. Tokens
// issued before the change stop validating on their next use.
func (h *IdentityHandler) ChangePassword(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password payload"))
		return
	}

	err := h.identities.ChangePassword(c.Request.Context(), identity.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var passwordErr *security.PasswordValidationError
		if errors.As(err, &passwordErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, passwordErr.Error()))
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
