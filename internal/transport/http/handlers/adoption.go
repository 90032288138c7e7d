package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/transport/http/middleware"
	"github.com/tailhaven/adoption-service/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// AdoptionHandler exposes the adoption request lifecycle endpoints.
type AdoptionHandler struct {
	adoptions  *usecase.AdoptionService
	authorizer *usecase.Authorizer
}

// NewAdoptionHandler builds an AdoptionHandler.
func NewAdoptionHandler(adoptions *usecase.AdoptionService, authorizer *usecase.Authorizer) *AdoptionHandler {
	return &AdoptionHandler{adoptions: adoptions, authorizer: authorizer}
}

// RegisterRoutes binds adoption endpoints. The group must already run the
// authentication middleware.
func (h *AdoptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/follow-ups/due", h.ListDueFollowUps)
	r.GET("/:id", h.Get)
	r.PATCH("/:id/status", h.Transition)
	r.POST("/:id/notes", h.AddNote)
}

// Create submits a new adoption application for the authenticated identity.
func (h *AdoptionHandler) Create(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.authorizer.Authorize(*identity, usecase.OperationCreate, nil); err != nil {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "insufficient permissions"))
		return
	}

	var req CreateAdoptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid adoption request payload"))
		return
	}

	input := usecase.CreateRequestInput{
		PetID:           req.PetID,
		Phone:           req.Phone,
		Address:         req.Address,
		City:            req.City,
		HousingType:     req.HousingType,
		HasYard:         req.HasYard,
		ExperienceLevel: req.ExperienceLevel,
		OtherPets:       req.OtherPets,
	}

	request, err := h.adoptions.CreateRequest(c.Request.Context(), *identity, input)
	if err != nil {
		var rateErr *usecase.RateLimitedError
		if errors.As(err, &rateErr) {
			c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many applications, slow down"))
			return
		}

		var validationErr *usecase.ValidationError
		if errors.As(err, &validationErr) {
			respondValidationError(c, validationErr)
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPetNotFound, Status: http.StatusNotFound, Message: "pet not found"},
			{Err: usecase.ErrPetUnavailable, Status: http.StatusConflict, Message: "pet is not available for adoption"},
			{Err: usecase.ErrDuplicateApplication, Status: http.StatusConflict, Message: "you already have an open application for this pet"},
		}, http.StatusInternalServerError, "failed to submit application")
		return
	}

	c.JSON(http.StatusCreated, newAdoptionRequestView(request))
}

// Get returns one request, subject to ownership rules.
func (h *AdoptionHandler) Get(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	request, err := h.adoptions.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRequestNotFound, Status: http.StatusNotFound, Message: "adoption request not found"},
		}, http.StatusInternalServerError, "failed to load request")
		return
	}

	if err := h.authorizer.Authorize(*identity, usecase.OperationViewOwn, request); err != nil {
		// Not-found rather than forbidden, so request ids cannot be probed.
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "adoption request not found"))
		return
	}

	c.JSON(http.StatusOK, newAdoptionRequestView(request))
}

// List returns a page of requests. Identities without view_all are scoped to
// their own applications regardless of the filter they send.
func (h *AdoptionHandler) List(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	filter := port.RequestFilter{
		ApplicantID: c.Query("applicant_id"),
		PetID:       c.Query("pet_id"),
		Status:      domain.RequestStatus(c.Query("status")),
		Limit:       parseIntQuery(c, "limit", defaultListLimit),
		Offset:      parseIntQuery(c, "offset", 0),
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown status filter"))
		return
	}

	if err := h.authorizer.Authorize(*identity, usecase.OperationViewAll, nil); err != nil {
		filter.ApplicantID = identity.ID
	}

	requests, total, err := h.adoptions.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list requests"))
		return
	}

	views := make([]AdoptionRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, newAdoptionRequestView(&requests[i]))
	}

	c.JSON(http.StatusOK, ListAdoptionResponse{
		Requests: views,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// Transition moves a request to a new status.
func (h *AdoptionHandler) Transition(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.authorizer.Authorize(*identity, usecase.OperationTransition, nil); err != nil {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "insufficient permissions"))
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid transition payload"))
		return
	}

	request, err := h.adoptions.Transition(c.Request.Context(), *identity, c.Param("id"),
		domain.RequestStatus(req.Status), req.Notes, req.RejectionReason)
	if err != nil {
		var rateErr *usecase.RateLimitedError
		if errors.As(err, &rateErr) {
			c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many status updates, slow down"))
			return
		}

		var transitionErr *usecase.InvalidTransitionError
		if errors.As(err, &transitionErr) {
			c.JSON(http.StatusConflict, NewErrorResponse(c, transitionErr.Error()))
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRequestNotFound, Status: http.StatusNotFound, Message: "adoption request not found"},
			{Err: usecase.ErrMissingRejectionReason, Status: http.StatusBadRequest, Message: "a rejection reason of at least 10 characters is required"},
			{Err: usecase.ErrDuplicateApplication, Status: http.StatusConflict, Message: "another live application exists for this pet"},
		}, http.StatusInternalServerError, "failed to update request")
		return
	}

	c.JSON(http.StatusOK, newAdoptionRequestView(request))
}

// AddNote appends a communication entry to the request's log.
func (h *AdoptionHandler) AddNote(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid note payload"))
		return
	}

	target, err := h.adoptions.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRequestNotFound, Status: http.StatusNotFound, Message: "adoption request not found"},
		}, http.StatusInternalServerError, "failed to load request")
		return
	}

	if err := h.authorizer.Authorize(*identity, usecase.OperationAddCommunication, target); err != nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "adoption request not found"))
		return
	}

	request, err := h.adoptions.AddCommunication(c.Request.Context(), *identity, c.Param("id"), req.Message)
	if err != nil {
		var validationErr *usecase.ValidationError
		if errors.As(err, &validationErr) {
			respondValidationError(c, validationErr)
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRequestNotFound, Status: http.StatusNotFound, Message: "adoption request not found"},
		}, http.StatusInternalServerError, "failed to add note")
		return
	}

	c.JSON(http.StatusOK, newAdoptionRequestView(request))
}

// ListDueFollowUps returns requests whose follow-up date has passed. Staff only.
func (h *AdoptionHandler) ListDueFollowUps(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if !identity.Role.AtLeast(domain.RoleStaff) {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "insufficient permissions"))
		return
	}

	limit := parseIntQuery(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	requests, err := h.adoptions.ListDueFollowUps(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list due follow-ups"))
		return
	}

	views := make([]AdoptionRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, newAdoptionRequestView(&requests[i]))
	}

	c.JSON(http.StatusOK, ListAdoptionResponse{
		Requests: views,
		Total:    len(views),
		Limit:    limit,
	})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
