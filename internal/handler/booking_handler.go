package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/localserve/service-booking/internal/application"
	"github.com/localserve/service-booking/internal/domain"
	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
	"github.com/localserve/service-booking/internal/platform/auth"
	"github.com/localserve/service-booking/internal/platform/middleware"
	"github.com/localserve/service-booking/internal/platform/response"
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers the booking routes on the given group.
func (h *BookingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("", middleware.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.Create)
		bookings.GET("", h.List)
		bookings.GET("/:id", h.Get)
		bookings.PATCH("/:id", middleware.RequireRole(auth.RoleCustomer, auth.RoleVendor, auth.RoleAdmin), h.Edit)
		bookings.POST("/:id/status", h.ChangeStatus)
		bookings.POST("/:id/dispute", middleware.RequireRole(auth.RoleCustomer, auth.RoleVendor), h.RaiseDispute)
		bookings.POST("/:id/review", middleware.RequireRole(auth.RoleCustomer), h.SubmitReview)
		bookings.GET("/:id/otp", middleware.RequireRole(auth.RoleCustomer), h.FetchOtp)
	}
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Code   string `json:"code"`
}

type raiseDisputeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

type submitReviewRequest struct {
	Score  int    `json:"score" binding:"required"`
	Review string `json:"review"`
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// List handles GET /bookings.
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page, limit := paginationParams(c)

	result, err := h.service.ListBookings(c.Request.Context(), actor, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// Get handles GET /bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	dto, err := h.service.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// Edit handles PATCH /bookings/:id.
func (h *BookingHandler) Edit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req application.EditBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.EditBooking(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// ChangeStatus handles POST /bookings/:id/status.
func (h *BookingHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	target, err := bookingDomain.ParseBookingStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.service.ChangeStatus(c.Request.Context(), actor, id, target, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// RaiseDispute handles POST /bookings/:id/dispute.
func (h *BookingHandler) RaiseDispute(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req raiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.RaiseDispute(c.Request.Context(), actor, id, req.Reason, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// SubmitReview handles POST /bookings/:id/review.
func (h *BookingHandler) SubmitReview(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.SubmitReview(c.Request.Context(), actor, id, req.Score, req.Review)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// FetchOtp handles GET /bookings/:id/otp.
func (h *BookingHandler) FetchOtp(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	code, err := h.service.FetchOtp(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"code": code})
}

// --- Shared helpers ---

func actorFrom(c *gin.Context) (bookingDomain.Actor, bool) {
	userID, okID := middleware.GetUserID(c)
	role, okRole := middleware.GetUserRole(c)
	if !okID || !okRole {
		response.Error(c, domain.NewUnauthorizedError("unauthorized"))
		return bookingDomain.Actor{}, false
	}
	return bookingDomain.Actor{ID: userID, Role: bookingDomain.Role(role)}, true
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return uuid.Nil, false
	}
	return id, true
}

func paginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
