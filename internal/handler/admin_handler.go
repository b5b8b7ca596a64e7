package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/localserve/service-booking/internal/application"
	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
	"github.com/localserve/service-booking/internal/platform/auth"
	"github.com/localserve/service-booking/internal/platform/middleware"
	"github.com/localserve/service-booking/internal/platform/response"
)

// AdminHandler exposes the administrative booking surface.
type AdminHandler struct {
	service *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *application.BookingService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes registers the admin routes on the given group.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/disputes", h.ListDisputes)
		admin.POST("/bookings/:id/dispute/review", h.ReviewDispute)
		admin.POST("/bookings/:id/dispute/resolve", h.ResolveDispute)
		admin.GET("/stats/bookings", h.BookingStats)
	}
}

type resolveDisputeRequest struct {
	Resolution  string `json:"resolution" binding:"required"`
	FinalStatus string `json:"final_status" binding:"required"`
}

// ListBookings handles GET /admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
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

// ListDisputes handles GET /admin/disputes.
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page, limit := paginationParams(c)

	result, err := h.service.ListDisputedBookings(c.Request.Context(), actor, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ReviewDispute handles POST /admin/bookings/:id/dispute/review.
func (h *AdminHandler) ReviewDispute(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	dto, err := h.service.ReviewDispute(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// ResolveDispute handles POST /admin/bookings/:id/dispute/resolve.
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	finalStatus, err := bookingDomain.ParseBookingStatus(req.FinalStatus)
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.service.ResolveDispute(c.Request.Context(), actor, id, req.Resolution, finalStatus)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// BookingStats handles GET /admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
