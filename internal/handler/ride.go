package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
	"ridecore/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// RequestRideRequest is the HTTP request body for requesting a ride.
type RequestRideRequest struct {
	Pickup        string  `json:"pickup" binding:"required"`
	Destination   string  `json:"destination" binding:"required"`
	Distance      float64 `json:"distance" binding:"required,gt=0"`
	PaymentMethod string  `json:"paymentMethod" binding:"required,oneof=CASH ONLINE"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                   string               `json:"id"`
	RiderID              string               `json:"riderId"`
	DriverID             *string              `json:"driverId"`
	Pickup               string               `json:"pickup"`
	Destination          string               `json:"destination"`
	Distance             float64              `json:"distance"`
	Fare                 float64              `json:"fare"`
	PaymentMethod        string               `json:"paymentMethod"`
	Status               string               `json:"status"`
	TransitionTimestamps map[string]time.Time `json:"transitionTimestamps"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

func newRideResponse(ride *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:                   ride.ID,
		RiderID:              ride.RiderID,
		Pickup:               ride.Pickup,
		Destination:          ride.Destination,
		Distance:             ride.Distance,
		Fare:                 ride.Fare,
		PaymentMethod:        string(ride.PaymentMethod),
		Status:               string(ride.Status),
		TransitionTimestamps: make(map[string]time.Time, len(ride.Timestamps)),
		CreatedAt:            ride.CreatedAt,
		UpdatedAt:            ride.UpdatedAt,
	}
	if id, ok := ride.Driver.DriverID(); ok {
		resp.DriverID = &id
	}
	for name, at := range ride.Timestamps {
		resp.TransitionTimestamps[string(name)] = at
	}
	return resp
}

// EarningsResponse is the HTTP representation of a driver's earnings.
type EarningsResponse struct {
	DriverID       string         `json:"driverId"`
	CompletedRides int            `json:"completedRides"`
	TotalFare      float64        `json:"totalFare"`
	Rides          []RideResponse `json:"rides"`
}

// RequestRide handles POST /v1/rides
func (h *RideHandler) RequestRide(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ride, err := h.rideService.RequestRide(c.Request.Context(), service.RequestRideRequest{
		Caller:        caller,
		RiderID:       caller.SubjectID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Distance:      req.Distance,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	h.transition(c, h.rideService.CancelRide)
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	h.transition(c, h.rideService.AcceptRide)
}

// RejectRide handles POST /v1/rides/:id/reject
func (h *RideHandler) RejectRide(c *gin.Context) {
	h.transition(c, h.rideService.RejectRide)
}

// PickUpRider handles POST /v1/rides/:id/pickup
func (h *RideHandler) PickUpRider(c *gin.Context) {
	h.transition(c, h.rideService.PickUpRider)
}

// StartTransit handles POST /v1/rides/:id/transit
func (h *RideHandler) StartTransit(c *gin.Context) {
	h.transition(c, h.rideService.StartTransit)
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	h.transition(c, h.rideService.CompleteRide)
}

func (h *RideHandler) transition(c *gin.Context, op func(context.Context, domain.Caller, string) (*domain.Ride, error)) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	ride, err := op(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// GetAll handles GET /v1/rides
func (h *RideHandler) GetAll(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	page, err := h.rideService.ListRides(c.Request.Context(), caller, listParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, repository.RideSchema, page)
}

// GetRequested handles GET /v1/rides/requested
func (h *RideHandler) GetRequested(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	page, err := h.rideService.ListRequestedRides(c.Request.Context(), caller, listParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, repository.RideSchema, page)
}

// RiderHistory handles GET /v1/riders/:id/rides
func (h *RideHandler) RiderHistory(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	page, err := h.rideService.RiderRideHistory(c.Request.Context(), caller, c.Param("id"), listParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, repository.RideSchema, page)
}

// DriverHistory handles GET /v1/drivers/:id/rides
func (h *RideHandler) DriverHistory(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	page, err := h.rideService.DriverRideHistory(c.Request.Context(), caller, c.Param("id"), listParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, repository.RideSchema, page)
}

// DriverEarnings handles GET /v1/drivers/:id/earnings
func (h *RideHandler) DriverEarnings(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	earnings, err := h.rideService.DriverEarnings(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	rides := make([]RideResponse, 0, len(earnings.Rides))
	for _, ride := range earnings.Rides {
		rides = append(rides, newRideResponse(ride))
	}
	respondJSON(c, http.StatusOK, EarningsResponse{
		DriverID:       earnings.DriverID,
		CompletedRides: earnings.CompletedRides,
		TotalFare:      earnings.TotalFare,
		Rides:          rides,
	})
}
