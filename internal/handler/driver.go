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

// DriverHandler handles HTTP requests for driver profiles.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// VehicleRequest describes the applicant's vehicle.
type VehicleRequest struct {
	Type        string `json:"type" binding:"required,oneof=CAR BIKE"`
	Model       string `json:"model" binding:"required"`
	PlateNumber string `json:"plateNumber" binding:"required"`
}

// RegisterDriverRequest is the HTTP request body for a driver application.
type RegisterDriverRequest struct {
	LicenseNumber string         `json:"licenseNumber" binding:"required"`
	Vehicle       VehicleRequest `json:"vehicle"`
}

// UpdateAvailabilityRequest is the HTTP request body for going online or offline.
type UpdateAvailabilityRequest struct {
	Availability string `json:"availability" binding:"required,oneof=ONLINE OFFLINE"`
}

// ReviewApplicationRequest is the HTTP request body for an application review.
type ReviewApplicationRequest struct {
	Status string `json:"status" binding:"required,oneof=APPROVED REJECTED"`
}

// UpdateDetailsRequest is the HTTP request body for a profile update.
// Omitted fields keep their current value.
type UpdateDetailsRequest struct {
	LicenseNumber string `json:"licenseNumber"`
	VehicleType   string `json:"vehicleType" binding:"omitempty,oneof=CAR BIKE"`
	VehicleModel  string `json:"vehicleModel"`
	PlateNumber   string `json:"plateNumber"`
}

// DriverResponse is the HTTP representation of a driver profile.
type DriverResponse struct {
	ID                string    `json:"id"`
	LicenseNumber     string    `json:"licenseNumber"`
	VehicleType       string    `json:"vehicleType"`
	VehicleModel      string    `json:"vehicleModel"`
	PlateNumber       string    `json:"plateNumber"`
	ApplicationStatus string    `json:"applicationStatus"`
	AccountStatus     string    `json:"accountStatus"`
	Availability      string    `json:"availability"`
	CompletedRides    []string  `json:"completedRides"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func newDriverResponse(d *domain.Driver) DriverResponse {
	completed := d.CompletedRides
	if completed == nil {
		completed = []string{}
	}
	return DriverResponse{
		ID:                d.ID,
		LicenseNumber:     d.LicenseNumber,
		VehicleType:       string(d.Vehicle.Type),
		VehicleModel:      d.Vehicle.Model,
		PlateNumber:       d.Vehicle.PlateNumber,
		ApplicationStatus: string(d.ApplicationStatus),
		AccountStatus:     string(d.AccountStatus),
		Availability:      string(d.Availability),
		CompletedRides:    completed,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		Caller:        caller,
		LicenseNumber: req.LicenseNumber,
		Vehicle: domain.Vehicle{
			Type:        domain.VehicleType(req.Vehicle.Type),
			Model:       req.Vehicle.Model,
			PlateNumber: req.Vehicle.PlateNumber,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newDriverResponse(driver))
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// UpdateAvailability handles PATCH /v1/drivers/:id/availability
func (h *DriverHandler) UpdateAvailability(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := h.driverService.UpdateAvailability(c.Request.Context(), caller, c.Param("id"), domain.Availability(req.Availability))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// ReviewApplication handles PATCH /v1/drivers/:id/application
func (h *DriverHandler) ReviewApplication(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := h.driverService.ReviewApplication(c.Request.Context(), caller, c.Param("id"), domain.ApplicationStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// UpdateDetails handles PATCH /v1/drivers/:id/details
func (h *DriverHandler) UpdateDetails(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := h.driverService.UpdateDriverDetails(c.Request.Context(), service.UpdateDriverDetailsRequest{
		Caller:        caller,
		DriverID:      c.Param("id"),
		LicenseNumber: req.LicenseNumber,
		VehicleType:   domain.VehicleType(req.VehicleType),
		VehicleModel:  req.VehicleModel,
		PlateNumber:   req.PlateNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// Suspend handles PATCH /v1/drivers/:id/suspend
func (h *DriverHandler) Suspend(c *gin.Context) {
	h.changeAccountStatus(c, h.driverService.SuspendDriver)
}

// Unsuspend handles PATCH /v1/drivers/:id/unsuspend
func (h *DriverHandler) Unsuspend(c *gin.Context) {
	h.changeAccountStatus(c, h.driverService.UnsuspendDriver)
}

func (h *DriverHandler) changeAccountStatus(c *gin.Context, change func(context.Context, domain.Caller, string) (*domain.Driver, error)) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	driver, err := change(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	page, err := h.driverService.ListDrivers(c.Request.Context(), caller, listParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, repository.DriverSchema, page)
}
