package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"ridecore/internal/domain"
	"ridecore/internal/handler"
	"ridecore/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler      *handler.RideHandler
	DriverHandler    *handler.DriverHandler
	UserHandler      *handler.UserHandler
	TokenVerifier    *middleware.TokenVerifier
	IdempotencyStore middleware.IdempotencyStore
	NewRelicApp      *newrelic.Application
	Logger           *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Global middleware.
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.POST("/users/register", deps.UserHandler.Register)

	authed := v1.Group("")
	authed.Use(middleware.Auth(deps.TokenVerifier))
	authed.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore, log))
	{
		// User routes.
		users := authed.Group("/users")
		{
			users.GET("", middleware.RequireRole(domain.RoleAdmin), deps.UserHandler.GetAll)
			users.GET("/:id", deps.UserHandler.GetUser)
		}

		// Ride routes.
		rides := authed.Group("/rides")
		{
			rides.POST("", middleware.RequireRole(domain.RoleRider), deps.RideHandler.RequestRide)
			rides.GET("", middleware.RequireRole(domain.RoleAdmin), deps.RideHandler.GetAll)
			rides.GET("/requested", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.RideHandler.GetRequested)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/cancel", middleware.RequireRole(domain.RoleRider), deps.RideHandler.CancelRide)
			rides.POST("/:id/accept", middleware.RequireRole(domain.RoleDriver), deps.RideHandler.AcceptRide)
			rides.POST("/:id/reject", middleware.RequireRole(domain.RoleDriver), deps.RideHandler.RejectRide)
			rides.POST("/:id/pickup", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.RideHandler.PickUpRider)
			rides.POST("/:id/transit", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.RideHandler.StartTransit)
			rides.POST("/:id/complete", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.RideHandler.CompleteRide)
		}

		authed.GET("/riders/:id/rides", deps.RideHandler.RiderHistory)

		// Driver routes.
		drivers := authed.Group("/drivers")
		{
			drivers.POST("/register", middleware.RequireRole(domain.RoleDriver), deps.DriverHandler.Register)
			drivers.GET("", middleware.RequireRole(domain.RoleAdmin), deps.DriverHandler.GetAll)
			drivers.GET("/:id", deps.DriverHandler.GetDriver)
			drivers.GET("/:id/rides", deps.RideHandler.DriverHistory)
			drivers.GET("/:id/earnings", deps.RideHandler.DriverEarnings)
			drivers.PATCH("/:id/availability", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.DriverHandler.UpdateAvailability)
			drivers.PATCH("/:id/application", middleware.RequireRole(domain.RoleAdmin), deps.DriverHandler.ReviewApplication)
			drivers.PATCH("/:id/details", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.DriverHandler.UpdateDetails)
			drivers.PATCH("/:id/suspend", middleware.RequireRole(domain.RoleAdmin), deps.DriverHandler.Suspend)
			drivers.PATCH("/:id/unsuspend", middleware.RequireRole(domain.RoleAdmin), deps.DriverHandler.Unsuspend)
		}
	}

	return router
}
