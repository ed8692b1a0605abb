package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"cabride/internal/handler"
	"cabride/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler     *handler.UserHandler
	RideHandler     *handler.RideHandler
	DriverHandler   *handler.DriverHandler
	ChatHandler     *handler.ChatHandler
	ReportHandler   *handler.ReportHandler
	AdminHandler    *handler.AdminHandler
	PaymentHandler  *handler.PaymentHandler
	RealtimeHandler *handler.RealtimeHandler
	Verifier        middleware.TokenVerifier
	RedisClient     *redis.Client // optional; disables idempotency replay when nil
	NewRelicApp     *newrelic.Application
	AllowedOrigins  []string
	Logger          *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Metrics())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", deps.RealtimeHandler.Serve)

	var idempotencyStore redis.Cmdable
	if deps.RedisClient != nil {
		idempotencyStore = deps.RedisClient
	}

	v1 := router.Group("/v1")

	// Public auth routes.
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", deps.UserHandler.Register)
		authRoutes.POST("/register-driver", deps.UserHandler.RegisterDriver)
		authRoutes.POST("/login", deps.UserHandler.Login)
	}

	api := v1.Group("")
	api.Use(middleware.Auth(deps.Verifier))
	api.Use(middleware.NewRelicAttributes())
	api.Use(middleware.Idempotency(idempotencyStore, deps.Logger))
	{
		api.POST("/auth/reauthenticate", deps.UserHandler.Reauthenticate)
		api.GET("/users/profile/:id", deps.UserHandler.Profile)

		// Ride routes.
		rides := api.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("/history", deps.RideHandler.History)
			rides.GET("/frequent-locations", deps.RideHandler.FrequentLocations)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", middleware.RequireDriver(), deps.RideHandler.AcceptRide)
			rides.POST("/:id/verify-otp", middleware.RequireDriver(), deps.RideHandler.VerifyOtp)
			rides.POST("/:id/status", deps.RideHandler.UpdateStatus)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/pay", deps.RideHandler.MarkPaid)
			rides.GET("/:id/payment-request", deps.RideHandler.PaymentRequest)
			rides.POST("/:id/rate", deps.RideHandler.Rate)
			rides.GET("/:id/chat", deps.ChatHandler.History)
			rides.POST("/:id/chat", deps.ChatHandler.Send)
			rides.POST("/:id/report", deps.ReportHandler.ReportDriver)
			rides.POST("/:id/report-customer", middleware.RequireDriver(), deps.ReportHandler.ReportCustomer)
		}

		// Driver routes.
		api.GET("/drivers/profile/:id", deps.DriverHandler.Profile)
		api.GET("/drivers/nearby", deps.DriverHandler.Nearby)
		drivers := api.Group("/drivers", middleware.RequireDriver())
		{
			drivers.GET("/me", deps.DriverHandler.Me)
			drivers.PUT("/profile", deps.DriverHandler.UpdateProfile)
			drivers.POST("/status", deps.DriverHandler.SetStatus)
			drivers.POST("/location", deps.DriverHandler.UpdateLocation)
			drivers.GET("/trips", deps.DriverHandler.Trips)
			drivers.GET("/scheduled-rides", deps.DriverHandler.ScheduledRides)
			drivers.GET("/initial-rides", deps.DriverHandler.InitialRides)
		}

		// Payment routes.
		payments := api.Group("/payments")
		{
			payments.GET("/fine", deps.PaymentHandler.OutstandingFine)
			payments.POST("/fine", deps.PaymentHandler.PayFine)
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
		}

		// Admin routes.
		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.GET("/users", deps.AdminHandler.Users)
			admin.GET("/drivers", deps.AdminHandler.Drivers)
			admin.POST("/users/:id/suspend", deps.AdminHandler.Suspend)
			admin.POST("/drivers/:id/verify", deps.AdminHandler.VerifyDriver)
			admin.POST("/drivers/:id/reject", deps.AdminHandler.RejectDriver)
			admin.GET("/reports", deps.AdminHandler.Reports)
			admin.POST("/reports/:id/toggle", deps.AdminHandler.ToggleReport)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// AllowAllOrigins cannot be combined with credentials.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
