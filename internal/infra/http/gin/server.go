package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentals/internal/infra/config"
	"rentals/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	UpdateDates(c *gin.Context)
	Transition(c *gin.Context)
	Get(c *gin.Context)
	ListMine(c *gin.Context)
	ListOwned(c *gin.Context)
	ListByListing(c *gin.Context)
}

type AvailabilityHTTP interface {
	Check(c *gin.Context)
	Dates(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
	Identity     gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine; exposed separately so tests can drive it
// through httptest without a listener.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", headerUserID, headerUserRole},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Retry-After",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	identity := h.Identity
	if identity == nil {
		identity = HeaderIdentity{}.Handle
	}
	router.Use(identity)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/listings/:id/bookings", h.Booking.Create)
		api.GET("/listings/:id/bookings", h.Booking.ListByListing)
		api.GET("/bookings/:id", h.Booking.Get)
		api.PATCH("/bookings/:id", h.Booking.UpdateDates)
		api.POST("/bookings/:id/:action", h.Booking.Transition)
		api.GET("/me/bookings", h.Booking.ListMine)
		api.GET("/owner/bookings", h.Booking.ListOwned)
	}
	if h.Availability != nil {
		api.GET("/listings/:id/availability", h.Availability.Check)
		api.GET("/listings/:id/available-dates", h.Availability.Dates)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
