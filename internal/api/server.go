package api

import (
	"time"

	"guardian-api/internal/catalog"
	"guardian-api/internal/config"
	"guardian-api/internal/middleware"
	"guardian-api/internal/services"
	"guardian-api/internal/store"

	"github.com/gin-gonic/gin"
)

// Server bundles the wired components behind the HTTP handlers.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	catalog    *catalog.Catalog
	reconciler *services.Reconciler
	gate       *services.Gate
	notifier   *services.Notifier
	files      *services.FileStore
	limiter    *middleware.RateLimiter
}

// NewServer creates the handler set. limiter may be nil.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	cat *catalog.Catalog,
	reconciler *services.Reconciler,
	gate *services.Gate,
	notifier *services.Notifier,
	files *services.FileStore,
	limiter *middleware.RateLimiter,
) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		catalog:    cat,
		reconciler: reconciler,
		gate:       gate,
		notifier:   notifier,
		files:      files,
		limiter:    limiter,
	}
}

// SetupRoutes sets up all routes
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/health", s.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/products", s.ListProducts)

		payments := api.Group("/payments")
		payments.Use(s.limiter.Limit("payments", 10, time.Hour))
		{
			payments.POST("", s.CreatePayment)
			payments.POST("/execute", s.ExecutePayment)
			payments.POST("/cancel", s.CancelPayment)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/paypal", s.GatewayWebhook)
		}

		download := api.Group("/download")
		download.Use(s.limiter.Limit("download", 10, time.Hour))
		{
			download.GET("/:key", s.Download)
		}

		contact := api.Group("/contact")
		contact.Use(s.limiter.Limit("contact", 5, time.Minute))
		{
			contact.POST("", s.Contact)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(s.cfg))
		{
			admin.GET("/purchases", s.ListPurchases)
			admin.GET("/stats", s.Stats)
			admin.POST("/keys", s.AddPoolKeys)
		}
	}
}

// baseURL resolves the externally visible URL prefix for links handed to
// buyers and to the gateway.
func (s *Server) baseURL(c *gin.Context) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
