package main

import (
	"log"
	"time"

	"guardian-api/internal/api"
	"guardian-api/internal/catalog"
	"guardian-api/internal/config"
	"guardian-api/internal/middleware"
	"guardian-api/internal/services"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize logging
	logging.InitLogging()

	// Initialize database
	st, err := store.Open(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer st.Close()

	// Load product catalog
	cat, err := catalog.New(cfg)
	if err != nil {
		log.Fatal("Failed to load product catalog:", err)
	}

	// Wire services
	gateway := services.NewPayPalGateway(cfg)
	issuer := services.NewIssuer(st)
	reconciler := services.NewReconciler(st, gateway, issuer, cat)
	gate := services.NewGate(st, cat)
	notifier := services.NewNotifier(cfg, services.NewSMTPMailer(cfg))
	files := services.NewFileStore(cfg)

	limiter, err := middleware.NewRateLimiter(cfg)
	if err != nil {
		log.Fatal("Failed to initialize rate limiter:", err)
	}
	if limiter != nil {
		defer limiter.Close()
	}

	// Purge abandoned pending purchases periodically so the table does not
	// fill up with carts that were never approved at the gateway.
	go purgeLoop(st, cfg.PendingPurchaseTTL)

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	// Create Gin engine
	r := gin.Default()

	// Setup routes
	server := api.NewServer(cfg, st, cat, reconciler, gate, notifier, files, limiter)
	server.SetupRoutes(r)

	// Start server
	logging.Infof("Starting %s on port %s", cfg.ServiceName, cfg.Port)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func purgeLoop(st *store.Store, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := st.PurgeStalePending(ttl); err != nil {
			logging.Errorf("Failed to purge stale pending purchases: %v", err)
		}
	}
}
