package api

import (
	"net/http"
	"time"

	"guardian-api/internal/response"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports the state of the service's dependencies. The database
// is the only hard dependency; Redis and SMTP degrade gracefully, so they
// only show up as status strings.
func (s *Server) HealthCheck(c *gin.Context) {
	healthy := true

	dbStatus := "ok"
	if err := s.store.Ping(); err != nil {
		logging.Errorf("Health check: database unreachable: %v", err)
		dbStatus = "unreachable"
		healthy = false
	}

	redisStatus := "disabled"
	if s.limiter != nil {
		redisStatus = "ok"
		if err := s.limiter.Ping(c.Request.Context()); err != nil {
			logging.Errorf("Health check: redis unreachable: %v", err)
			redisStatus = "unreachable"
		}
	}

	data := gin.H{
		"service":   s.cfg.ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
		"redis":     redisStatus,
		"gateway":   configuredStatus(s.cfg.PayPalClientID != ""),
		"smtp":      configuredStatus(s.cfg.SMTPHost != ""),
	}

	if !healthy {
		resp := response.Error("Service degraded")
		resp.Data = data
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	response.SuccessJSON(c, "healthy", data)
}

func configuredStatus(configured bool) string {
	if configured {
		return "configured"
	}
	return "not_configured"
}
