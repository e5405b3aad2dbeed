package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"guardian-api/internal/response"
	"guardian-api/internal/services"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

var activationKeyFormat = regexp.MustCompile(`^[A-Za-z0-9_-]{8,100}$`)

// Download redeems an activation key and streams the product file. Unknown
// and non-redeemable keys answer identically so the endpoint cannot be used
// to probe which keys exist.
func (s *Server) Download(c *gin.Context) {
	key := c.Param("key")
	if !activationKeyFormat.MatchString(key) {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid activation key format")
		return
	}

	redemption, err := s.gate.Redeem(key)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnknownKey), errors.Is(err, store.ErrKeyNotRedeemable):
			response.ErrorJSON(c, http.StatusNotFound, "Invalid activation key")
		case errors.Is(err, store.ErrRedemptionLimitExceeded):
			response.ErrorJSON(c, http.StatusForbidden, "Download limit exceeded. Please contact support.")
		default:
			logging.Errorf("Redemption failed for key ending %s: %v", keySuffix(key), err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Download failed. Please try again.")
		}
		return
	}

	file, size, err := s.files.OpenForDownload(redemption.Product.FileReference)
	if err != nil {
		// The redemption was already recorded; the buyer should not be
		// charged an attempt for our missing file, but undoing the count
		// would let a crafted race inflate the limit. Log loudly instead.
		logging.Errorf("Product file missing for %s: %v", redemption.Product.ID, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Product file is temporarily unavailable. Please contact support.")
		return
	}
	defer file.Close()

	filename := services.DownloadFilename(redemption.Product.ID, key)
	c.DataFromReader(http.StatusOK, size, "application/octet-stream", file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
}

// keySuffix returns the last few characters of a key for log lines. Full keys
// never go to the log.
func keySuffix(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "..." + key[len(key)-4:]
}
