package api

import (
	"net/http"
	"strconv"
	"strings"

	"guardian-api/internal/models"
	"guardian-api/internal/response"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// purchaseSummary is the admin-facing view of a purchase. Buyer emails are
// masked; the admin listing is for support triage, not marketing export.
type purchaseSummary struct {
	ID               uint    `json:"id"`
	BuyerEmail       string  `json:"buyer_email"`
	ProductID        string  `json:"product_id"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	GatewayReference string  `json:"gateway_reference"`
	Status           string  `json:"status"`
	HasKey           bool    `json:"has_key"`
	RedemptionCount  int     `json:"redemption_count"`
	CreatedAt        string  `json:"created_at"`
}

// ListPurchases returns a paginated, newest-first purchase listing.
func (s *Server) ListPurchases(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	purchases, total, err := s.store.ListPurchases(limit, offset)
	if err != nil {
		logging.Errorf("Failed to list purchases: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to list purchases")
		return
	}

	summaries := make([]purchaseSummary, 0, len(purchases))
	for _, p := range purchases {
		summaries = append(summaries, summarizePurchase(p))
	}

	response.SuccessJSON(c, "success", gin.H{
		"purchases": summaries,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func summarizePurchase(p models.Purchase) purchaseSummary {
	return purchaseSummary{
		ID:               p.ID,
		BuyerEmail:       maskEmail(p.BuyerEmail),
		ProductID:        p.ProductID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		GatewayReference: p.GatewayReference,
		Status:           p.Status,
		HasKey:           p.ActivationKey != nil,
		RedemptionCount:  p.RedemptionCount,
		CreatedAt:        p.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// maskEmail keeps the first character of the local part and the full domain.
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// Stats returns aggregate purchase figures.
func (s *Server) Stats(c *gin.Context) {
	stats, err := s.store.PurchaseStats()
	if err != nil {
		logging.Errorf("Failed to compute stats: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	response.SuccessJSON(c, "success", stats)
}

// AddPoolKeysRequest represents an add pool keys request
type AddPoolKeysRequest struct {
	ProductID string   `json:"product_id" binding:"required"`
	Keys      []string `json:"keys" binding:"required,min=1"`
}

// AddPoolKeys loads pre-generated activation keys into the pool for a
// product. Duplicate keys are skipped, not treated as errors, so a retried
// upload is harmless.
func (s *Server) AddPoolKeys(c *gin.Context) {
	var req AddPoolKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid input data")
		return
	}

	if _, err := s.catalog.Get(req.ProductID); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Unknown product")
		return
	}

	added := 0
	skipped := 0
	for _, key := range req.Keys {
		key = strings.TrimSpace(key)
		if key == "" {
			skipped++
			continue
		}
		if err := s.store.AddPoolKey(req.ProductID, key); err != nil {
			if store.IsDuplicateKey(err) {
				skipped++
				continue
			}
			logging.Errorf("Failed to add pool key for %s: %v", req.ProductID, err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Failed to add keys")
			return
		}
		added++
	}

	remaining, err := s.store.CountUnusedPoolKeys(req.ProductID)
	if err != nil {
		logging.Errorf("Failed to count pool keys for %s: %v", req.ProductID, err)
		remaining = -1
	}

	logging.Infof("Pool keys for %s: %d added, %d skipped, %d unused", req.ProductID, added, skipped, remaining)
	response.SuccessJSON(c, "Keys added", gin.H{
		"added":     added,
		"skipped":   skipped,
		"remaining": remaining,
	})
}
