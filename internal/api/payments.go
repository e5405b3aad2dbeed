package api

import (
	"errors"
	"net/http"

	"guardian-api/internal/catalog"
	"guardian-api/internal/response"
	"guardian-api/internal/services"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// ListProducts returns the purchasable catalog.
func (s *Server) ListProducts(c *gin.Context) {
	response.SuccessJSON(c, "success", gin.H{"products": s.catalog.List()})
}

// CreatePaymentRequest represents a create payment request
type CreatePaymentRequest struct {
	Email     string `json:"email" binding:"required,email"`
	ProductID string `json:"product_id" binding:"required"`
}

// CreatePayment creates a gateway payment and the pending purchase record.
func (s *Server) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid input data")
		return
	}

	base := s.baseURL(c)
	created, err := s.reconciler.CreatePayment(c.Request.Context(),
		req.Email, req.ProductID, base+"/payment-success", base+"/payment-cancel")
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownProduct):
			response.ErrorJSON(c, http.StatusBadRequest, "Unknown product")
		case errors.Is(err, services.ErrGatewayUnavailable):
			logging.Errorf("Payment creation failed: %v", err)
			response.ErrorJSON(c, http.StatusBadGateway, "Payment creation failed. Please try again.")
		default:
			logging.Errorf("Payment creation failed: %v", err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Payment creation failed. Please try again.")
		}
		return
	}

	response.SuccessJSON(c, "Payment created", gin.H{
		"payment_id":   created.Reference,
		"approval_url": created.ApprovalURL,
	})
}

// ExecutePaymentRequest represents an execute payment request
type ExecutePaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	PayerID   string `json:"payer_id" binding:"required"`
}

// ExecutePayment finalizes an approved payment, issues the activation key and
// attempts email delivery. Email failure does not fail the purchase; the
// buyer gets the download link in the response instead.
func (s *Server) ExecutePayment(c *gin.Context) {
	var req ExecutePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid input data")
		return
	}

	result, err := s.reconciler.ExecutePayment(c.Request.Context(), req.PaymentID, req.PayerID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPurchaseNotFound):
			response.ErrorJSON(c, http.StatusNotFound, "Payment not found")
		case errors.Is(err, services.ErrGatewayUnavailable):
			logging.Errorf("Payment execution failed: %v", err)
			response.ErrorJSON(c, http.StatusBadGateway, "Payment could not be confirmed. Please try again.")
		case errors.Is(err, services.ErrPaymentConfirmedNotPersisted):
			response.ErrorJSON(c, http.StatusInternalServerError, "Payment processing error. Please contact support.")
		default:
			logging.Errorf("Payment execution failed: %v", err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Payment execution failed. Please contact support.")
		}
		return
	}

	downloadLink := s.baseURL(c) + "/api/download/" + result.ActivationKey

	delivered := false
	if product, perr := s.catalog.Get(result.Purchase.ProductID); perr == nil {
		delivered = s.notifier.Notify(result.Purchase.BuyerEmail, product, result.ActivationKey, downloadLink)
	}

	message := "Payment successful! Check your email for the activation key."
	if !delivered {
		message = "Payment successful! Email delivery failed, but you can download using the link below."
	}
	response.SuccessJSON(c, message, gin.H{
		"activation_key": result.ActivationKey,
		"download_link":  downloadLink,
		"email_sent":     delivered,
	})
}

// CancelPaymentRequest represents a cancel payment request
type CancelPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// CancelPayment marks a purchase cancelled after the buyer backed out at the
// gateway approval page.
func (s *Server) CancelPayment(c *gin.Context) {
	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid input data")
		return
	}

	if err := s.reconciler.CancelPayment(req.PaymentID); err != nil {
		switch {
		case errors.Is(err, store.ErrPurchaseNotFound):
			response.ErrorJSON(c, http.StatusNotFound, "Payment not found")
		case errors.Is(err, store.ErrInvalidTransition):
			response.ErrorJSON(c, http.StatusConflict, "Payment can no longer be cancelled")
		default:
			logging.Errorf("Payment cancellation failed: %v", err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Cancellation failed. Please try again.")
		}
		return
	}

	response.SuccessJSON(c, "Payment cancelled", nil)
}
