package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"guardian-api/internal/response"
	"guardian-api/internal/services"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// gatewayWebhook is the inbound PayPal notification shape.
type gatewayWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID            string `json:"id"`
		ParentPayment string `json:"parent_payment"`
	} `json:"resource"`
	RawResource json.RawMessage `json:"-"`
}

// normalizeEventType maps the gateway's wire names onto the canonical event
// types the reconciler understands.
func normalizeEventType(eventType string) (string, bool) {
	switch eventType {
	case "PAYMENT.SALE.COMPLETED", services.EventSaleCompleted:
		return services.EventSaleCompleted, true
	case "PAYMENT.SALE.DENIED", services.EventSaleDenied:
		return services.EventSaleDenied, true
	case "PAYMENT.SALE.REFUNDED", services.EventSaleRefunded:
		return services.EventSaleRefunded, true
	case "PAYMENT.SALE.REVERSED", services.EventSaleReversed:
		return services.EventSaleReversed, true
	default:
		return "", false
	}
}

// GatewayWebhook is the asynchronous event path. The gateway may deliver any
// event multiple times, out of order, or never; everything funnels into the
// same store transitions as the synchronous path, so repeats degrade to
// no-ops. A 409 tells the gateway to redeliver later.
func (s *Server) GatewayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var webhook gatewayWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		logging.Errorf("Failed to parse webhook payload: %v", err)
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid notification format")
		return
	}
	webhook.RawResource = body

	deliveryID := webhook.ID
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	eventType, known := normalizeEventType(webhook.EventType)
	if !known {
		logging.Infof("Webhook %s: unhandled event type %s, acknowledging", deliveryID, webhook.EventType)
		response.SuccessJSON(c, "Event ignored", nil)
		return
	}

	reference := webhook.Resource.ParentPayment
	if reference == "" {
		reference = webhook.Resource.ID
	}
	if reference == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "Missing payment reference")
		return
	}

	logging.Infof("Webhook %s: %s for %s", deliveryID, eventType, reference)

	err = s.reconciler.HandleEvent(c.Request.Context(), services.GatewayEvent{
		EventType:        eventType,
		GatewayReference: reference,
		Resource:         webhook.RawResource,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPurchaseNotFound):
			logging.Errorf("Webhook %s: no purchase for reference %s", deliveryID, reference)
			response.ErrorJSON(c, http.StatusNotFound, "Unknown payment reference")
		case errors.Is(err, store.ErrInvalidTransition):
			// Out-of-order delivery, e.g. a refund racing ahead of its
			// completion event. Ask the gateway to try again later.
			logging.Infof("Webhook %s: out-of-order event: %v", deliveryID, err)
			response.ErrorJSON(c, http.StatusConflict, "Event arrived out of order")
		default:
			logging.Errorf("Webhook %s: processing failed: %v", deliveryID, err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Failed to process notification")
		}
		return
	}

	response.SuccessJSON(c, "Notification processed", nil)
}
