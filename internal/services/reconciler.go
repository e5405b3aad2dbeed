package services

import (
	"context"
	"errors"
	"fmt"

	"guardian-api/internal/catalog"
	"guardian-api/internal/models"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"
)

// ErrPaymentConfirmedNotPersisted signals that the gateway confirmed a payment
// but the entitlement could not be written. It is the one condition where
// payment and entitlement state disagree, and it must reach an operator.
var ErrPaymentConfirmedNotPersisted = errors.New("payment confirmed but not persisted")

// issueAttempts bounds retries of key generation on a uniqueness collision.
const issueAttempts = 5

// Reconciler translates gateway outcomes, from both the synchronous execution
// path and the asynchronous event path, into store transitions. Both paths
// funnel through the store's conditional updates, so duplicate or out-of-order
// delivery cannot corrupt state or double-issue a key.
type Reconciler struct {
	store   *store.Store
	gateway PaymentGateway
	issuer  *Issuer
	catalog *catalog.Catalog
}

// NewReconciler creates a new payment reconciler.
func NewReconciler(s *store.Store, gw PaymentGateway, issuer *Issuer, cat *catalog.Catalog) *Reconciler {
	return &Reconciler{store: s, gateway: gw, issuer: issuer, catalog: cat}
}

// CreatePayment asks the gateway for a new payment and records the pending
// purchase. The catalog price is snapshotted into the purchase row.
func (r *Reconciler) CreatePayment(ctx context.Context, buyerEmail, productID, returnURL, cancelURL string) (*CreatedPayment, error) {
	product, err := r.catalog.Get(productID)
	if err != nil {
		return nil, err
	}

	created, err := r.gateway.CreatePayment(ctx, PaymentRequest{
		ProductID:   product.ID,
		ProductName: product.Name,
		Description: fmt.Sprintf("Purchase of %s", product.Name),
		Amount:      product.Price,
		Currency:    product.Currency,
		BuyerEmail:  buyerEmail,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		BuyerEmail:       buyerEmail,
		ProductID:        product.ID,
		Amount:           product.Price,
		Currency:         product.Currency,
		GatewayReference: created.Reference,
		Status:           models.StatusPending,
	}
	if err := r.store.CreatePurchase(purchase); err != nil {
		return nil, fmt.Errorf("failed to record purchase for %s: %w", created.Reference, err)
	}

	logging.Infof("Payment created: %s for %s, product %s", created.Reference, buyerEmail, product.ID)
	return created, nil
}

// ExecutionResult is the outcome of a successful synchronous execution.
type ExecutionResult struct {
	Purchase      *models.Purchase
	ActivationKey string
}

// ExecutePayment finalizes an approved payment at the gateway and converts the
// success into the pending -> completed transition with key issuance. A
// gateway failure marks the purchase failed; the gateway call is not retried
// because finalize is not idempotent from the client side. A store failure
// after gateway success surfaces ErrPaymentConfirmedNotPersisted.
func (r *Reconciler) ExecutePayment(ctx context.Context, reference, approvalToken string) (*ExecutionResult, error) {
	purchase, err := r.store.FindByGatewayReference(reference)
	if err != nil {
		return nil, err
	}

	// The event path may already have completed this purchase; the sync path
	// then just hands back the existing entitlement.
	if purchase.Status == models.StatusCompleted && purchase.ActivationKey != nil {
		logging.Infof("Payment %s already completed, returning existing entitlement", reference)
		return &ExecutionResult{Purchase: purchase, ActivationKey: *purchase.ActivationKey}, nil
	}

	if err := r.gateway.Finalize(ctx, reference, approvalToken); err != nil {
		if terr := r.store.TransitionToTerminal(reference, models.StatusFailed); terr != nil {
			// The purchase may have left pending concurrently; the gateway
			// error still wins the response.
			logging.Infof("Could not mark %s failed: %v", reference, terr)
		}
		return nil, fmt.Errorf("finalize failed for %s: %w", reference, err)
	}

	key, won, err := r.completeWithKey(reference, purchase.ProductID)
	if err != nil {
		logging.Errorf("URGENT: payment %s confirmed by gateway but store write failed: %v", reference, err)
		return nil, fmt.Errorf("%w: reference %s: %v", ErrPaymentConfirmedNotPersisted, reference, err)
	}
	if !won {
		// Lost the race against the event path. Re-read; a completed row is
		// still a success from the buyer's perspective.
		purchase, err = r.store.FindByGatewayReference(reference)
		if err != nil {
			return nil, err
		}
		if purchase.Status == models.StatusCompleted && purchase.ActivationKey != nil {
			return &ExecutionResult{Purchase: purchase, ActivationKey: *purchase.ActivationKey}, nil
		}
		logging.Errorf("URGENT: payment %s confirmed by gateway but purchase is %s", reference, purchase.Status)
		return nil, fmt.Errorf("%w: reference %s is %s", ErrPaymentConfirmedNotPersisted, reference, purchase.Status)
	}

	purchase, err = r.store.FindByGatewayReference(reference)
	if err != nil {
		return nil, err
	}
	logging.Infof("Payment executed: %s, key issued", reference)
	return &ExecutionResult{Purchase: purchase, ActivationKey: key}, nil
}

// CancelPayment marks a purchase cancelled after the buyer abandoned approval.
func (r *Reconciler) CancelPayment(reference string) error {
	return r.store.TransitionToTerminal(reference, models.StatusCancelled)
}

// HandleEvent applies one asynchronous gateway event. Repeat delivery of an
// event whose transition already happened degrades to a logged no-op; an event
// arriving genuinely out of order (e.g. a refund before the completion was
// processed) surfaces ErrInvalidTransition so the caller can retry or drop.
func (r *Reconciler) HandleEvent(ctx context.Context, event GatewayEvent) error {
	switch event.EventType {
	case EventSaleCompleted:
		return r.handleSaleCompleted(event.GatewayReference)
	case EventSaleDenied:
		return r.applyTerminal(event.GatewayReference, models.StatusDenied)
	case EventSaleRefunded, EventSaleReversed:
		return r.applyTerminal(event.GatewayReference, models.StatusRefunded)
	default:
		logging.Infof("Ignoring unhandled gateway event type: %s", event.EventType)
		return nil
	}
}

func (r *Reconciler) handleSaleCompleted(reference string) error {
	purchase, err := r.store.FindByGatewayReference(reference)
	if err != nil {
		return err
	}
	if purchase.Status != models.StatusPending {
		logging.Infof("Duplicate completion event for %s (status %s), discarding", reference, purchase.Status)
		return nil
	}
	_, won, err := r.completeWithKey(reference, purchase.ProductID)
	if err != nil {
		return err
	}
	if !won {
		logging.Infof("Completion event for %s lost transition race, discarding", reference)
	}
	return nil
}

func (r *Reconciler) applyTerminal(reference, status string) error {
	err := r.store.TransitionToTerminal(reference, status)
	if err == nil {
		logging.Infof("Purchase %s moved to %s via gateway event", reference, status)
		return nil
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		purchase, ferr := r.store.FindByGatewayReference(reference)
		if ferr == nil && purchase.Status == status {
			// Same event delivered twice; the first delivery already won.
			logging.Infof("Duplicate %s event for %s, discarding", status, reference)
			return nil
		}
	}
	return err
}

// completeWithKey issues a key and attempts the completed transition,
// regenerating the key on a uniqueness collision. Retries synthesize rather
// than consult the pool again: a pooled key that collided would be handed out
// a second time, since pool rows are only consumed on a successful transition.
func (r *Reconciler) completeWithKey(reference, productID string) (string, bool, error) {
	for attempt := 0; attempt < issueAttempts; attempt++ {
		var key string
		if attempt == 0 {
			var err error
			key, err = r.issuer.Issue(productID)
			if err != nil {
				return "", false, err
			}
		} else {
			key = r.issuer.Synthesize(productID)
		}
		won, err := r.store.TransitionToCompleted(reference, key)
		if err != nil {
			if store.IsDuplicateKey(err) {
				logging.Infof("Activation key collision for %s, regenerating", reference)
				continue
			}
			return "", false, err
		}
		return key, won, nil
	}
	return "", false, fmt.Errorf("could not issue a unique activation key for %s after %d attempts", reference, issueAttempts)
}
