package services

import (
	"time"

	"guardian-api/internal/catalog"
	"guardian-api/internal/models"
	"guardian-api/internal/store"
	"guardian-api/pkg/logging"
)

// Gate decides whether a redemption may proceed and records it. The limit
// check and the increment happen inside one store operation, so concurrent
// downloads against the same key serialize on the purchase row.
type Gate struct {
	store   *store.Store
	catalog *catalog.Catalog
}

// NewGate creates a new entitlement gate.
func NewGate(s *store.Store, cat *catalog.Catalog) *Gate {
	return &Gate{store: s, catalog: cat}
}

// Redemption describes one approved download.
type Redemption struct {
	Purchase   *models.Purchase
	Product    *catalog.Product
	Count      int
	RedeemedAt time.Time
}

// Redeem validates the activation key, checks the product's redemption limit
// and atomically records the attempt. On success the caller proceeds to serve
// the product file.
func (g *Gate) Redeem(activationKey string) (*Redemption, error) {
	purchase, err := g.store.FindByActivationKey(activationKey)
	if err != nil {
		return nil, err
	}

	product, err := g.catalog.Get(purchase.ProductID)
	if err != nil {
		// Purchases can outlive catalog entries; a retired product is no
		// longer redeemable.
		return nil, store.ErrKeyNotRedeemable
	}

	count, at, err := g.store.RecordRedemption(activationKey, product.RedemptionLimit)
	if err != nil {
		return nil, err
	}

	logging.Infof("Redemption %d/%d recorded for product %s", count, product.RedemptionLimit, product.ID)
	return &Redemption{
		Purchase:   purchase,
		Product:    product,
		Count:      count,
		RedeemedAt: at,
	}, nil
}
