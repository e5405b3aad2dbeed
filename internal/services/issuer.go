package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"guardian-api/internal/store"
	"guardian-api/pkg/logging"

	"github.com/google/uuid"
)

// Issuer produces globally unique, product-scoped activation keys. Keys come
// from the pre-generated pool when one is available, oldest first; otherwise a
// fresh key is synthesized. Uniqueness is enforced by the store's constraint
// on purchases.activation_key, and the reconciler retries issuance when that
// constraint fires.
type Issuer struct {
	store *store.Store
}

// NewIssuer creates a new key issuer.
func NewIssuer(s *store.Store) *Issuer {
	return &Issuer{store: s}
}

// Issue returns the next activation key for a product.
func (i *Issuer) Issue(productID string) (string, error) {
	key, ok, err := i.store.OldestUnusedPoolKey(productID)
	if err != nil {
		return "", fmt.Errorf("failed to check key pool: %w", err)
	}
	if ok {
		logging.Infof("Issuing pooled activation key for product %s", productID)
		return key, nil
	}
	return i.Synthesize(productID), nil
}

// Synthesize generates a fresh key of the form
// {PRODUCT}-{YYYYMMDD}-{12 random hex chars}.
func (i *Issuer) Synthesize(productID string) string {
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		// crypto/rand failing is effectively fatal; fall back to a v4 UUID
		// which draws from the same source but panics internally instead.
		fallback := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		return fallback[:24]
	}
	return fmt.Sprintf("%s-%s-%s",
		strings.ToUpper(productID),
		time.Now().UTC().Format("20060102"),
		strings.ToUpper(hex.EncodeToString(random)))
}
