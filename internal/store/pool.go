package store

import (
	"errors"
	"fmt"

	"guardian-api/internal/models"

	"gorm.io/gorm"
)

// AddPoolKey stores a pre-generated activation key for a product.
func (s *Store) AddPoolKey(productID, activationKey string) error {
	key := models.PoolKey{
		ProductID:     productID,
		ActivationKey: activationKey,
	}
	if err := s.db.Create(&key).Error; err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("pool key %q already exists: %w", activationKey, err)
		}
		return err
	}
	return nil
}

// OldestUnusedPoolKey returns the oldest unused key for a product. The key is
// not reserved here; it is consumed atomically when the purchase transitions
// to completed. A race between two purchases over the same pool key resolves
// through the unique constraint on purchases.activation_key, and the loser
// retries issuance.
func (s *Store) OldestUnusedPoolKey(productID string) (string, bool, error) {
	var key models.PoolKey
	err := s.db.Where("product_id = ? AND used = ?", productID, false).
		Order("created_at ASC, id ASC").
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return key.ActivationKey, true, nil
}

// CountUnusedPoolKeys reports how many pre-generated keys remain for a product.
func (s *Store) CountUnusedPoolKeys(productID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.PoolKey{}).
		Where("product_id = ? AND used = ?", productID, false).
		Count(&count).Error
	return count, err
}
