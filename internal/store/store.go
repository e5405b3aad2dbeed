package store

import (
	"errors"
	"fmt"
	"time"

	"guardian-api/internal/config"
	"guardian-api/internal/models"
	"guardian-api/pkg/logging"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the single owner of purchase and pool-key state. All mutation goes
// through its operation set; the conditional updates here are what make the
// at-most-one-winner transition guarantees enforceable in one place.
type Store struct {
	db *gorm.DB
}

// New wraps an existing gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, falling back to a local SQLite file when
// DATABASE_URL is not set, and migrates the schema.
func Open(cfg *config.Config) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	if cfg.DatabaseURL == "" {
		logging.Infof("DATABASE_URL not set, using SQLite for development")
		db, err = gorm.Open(sqlite.Open("guardian-api.db"), gormCfg)
	} else {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(db)
	if err := s.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// AutoMigrate creates the purchases and activation_key_pool tables with their
// unique indexes on gateway_reference and activation_key.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Purchase{},
		&models.PoolKey{},
	)
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks that the database connection is alive.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreatePurchase inserts a new pending purchase. The amount and currency are
// snapshotted at creation so later catalog price changes cannot alter the
// charged price.
func (s *Store) CreatePurchase(p *models.Purchase) error {
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if err := s.db.Create(p).Error; err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, p.GatewayReference)
		}
		return err
	}
	return nil
}

// FindByGatewayReference returns the purchase for a gateway reference.
func (s *Store) FindByGatewayReference(ref string) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.Where("gateway_reference = ?", ref).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reference %s", ErrPurchaseNotFound, ref)
		}
		return nil, err
	}
	return &p, nil
}

// FindByActivationKey returns the purchase holding the key, but only while it
// is in a redeemable status.
func (s *Store) FindByActivationKey(key string) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.Where("activation_key = ?", key).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownKey
		}
		return nil, err
	}
	if !p.IsRedeemable() {
		return nil, fmt.Errorf("%w: purchase is %s", ErrKeyNotRedeemable, p.Status)
	}
	return &p, nil
}

// TransitionToCompleted moves a purchase from pending to completed and assigns
// the activation key, as one conditional update: only the first caller that
// observes pending wins. Returns false without error when the purchase is not
// pending, which makes repeated gateway delivery a no-op. If the key came from
// the pool, the pool row is consumed in the same transaction.
func (s *Store) TransitionToCompleted(ref, activationKey string) (bool, error) {
	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Purchase{}).
			Where("gateway_reference = ? AND status = ?", ref, models.StatusPending).
			Updates(map[string]interface{}{
				"status":         models.StatusCompleted,
				"activation_key": activationKey,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true

		var p models.Purchase
		if err := tx.Where("gateway_reference = ?", ref).First(&p).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		// No-op when the key was synthesized rather than pooled.
		return tx.Model(&models.PoolKey{}).
			Where("activation_key = ? AND used = ?", activationKey, false).
			Updates(map[string]interface{}{
				"used":        true,
				"used_at":     now,
				"purchase_id": p.ID,
			}).Error
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// TransitionToTerminal moves a purchase into a terminal status. Failed, denied
// and cancelled are only legal from pending; refunded only from completed. A
// purchase found in any other state yields ErrInvalidTransition so the caller
// can decide whether the delivery was a duplicate or genuinely out of order.
func (s *Store) TransitionToTerminal(ref, status string) error {
	from, ok := models.ValidTerminalStatus(status)
	if !ok {
		return fmt.Errorf("%w: %q is not a terminal status", ErrInvalidTransition, status)
	}

	res := s.db.Model(&models.Purchase{}).
		Where("gateway_reference = ? AND status = ?", ref, from).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var p models.Purchase
		if err := s.db.Where("gateway_reference = ?", ref).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: reference %s", ErrPurchaseNotFound, ref)
			}
			return err
		}
		return fmt.Errorf("%w: %s -> %s for reference %s", ErrInvalidTransition, p.Status, status, ref)
	}
	return nil
}

// RecordRedemption increments the redemption counter for a key, bounded by the
// product's limit (-1 means unlimited). The limit check and the increment are
// one conditional update, so two simultaneous downloads against a key at its
// last remaining redemption cannot both succeed.
func (s *Store) RecordRedemption(activationKey string, limit int) (int, time.Time, error) {
	now := time.Now().UTC()
	var updated models.Purchase
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Purchase{}).
			Where("activation_key = ? AND status = ?", activationKey, models.StatusCompleted).
			Where("? < 0 OR redemption_count < ?", limit, limit).
			Updates(map[string]interface{}{
				"redemption_count": gorm.Expr("redemption_count + 1"),
				"last_redeemed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var p models.Purchase
			if err := tx.Where("activation_key = ?", activationKey).First(&p).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrUnknownKey
				}
				return err
			}
			if !p.IsRedeemable() {
				return fmt.Errorf("%w: purchase is %s", ErrKeyNotRedeemable, p.Status)
			}
			return fmt.Errorf("%w: limit %d reached", ErrRedemptionLimitExceeded, limit)
		}
		return tx.Where("activation_key = ?", activationKey).First(&updated).Error
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return updated.RedemptionCount, now, nil
}

// ListPurchases returns purchases newest first with the total row count.
func (s *Store) ListPurchases(limit, offset int) ([]models.Purchase, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	var total int64
	if err := s.db.Model(&models.Purchase{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var purchases []models.Purchase
	err := s.db.Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&purchases).Error
	if err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}

// PurgeStalePending deletes pending purchases older than the given age. The
// buyer never approved these at the gateway; the gateway reference is dead.
func (s *Store) PurgeStalePending(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := s.db.Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Delete(&models.Purchase{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logging.Infof("Purged %d stale pending purchases", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
