package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateReference is returned when a purchase is created with a
	// gateway reference that already exists.
	ErrDuplicateReference = errors.New("duplicate gateway reference")

	// ErrPurchaseNotFound is returned when no purchase matches the lookup.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrInvalidTransition is returned when a status change is requested from
	// a state it is not legal from. Duplicate webhook delivery surfaces this;
	// callers decide whether to retry or drop.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownKey is returned when an activation key matches no purchase.
	ErrUnknownKey = errors.New("unknown activation key")

	// ErrKeyNotRedeemable is returned when the key exists but its purchase is
	// not in a redeemable status (e.g. refunded).
	ErrKeyNotRedeemable = errors.New("activation key not redeemable")

	// ErrRedemptionLimitExceeded is returned when the product's redemption
	// limit has been reached. No mutation is performed.
	ErrRedemptionLimitExceeded = errors.New("redemption limit exceeded")
)

// IsDuplicateKey reports whether err is a unique-constraint violation. The
// issuer retries key generation on this instead of propagating the collision.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
