package models

import (
	"time"
)

// Purchase statuses. Pending is the only non-terminal state; refunded is
// reachable only from completed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDenied    = "denied"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Purchase is one row per attempted sale. The gateway reference is the
// reconciliation key between this system and the payment gateway; the
// activation key is set exactly once, on the pending -> completed transition.
type Purchase struct {
	BaseModel

	BuyerEmail string  `json:"buyer_email" gorm:"not null;index"`
	ProductID  string  `json:"product_id" gorm:"size:100;not null;index"`
	Amount     float64 `json:"amount" gorm:"not null"`
	Currency   string  `json:"currency" gorm:"size:3;not null;default:'USD'"`

	GatewayReference string `json:"gateway_reference" gorm:"size:100;uniqueIndex;not null"`
	Status           string `json:"status" gorm:"size:20;not null;index;default:'pending'"`

	ActivationKey   *string    `json:"activation_key" gorm:"size:100;uniqueIndex"`
	RedemptionCount int        `json:"redemption_count" gorm:"not null;default:0"`
	LastRedeemedAt  *time.Time `json:"last_redeemed_at"`
}

// TableName specifies the table name
func (Purchase) TableName() string {
	return "purchases"
}

// IsTerminal reports whether no transition may leave the purchase's status.
func (p *Purchase) IsTerminal() bool {
	return p.Status != StatusPending
}

// IsRedeemable reports whether the activation key may still be used for
// downloads. Refunded purchases are not redeemable.
func (p *Purchase) IsRedeemable() bool {
	return p.Status == StatusCompleted
}

// ValidTerminalStatus reports whether status names a legal terminal state and
// returns the one source state it may be entered from.
func ValidTerminalStatus(status string) (from string, ok bool) {
	switch status {
	case StatusFailed, StatusDenied, StatusCancelled:
		return StatusPending, true
	case StatusRefunded:
		return StatusCompleted, true
	default:
		return "", false
	}
}
