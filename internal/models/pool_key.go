package models

import (
	"time"
)

// PoolKey is a pre-generated activation key held in reserve for a product.
// The issuer consumes pool keys oldest first before synthesizing fresh ones.
type PoolKey struct {
	BaseModel

	ProductID     string     `json:"product_id" gorm:"size:100;not null;index"`
	ActivationKey string     `json:"activation_key" gorm:"size:100;uniqueIndex;not null"`
	Used          bool       `json:"used" gorm:"not null;default:false;index"`
	UsedAt        *time.Time `json:"used_at"`
	PurchaseID    *uint      `json:"purchase_id" gorm:"index"`
}

// TableName specifies the table name
func (PoolKey) TableName() string {
	return "activation_key_pool"
}
