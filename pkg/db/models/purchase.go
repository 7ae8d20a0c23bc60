package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/daviskamau/learnhub-backend/pkg/enums"
)

// Purchase records one payment attempt for one course by one buyer.
// Rows are never deleted; every attempt stays queryable for audit.
// GatewayReference is the idempotency key webhooks reconcile against.
type Purchase struct {
	ID          uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID     uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	CourseID    uuid.UUID            `gorm:"column:course_id;type:uuid;not null;index"`
	Gateway     enums.PaymentGateway `gorm:"column:gateway;not null"`
	AmountCents int64                `gorm:"column:amount_cents;not null"`
	Currency    string               `gorm:"column:currency;not null"`
	// DisplayAmountCents preserves the pre-conversion amount in the
	// catalog currency so the original price round-trips exactly.
	DisplayAmountCents int64                `gorm:"column:display_amount_cents;not null;default:0"`
	DisplayCurrency    string               `gorm:"column:display_currency;not null;default:'USD'"`
	ConversionRate     int64                `gorm:"column:conversion_rate;not null;default:1"`
	GatewayReference   string               `gorm:"column:gateway_reference;not null;uniqueIndex"`
	GatewayChargeID    *string              `gorm:"column:gateway_charge_id"`
	Status             enums.PurchaseStatus `gorm:"column:status;not null;default:'pending'"`
	PaidAt             *time.Time           `gorm:"column:paid_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
