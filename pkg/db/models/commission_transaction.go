package models

import (
	"time"

	"github.com/google/uuid"
)

// CommissionTransaction is a ledger entry crediting a buyer's direct
// referrer for a completed purchase. SourcePurchaseID is unique: a
// purchase books at most one commission no matter how often its success
// event is delivered. Actual payout is an external process.
type CommissionTransaction struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BeneficiaryUserID uuid.UUID `gorm:"column:beneficiary_user_id;type:uuid;not null;index"`
	SourceUserID      uuid.UUID `gorm:"column:source_user_id;type:uuid;not null"`
	SourcePurchaseID  uuid.UUID `gorm:"column:source_purchase_id;type:uuid;not null;uniqueIndex"`
	CourseID          uuid.UUID `gorm:"column:course_id;type:uuid;not null"`
	AmountCents       int64     `gorm:"column:amount_cents;not null"`
	Currency          string    `gorm:"column:currency;not null"`
	CommissionRate    float64   `gorm:"column:commission_rate;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
