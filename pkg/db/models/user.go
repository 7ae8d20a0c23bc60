package models

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the identity record owned by the hosted auth backend. The
// API keeps a local projection for referral lineage and display fields.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"type:text;not null;uniqueIndex"`
	Name         string     `gorm:"column:name;not null"`
	ReferralCode string     `gorm:"column:referral_code;not null;uniqueIndex"`
	ReferredByID *uuid.UUID `gorm:"column:referred_by_id;type:uuid;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
