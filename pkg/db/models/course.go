package models

import (
	"time"

	"github.com/google/uuid"
)

// Course is a sellable catalog entry. PriceCents is in minor units of
// Currency; conversion for gateway-specific currencies happens at
// checkout-session creation, never later.
type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	PriceCents  int64     `gorm:"column:price_cents;not null;default:0"`
	Currency    string    `gorm:"column:currency;not null;default:'USD'"`
	IsFree      bool      `gorm:"column:is_free;not null;default:false"`
	IsPublished bool      `gorm:"column:is_published;not null;default:false"`
	Lessons     []Lesson  `gorm:"foreignKey:CourseID"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
