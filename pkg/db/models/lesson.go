package models

import (
	"time"

	"github.com/google/uuid"
)

// Lesson is an ordered unit of course content.
type Lesson struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CourseID  uuid.UUID `gorm:"column:course_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
