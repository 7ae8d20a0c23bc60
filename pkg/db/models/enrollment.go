package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/daviskamau/learnhub-backend/pkg/db/types"
)

// Enrollment grants a user access to a course and tracks lesson progress.
// The (user, course) pair is unique; its existence is the sole authority
// for access checks.
type Enrollment struct {
	ID                   uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_enrollments_user_course"`
	CourseID             uuid.UUID         `gorm:"column:course_id;type:uuid;not null;uniqueIndex:idx_enrollments_user_course"`
	PurchaseID           *uuid.UUID        `gorm:"column:purchase_id;type:uuid"`
	PaymentStatus        string            `gorm:"column:payment_status;not null;default:'free'"`
	CompletionPercentage int               `gorm:"column:completion_percentage;not null;default:0"`
	CompletedLessonIDs   dbtypes.UUIDArray `gorm:"column:completed_lesson_ids;type:uuid[];not null;default:ARRAY[]::uuid[]"`
	CurrentLessonID      *uuid.UUID        `gorm:"column:current_lesson_id;type:uuid"`
	LastAccessedAt       *time.Time        `gorm:"column:last_accessed_at"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
