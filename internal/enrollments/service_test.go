package enrollments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/courses"
	"github.com/daviskamau/learnhub-backend/internal/purchases"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupEnrollmentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  is_free INTEGER NOT NULL DEFAULT 0,
  is_published INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL,
  title TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS purchases (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  gateway TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  display_amount_cents INTEGER NOT NULL DEFAULT 0,
  display_currency TEXT NOT NULL DEFAULT 'USD',
  conversion_rate INTEGER NOT NULL DEFAULT 1,
  gateway_reference TEXT NOT NULL UNIQUE,
  gateway_charge_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS enrollments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  purchase_id TEXT,
  payment_status TEXT NOT NULL DEFAULT 'free',
  completion_percentage INTEGER NOT NULL DEFAULT 0,
  completed_lesson_ids TEXT NOT NULL DEFAULT '{}',
  current_lesson_id TEXT,
  last_accessed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, course_id)
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newEnrollmentsService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(db),
		CourseRepo:        courses.NewRepository(db),
		PurchaseRepo:      purchases.NewRepository(db),
		TransactionRunner: &gormTxRunner{db: db},
	})
	require.NoError(t, err)
	return svc
}

func seedCourseWithLessons(t *testing.T, db *gorm.DB, lessonCount int) (*models.Course, []models.Lesson) {
	t.Helper()

	course := &models.Course{
		ID:          uuid.New(),
		Title:       "Go from scratch",
		PriceCents:  9900,
		Currency:    "USD",
		IsPublished: true,
	}
	require.NoError(t, db.Create(course).Error)

	lessons := make([]models.Lesson, 0, lessonCount)
	for i := 0; i < lessonCount; i++ {
		lesson := models.Lesson{
			ID:       uuid.New(),
			CourseID: course.ID,
			Title:    "Lesson",
			Position: i,
		}
		require.NoError(t, db.Create(&lesson).Error)
		lessons = append(lessons, lesson)
	}
	return course, lessons
}

func seedEnrollment(t *testing.T, db *gorm.DB, userID, courseID uuid.UUID, purchaseID *uuid.UUID) *models.Enrollment {
	t.Helper()

	status := "free"
	if purchaseID != nil {
		status = "paid"
	}
	enrollment := &models.Enrollment{
		ID:            uuid.New(),
		UserID:        userID,
		CourseID:      courseID,
		PurchaseID:    purchaseID,
		PaymentStatus: status,
	}
	require.NoError(t, db.Create(enrollment).Error)
	return enrollment
}

func TestService_CompleteLesson_TracksProgress(t *testing.T) {
	db := setupEnrollmentsTestDB(t)
	svc := newEnrollmentsService(t, db)
	ctx := context.Background()

	course, lessons := seedCourseWithLessons(t, db, 4)
	userID := uuid.New()
	seedEnrollment(t, db, userID, course.ID, nil)

	updated, err := svc.CompleteLesson(ctx, userID, course.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.CompletionPercentage)
	require.NotNil(t, updated.CurrentLessonID)
	assert.Equal(t, lessons[1].ID, *updated.CurrentLessonID)
	require.NotNil(t, updated.LastAccessedAt)

	// Completing the same lesson again does not double-count.
	updated, err = svc.CompleteLesson(ctx, userID, course.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.CompletionPercentage)
	assert.Len(t, updated.CompletedLessonIDs, 1)

	for _, lesson := range lessons[1:] {
		updated, err = svc.CompleteLesson(ctx, userID, course.ID, lesson.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, updated.CompletionPercentage)
	assert.Nil(t, updated.CurrentLessonID)
}

func TestService_CompleteLesson_RejectsForeignLesson(t *testing.T) {
	db := setupEnrollmentsTestDB(t)
	svc := newEnrollmentsService(t, db)

	course, _ := seedCourseWithLessons(t, db, 2)
	_, otherLessons := seedCourseWithLessons(t, db, 1)
	userID := uuid.New()
	seedEnrollment(t, db, userID, course.ID, nil)

	_, err := svc.CompleteLesson(context.Background(), userID, course.ID, otherLessons[0].ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestService_CompleteLesson_RequiresEnrollment(t *testing.T) {
	db := setupEnrollmentsTestDB(t)
	svc := newEnrollmentsService(t, db)

	course, lessons := seedCourseWithLessons(t, db, 1)
	_, err := svc.CompleteLesson(context.Background(), uuid.New(), course.ID, lessons[0].ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestService_HasAccess(t *testing.T) {
	db := setupEnrollmentsTestDB(t)
	svc := newEnrollmentsService(t, db)
	ctx := context.Background()

	course, _ := seedCourseWithLessons(t, db, 1)
	userID := uuid.New()

	ok, err := svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Free enrollment grants access outright.
	freeUser := uuid.New()
	seedEnrollment(t, db, freeUser, course.ID, nil)
	ok, err = svc.HasAccess(ctx, freeUser, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Paid enrollment requires the purchase to have completed.
	purchase := &models.Purchase{
		ID:               uuid.New(),
		BuyerID:          userID,
		CourseID:         course.ID,
		Gateway:          enums.PaymentGatewayStripe,
		AmountCents:      9900,
		Currency:         "USD",
		GatewayReference: "cs_" + uuid.NewString(),
		Status:           enums.PurchaseStatusPending,
	}
	require.NoError(t, db.Create(purchase).Error)
	seedEnrollment(t, db, userID, course.ID, &purchase.ID)

	ok, err = svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Model(purchase).Update("status", enums.PurchaseStatusCompleted).Error)
	ok, err = svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
