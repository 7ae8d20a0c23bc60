package enrollments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/courses"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type purchaseFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
}

type ServiceParams struct {
	Repo              Repository
	CourseRepo        courses.Repository
	PurchaseRepo      purchaseFinder
	TransactionRunner txRunner
}

// Service exposes enrollment listing, access checks and lesson progress.
type Service struct {
	repo       Repository
	courseRepo courses.Repository
	purchases  purchaseFinder
	txRunner   txRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enrollment repo required")
	}
	if params.CourseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "course repo required")
	}
	if params.PurchaseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:       params.Repo,
		courseRepo: params.CourseRepo,
		purchases:  params.PurchaseRepo,
		txRunner:   params.TransactionRunner,
	}, nil
}

// ListForUser returns the user's enrollments, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enrollments")
	}
	return rows, nil
}

// HasAccess reports whether the user can open the course. Free courses
// need only the enrollment row; paid courses additionally need the linked
// purchase to have completed.
func (s *Service) HasAccess(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	enrollment, err := s.repo.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
	}
	if enrollment == nil {
		return false, nil
	}
	if enrollment.PurchaseID == nil {
		return true, nil
	}

	purchase, err := s.purchases.FindByID(ctx, *enrollment.PurchaseID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	return purchase != nil && purchase.Status == enums.PurchaseStatusCompleted, nil
}

// CompleteLesson records lesson completion and recomputes progress.
func (s *Service) CompleteLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*models.Enrollment, error) {
	var updated *models.Enrollment
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		enrollment, err := repo.FindByUserAndCourse(ctx, userID, courseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
		}
		if enrollment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "enrollment not found")
		}

		lessons, err := s.courseRepo.WithTx(tx).ListLessons(ctx, courseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lessons")
		}
		if !lessonBelongs(lessons, lessonID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "lesson does not belong to course")
		}

		if !enrollment.CompletedLessonIDs.Contains(lessonID) {
			enrollment.CompletedLessonIDs = append(enrollment.CompletedLessonIDs, lessonID)
		}
		if len(lessons) > 0 {
			enrollment.CompletionPercentage = len(enrollment.CompletedLessonIDs) * 100 / len(lessons)
		}
		enrollment.CurrentLessonID = nextLessonID(lessons, enrollment)
		now := time.Now().UTC()
		enrollment.LastAccessedAt = &now

		if err := repo.Update(ctx, enrollment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update enrollment")
		}
		updated = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func lessonBelongs(lessons []models.Lesson, lessonID uuid.UUID) bool {
	for _, lesson := range lessons {
		if lesson.ID == lessonID {
			return true
		}
	}
	return false
}

// nextLessonID picks the first lesson, in course order, not yet completed.
func nextLessonID(lessons []models.Lesson, enrollment *models.Enrollment) *uuid.UUID {
	for _, lesson := range lessons {
		if !enrollment.CompletedLessonIDs.Contains(lesson.ID) {
			id := lesson.ID
			return &id
		}
	}
	return nil
}
