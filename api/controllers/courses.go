package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daviskamau/learnhub-backend/api/responses"
	courserepo "github.com/daviskamau/learnhub-backend/internal/courses"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
)

// ListCourses returns the published catalog.
func ListCourses(repo courserepo.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "course store unavailable"))
			return
		}

		courses, err := repo.ListPublished(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, courses)
	}
}

// GetCourse returns one course with its lessons.
func GetCourse(repo courserepo.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "course store unavailable"))
			return
		}

		rawID := strings.TrimSpace(chi.URLParam(r, "courseId"))
		courseID, err := uuid.Parse(rawID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course id"))
			return
		}

		course, err := repo.FindByID(r.Context(), courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if course == nil || !course.IsPublished {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "course not found"))
			return
		}

		responses.WriteSuccess(w, course)
	}
}
