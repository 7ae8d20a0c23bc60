package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daviskamau/learnhub-backend/api/responses"
	"github.com/daviskamau/learnhub-backend/api/validators"
	checkoutsvc "github.com/daviskamau/learnhub-backend/internal/checkout"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
)

type createCheckoutRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
	Gateway  string `json:"gateway" validate:"required"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// CreateCheckoutSession opens a hosted payment session for a course.
func CreateCheckoutSession(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		courseID, err := uuid.Parse(payload.CourseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course id"))
			return
		}

		gateway, err := enums.ParsePaymentGateway(strings.TrimSpace(payload.Gateway))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gateway"))
			return
		}

		session, err := svc.CreateSession(r.Context(), checkoutsvc.CreateSessionInput{
			BuyerID:  userID,
			CourseID: courseID,
			Gateway:  gateway,
			Email:    strings.TrimSpace(payload.Email),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

type verifyCheckoutResponse struct {
	Outcome  string `json:"outcome"`
	Purchase any    `json:"purchase"`
}

// VerifyCheckout reconciles a purchase against the gateway on demand. It is
// the client-driven fallback for webhook deliveries that have not landed yet.
func VerifyCheckout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		if _, err := requireUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}

		outcome, purchase, err := svc.Verify(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, verifyCheckoutResponse{
			Outcome:  string(outcome),
			Purchase: purchase,
		})
	}
}
