package controllers

import (
	"net/http"
	"strings"

	"github.com/daviskamau/learnhub-backend/api/responses"
	"github.com/daviskamau/learnhub-backend/api/validators"
	purchaserepo "github.com/daviskamau/learnhub-backend/internal/purchases"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
	"github.com/daviskamau/learnhub-backend/pkg/pagination"
)

type purchaseListResponse struct {
	Purchases  any    `json:"purchases"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ListMyPurchases returns the authenticated user's purchase history, newest first.
func ListMyPurchases(repo purchaserepo.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase store unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		purchases, nextCursor, err := repo.ListByBuyer(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, purchaseListResponse{
			Purchases:  purchases,
			NextCursor: nextCursor,
		})
	}
}
