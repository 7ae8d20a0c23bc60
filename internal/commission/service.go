package commission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/pkg/db"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/money"
)

const sourcePurchaseConstraint = "idx_commission_transactions_source_purchase"

type ServiceParams struct {
	Repo     Repository
	UserRepo users.Repository
	Rate     float64
}

// Service books referral commissions for completed purchases.
type Service struct {
	repo  Repository
	users users.Repository
	rate  float64
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Rate < 0 || params.Rate > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission rate must be within [0,1]")
	}
	return &Service{
		repo:  params.Repo,
		users: params.UserRepo,
		rate:  params.Rate,
	}, nil
}

// Award credits the buyer's direct referrer for a completed purchase.
// It returns nil without error when no commission is due: buyer has no
// referrer, the referrer is the buyer themself, or the rate is zero.
// A purchase books at most one commission; replays return the existing
// entry.
func (s *Service) Award(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) (*models.CommissionTransaction, error) {
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase is required")
	}
	if purchase.Status != enums.PurchaseStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "commission requires a completed purchase")
	}

	repo := s.repo.WithTx(tx)
	userRepo := s.users.WithTx(tx)

	existing, err := repo.FindBySourcePurchaseID(ctx, purchase.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission")
	}
	if existing != nil {
		return existing, nil
	}

	buyer, err := userRepo.FindByID(ctx, purchase.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	if buyer == nil || buyer.ReferredByID == nil {
		return nil, nil
	}
	if *buyer.ReferredByID == buyer.ID {
		// Self-referral never pays out.
		return nil, nil
	}

	amount, err := money.CommissionMinor(purchase.AmountCents, s.rate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute commission")
	}
	if amount == 0 {
		return nil, nil
	}

	txn := &models.CommissionTransaction{
		ID:                uuid.New(),
		BeneficiaryUserID: *buyer.ReferredByID,
		SourceUserID:      buyer.ID,
		SourcePurchaseID:  purchase.ID,
		CourseID:          purchase.CourseID,
		AmountCents:       amount,
		Currency:          purchase.Currency,
		CommissionRate:    s.rate,
	}
	// Savepoint so a lost race leaves the caller's transaction usable
	// on Postgres and the existing entry can be read back.
	err = tx.Transaction(func(stx *gorm.DB) error {
		return s.repo.WithTx(stx).Create(ctx, txn)
	})
	if err != nil {
		if db.IsUniqueViolation(err, sourcePurchaseConstraint) {
			// A concurrent delivery booked it first.
			return repo.FindBySourcePurchaseID(ctx, purchase.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission")
	}
	return txn, nil
}
