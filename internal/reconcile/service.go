// Package reconcile drives purchases from pending to exactly one terminal
// state off gateway events, no matter how often or in what order the
// gateway delivers them.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/gateway"
	"github.com/daviskamau/learnhub-backend/internal/purchases"
	"github.com/daviskamau/learnhub-backend/pkg/db"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
)

const (
	gatewayReferenceConstraint = "idx_purchases_gateway_reference"
	userCourseConstraint       = "idx_enrollments_user_course"

	paymentStatusPaid = "paid"
)

// CommissionEngine books the referral commission for a completed purchase.
type CommissionEngine interface {
	Award(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) (*models.CommissionTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	PurchaseRepo      purchases.Repository
	EnrollmentRepo    enrollments.Repository
	Commission        CommissionEngine
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service is the reconciliation state machine.
type Service struct {
	purchaseRepo   purchases.Repository
	enrollmentRepo enrollments.Repository
	commission     CommissionEngine
	txRunner       txRunner
	logg           *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PurchaseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase repo required")
	}
	if params.EnrollmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enrollment repo required")
	}
	if params.Commission == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission engine required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		purchaseRepo:   params.PurchaseRepo,
		enrollmentRepo: params.EnrollmentRepo,
		commission:     params.Commission,
		txRunner:       params.TransactionRunner,
		logg:           params.Logger,
	}, nil
}

// Handle applies one normalized gateway event. The status transition and
// its side effects (enrollment, commission) commit as one transaction;
// any storage failure rolls the whole unit back so the caller can request
// redelivery.
func (s *Service) Handle(ctx context.Context, event *gateway.PaymentEvent) (Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment event is required")
	}
	if event.Type == enums.PaymentEventIgnored {
		return OutcomeIgnored, nil
	}
	if !event.Type.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event type %q", event.Type))
	}
	if event.Reference == "" {
		if event.Type == enums.PaymentEventChargeSucceeded {
			s.warn(ctx, event, "success event without reference, flagged for manual reconciliation")
			return OutcomeIgnoredMetadata, nil
		}
		return OutcomeIgnoredNotFound, nil
	}

	var outcome Outcome
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = s.handleInTx(ctx, tx, event)
		return txErr
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Service) handleInTx(ctx context.Context, tx *gorm.DB, event *gateway.PaymentEvent) (Outcome, error) {
	repo := s.purchaseRepo.WithTx(tx)

	purchase, err := repo.FindByGatewayReference(ctx, event.Reference)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}

	if event.Type == enums.PaymentEventChargeSucceeded {
		return s.handleSuccess(ctx, tx, event, purchase)
	}
	return s.handleFailure(ctx, tx, event, purchase)
}

func (s *Service) handleSuccess(ctx context.Context, tx *gorm.DB, event *gateway.PaymentEvent, purchase *models.Purchase) (Outcome, error) {
	repo := s.purchaseRepo.WithTx(tx)

	if purchase == nil {
		if !event.HasPartyMetadata() {
			s.warn(ctx, event, "success event missing buyer/course metadata, flagged for manual reconciliation")
			return OutcomeIgnoredMetadata, nil
		}

		// Payment confirmed before the pending record landed. The money
		// moved, so bookkeeping follows.
		created, err := s.createCompleted(ctx, tx, event)
		if err != nil {
			return "", err
		}
		if created != nil {
			if err := s.grantAccess(ctx, tx, created); err != nil {
				return "", err
			}
			return OutcomeCreatedCompleted, nil
		}

		// Lost the creation race; reload and continue on the found path.
		purchase, err = repo.FindByGatewayReference(ctx, event.Reference)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase")
		}
		if purchase == nil {
			return "", pkgerrors.New(pkgerrors.CodeDependency, "purchase vanished after duplicate create")
		}
	}

	if purchase.Status.IsTerminal() {
		return OutcomeAlreadyReconciled, nil
	}

	enrollment, err := s.enrollmentRepo.WithTx(tx).FindByUserAndCourse(ctx, purchase.BuyerID, purchase.CourseID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
	}

	moved, err := s.transition(ctx, tx, purchase, enums.PurchaseStatusCompleted, event)
	if err != nil {
		return "", err
	}
	if !moved {
		return OutcomeAlreadyReconciled, nil
	}

	if enrollment != nil {
		// Another purchase already granted access to this course; the
		// status update is recorded but nothing else happens.
		return OutcomeCompleted, nil
	}

	if err := s.grantAccess(ctx, tx, purchase); err != nil {
		return "", err
	}
	return OutcomeCompleted, nil
}

func (s *Service) handleFailure(ctx context.Context, tx *gorm.DB, event *gateway.PaymentEvent, purchase *models.Purchase) (Outcome, error) {
	if purchase == nil {
		s.warn(ctx, event, "failure event for unknown reference")
		return OutcomeIgnoredNotFound, nil
	}
	if purchase.Status.IsTerminal() {
		return OutcomeAlreadyReconciled, nil
	}

	target := enums.PurchaseStatusFailed
	outcome := OutcomeFailed
	if event.Type == enums.PaymentEventSessionExpired {
		target = enums.PurchaseStatusExpired
		outcome = OutcomeExpired
	}

	moved, err := s.transition(ctx, tx, purchase, target, event)
	if err != nil {
		return "", err
	}
	if !moved {
		return OutcomeAlreadyReconciled, nil
	}
	return outcome, nil
}

// transition applies the compare-and-set and mirrors the result onto the
// in-memory purchase so later steps see the terminal state.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, to enums.PurchaseStatus, event *gateway.PaymentEvent) (bool, error) {
	var chargeID *string
	if event.GatewayChargeID != "" {
		chargeID = &event.GatewayChargeID
	}
	var paidAt *time.Time
	if to == enums.PurchaseStatusCompleted {
		paidAt = event.PaidAt
		if paidAt == nil {
			now := time.Now().UTC()
			paidAt = &now
		}
	}

	moved, err := s.purchaseRepo.WithTx(tx).TransitionFromPending(ctx, purchase.ID, to, chargeID, paidAt)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition purchase")
	}
	if moved {
		purchase.Status = to
		purchase.PaidAt = paidAt
		if chargeID != nil {
			purchase.GatewayChargeID = chargeID
		}
	}
	return moved, nil
}

// createCompleted persists an orphan success directly in completed. It
// returns nil when a concurrent delivery created the row first.
func (s *Service) createCompleted(ctx context.Context, tx *gorm.DB, event *gateway.PaymentEvent) (*models.Purchase, error) {
	paidAt := event.PaidAt
	if paidAt == nil {
		now := time.Now().UTC()
		paidAt = &now
	}
	var chargeID *string
	if event.GatewayChargeID != "" {
		chargeID = &event.GatewayChargeID
	}

	purchase := &models.Purchase{
		ID:                 uuid.New(),
		BuyerID:            event.BuyerID,
		CourseID:           event.CourseID,
		Gateway:            event.Gateway,
		AmountCents:        event.AmountMinor,
		Currency:           event.Currency,
		DisplayAmountCents: event.AmountMinor,
		DisplayCurrency:    event.Currency,
		ConversionRate:     1,
		GatewayReference:   event.Reference,
		GatewayChargeID:    chargeID,
		Status:             enums.PurchaseStatusCompleted,
		PaidAt:             paidAt,
	}
	// Savepoint keeps the surrounding transaction usable on Postgres when
	// the insert loses a creation race.
	err := tx.Transaction(func(stx *gorm.DB) error {
		return s.purchaseRepo.WithTx(stx).Create(ctx, purchase)
	})
	if err != nil {
		if db.IsUniqueViolation(err, gatewayReferenceConstraint) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
	}
	return purchase, nil
}

// grantAccess creates the enrollment and books the commission for a
// purchase this call just completed. Runs inside the same transaction as
// the status update. The insert sits in a savepoint so a lost (user,
// course) race does not abort the outer transaction on Postgres; losing
// that race means another purchase already granted access, so the status
// update stands and no commission is booked for this one.
func (s *Service) grantAccess(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) error {
	enrollment := &models.Enrollment{
		ID:            uuid.New(),
		UserID:        purchase.BuyerID,
		CourseID:      purchase.CourseID,
		PurchaseID:    &purchase.ID,
		PaymentStatus: paymentStatusPaid,
	}
	err := tx.Transaction(func(stx *gorm.DB) error {
		return s.enrollmentRepo.WithTx(stx).Create(ctx, enrollment)
	})
	if err != nil {
		if db.IsUniqueViolation(err, userCourseConstraint) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create enrollment")
	}

	if _, err := s.commission.Award(ctx, tx, purchase); err != nil {
		return err
	}
	return nil
}

func (s *Service) warn(ctx context.Context, event *gateway.PaymentEvent, message string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway":   event.Gateway.String(),
		"eventType": event.Type.String(),
		"reference": event.Reference,
	})
	s.logg.Warn(ctx, message)
}
