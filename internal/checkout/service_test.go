package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/courses"
	"github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/gateway"
	"github.com/daviskamau/learnhub-backend/internal/purchases"
	"github.com/daviskamau/learnhub-backend/internal/reconcile"
	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/pkg/config"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/paystack"
	pkgstripe "github.com/daviskamau/learnhub-backend/pkg/stripe"
)

type stubPaystack struct {
	initParams  *paystack.InitializeParams
	initResult  *paystack.InitializeResult
	verifyTxn   *paystack.Transaction
	verifyCalls int
}

func (s *stubPaystack) InitializeTransaction(_ context.Context, params paystack.InitializeParams) (*paystack.InitializeResult, error) {
	s.initParams = &params
	if s.initResult != nil {
		return s.initResult, nil
	}
	return &paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.com/abc",
		AccessCode:       "access_abc",
		Reference:        params.Reference,
	}, nil
}

func (s *stubPaystack) VerifyTransaction(_ context.Context, _ string) (*paystack.Transaction, error) {
	s.verifyCalls++
	if s.verifyTxn == nil {
		return nil, fmt.Errorf("no transaction configured")
	}
	return s.verifyTxn, nil
}

type stubStripe struct {
	createParams *pkgstripe.CheckoutSessionParams
	session      *stripesdk.CheckoutSession
}

func (s *stubStripe) CreateCheckoutSession(_ context.Context, params pkgstripe.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	s.createParams = &params
	return &stripesdk.CheckoutSession{
		ID:                "cs_test_123",
		URL:               "https://checkout.stripe.com/pay/cs_test_123",
		ClientReferenceID: params.Reference,
	}, nil
}

func (s *stubStripe) GetCheckoutSession(_ context.Context, _ string) (*stripesdk.CheckoutSession, error) {
	if s.session == nil {
		return nil, fmt.Errorf("no session configured")
	}
	return s.session, nil
}

type stubReconciler struct {
	outcome reconcile.Outcome
	events  []*gateway.PaymentEvent
}

func (s *stubReconciler) Handle(_ context.Context, event *gateway.PaymentEvent) (reconcile.Outcome, error) {
	s.events = append(s.events, event)
	return s.outcome, nil
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  referral_code TEXT NOT NULL UNIQUE,
  referred_by_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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

type checkoutFixture struct {
	db         *gorm.DB
	svc        *Service
	paystack   *stubPaystack
	stripe     *stubStripe
	reconciler *stubReconciler
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	db := setupCheckoutTestDB(t)
	ps := &stubPaystack{}
	st := &stubStripe{}
	rec := &stubReconciler{outcome: reconcile.OutcomeCompleted}

	svc, err := NewService(ServiceParams{
		CourseRepo:     courses.NewRepository(db),
		EnrollmentRepo: enrollments.NewRepository(db),
		PurchaseRepo:   purchases.NewRepository(db),
		UserRepo:       users.NewRepository(db),
		Paystack:       ps,
		Stripe:         st,
		Reconciler:     rec,
		Payments: config.PaymentsConfig{
			CommissionRate:   0.10,
			USDToNGNRate:     1600,
			DisplayCurrency:  "USD",
			PaystackCurrency: "NGN",
		},
		BaseURL: "http://localhost:3000",
	})
	require.NoError(t, err)

	return &checkoutFixture{db: db, svc: svc, paystack: ps, stripe: st, reconciler: rec}
}

func seedBuyer(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		Name:         "Buyer",
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedPaidCourse(t *testing.T, db *gorm.DB, priceCents int64) *models.Course {
	t.Helper()

	course := &models.Course{
		ID:          uuid.New(),
		Title:       "Distributed Systems",
		PriceCents:  priceCents,
		Currency:    "USD",
		IsPublished: true,
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func TestService_CreateSession_PaystackConvertsOnce(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	buyer := seedBuyer(t, f.db)
	course := seedPaidCourse(t, f.db, 9900)

	session, err := f.svc.CreateSession(ctx, CreateSessionInput{
		BuyerID:  buyer.ID,
		CourseID: course.ID,
		Gateway:  enums.PaymentGatewayPaystack,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", session.RedirectURL)
	assert.NotEmpty(t, session.Reference)

	require.NotNil(t, f.paystack.initParams)
	assert.Equal(t, int64(15840000), f.paystack.initParams.Amount)
	assert.Equal(t, "NGN", f.paystack.initParams.Currency)
	assert.Equal(t, buyer.Email, f.paystack.initParams.Email)
	assert.Equal(t, course.ID.String(), f.paystack.initParams.Metadata["course_id"])

	var purchase models.Purchase
	require.NoError(t, f.db.First(&purchase, "gateway_reference = ?", session.Reference).Error)
	assert.Equal(t, enums.PurchaseStatusPending, purchase.Status)
	assert.Equal(t, int64(15840000), purchase.AmountCents)
	assert.Equal(t, "NGN", purchase.Currency)
	assert.Equal(t, int64(9900), purchase.DisplayAmountCents)
	assert.Equal(t, "USD", purchase.DisplayCurrency)
	assert.Equal(t, int64(1600), purchase.ConversionRate)

	courseID, userID, err := gateway.ParseReference(session.Reference)
	require.NoError(t, err)
	assert.Equal(t, course.ID, courseID)
	assert.Equal(t, buyer.ID, userID)
}

func TestService_CreateSession_StripeKeepsCatalogCurrency(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	buyer := seedBuyer(t, f.db)
	course := seedPaidCourse(t, f.db, 9900)

	session, err := f.svc.CreateSession(ctx, CreateSessionInput{
		BuyerID:  buyer.ID,
		CourseID: course.ID,
		Gateway:  enums.PaymentGatewayStripe,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_123", session.RedirectURL)

	require.NotNil(t, f.stripe.createParams)
	assert.Equal(t, int64(9900), f.stripe.createParams.Amount)
	assert.Equal(t, "USD", f.stripe.createParams.Currency)

	var purchase models.Purchase
	require.NoError(t, f.db.First(&purchase, "gateway_reference = ?", session.Reference).Error)
	assert.Equal(t, int64(9900), purchase.AmountCents)
	assert.Equal(t, int64(1), purchase.ConversionRate)
	require.NotNil(t, purchase.GatewayChargeID)
	assert.Equal(t, "cs_test_123", *purchase.GatewayChargeID)
}

func TestService_CreateSession_Rejections(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	buyer := seedBuyer(t, f.db)

	t.Run("unknown course", func(t *testing.T) {
		_, err := f.svc.CreateSession(ctx, CreateSessionInput{
			BuyerID: buyer.ID, CourseID: uuid.New(), Gateway: enums.PaymentGatewayStripe,
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	})

	t.Run("free course", func(t *testing.T) {
		course := seedPaidCourse(t, f.db, 0)
		_, err := f.svc.CreateSession(ctx, CreateSessionInput{
			BuyerID: buyer.ID, CourseID: course.ID, Gateway: enums.PaymentGatewayStripe,
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})

	t.Run("already enrolled", func(t *testing.T) {
		course := seedPaidCourse(t, f.db, 9900)
		require.NoError(t, f.db.Create(&models.Enrollment{
			ID: uuid.New(), UserID: buyer.ID, CourseID: course.ID, PaymentStatus: "paid",
		}).Error)
		_, err := f.svc.CreateSession(ctx, CreateSessionInput{
			BuyerID: buyer.ID, CourseID: course.ID, Gateway: enums.PaymentGatewayPaystack,
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	})

	t.Run("invalid gateway", func(t *testing.T) {
		course := seedPaidCourse(t, f.db, 9900)
		_, err := f.svc.CreateSession(ctx, CreateSessionInput{
			BuyerID: buyer.ID, CourseID: course.ID, Gateway: enums.PaymentGateway("cash"),
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})
}

func TestService_Verify_PaystackFunnelsThroughReconciler(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	buyer := seedBuyer(t, f.db)
	course := seedPaidCourse(t, f.db, 9900)

	session, err := f.svc.CreateSession(ctx, CreateSessionInput{
		BuyerID: buyer.ID, CourseID: course.ID, Gateway: enums.PaymentGatewayPaystack,
	})
	require.NoError(t, err)

	f.paystack.verifyTxn = &paystack.Transaction{
		ID:        777,
		Status:    "success",
		Reference: session.Reference,
		Amount:    15840000,
		Currency:  "NGN",
		PaidAt:    "2026-08-01T12:00:00Z",
	}

	outcome, purchase, err := f.svc.Verify(ctx, session.Reference)
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeCompleted, outcome)
	require.NotNil(t, purchase)

	require.Len(t, f.reconciler.events, 1)
	event := f.reconciler.events[0]
	assert.Equal(t, enums.PaymentEventChargeSucceeded, event.Type)
	assert.Equal(t, session.Reference, event.Reference)
	assert.Equal(t, buyer.ID, event.BuyerID)
	assert.Equal(t, course.ID, event.CourseID)
	require.NotNil(t, event.PaidAt)
}

func TestService_Verify_TerminalPurchaseSkipsGateway(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	buyer := seedBuyer(t, f.db)
	course := seedPaidCourse(t, f.db, 9900)

	session, err := f.svc.CreateSession(ctx, CreateSessionInput{
		BuyerID: buyer.ID, CourseID: course.ID, Gateway: enums.PaymentGatewayPaystack,
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Purchase{}).
		Where("gateway_reference = ?", session.Reference).
		Update("status", enums.PurchaseStatusCompleted).Error)

	outcome, purchase, err := f.svc.Verify(ctx, session.Reference)
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeAlreadyReconciled, outcome)
	assert.Equal(t, enums.PurchaseStatusCompleted, purchase.Status)
	assert.Zero(t, f.paystack.verifyCalls)
	assert.Empty(t, f.reconciler.events)
}

func TestService_Verify_UnknownReference(t *testing.T) {
	f := newCheckoutFixture(t)

	_, _, err := f.svc.Verify(context.Background(), "course_missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
