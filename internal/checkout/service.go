// Package checkout creates gateway payment sessions and verifies their
// outcome on demand.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"

	"github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/gateway"
	"github.com/daviskamau/learnhub-backend/internal/purchases"
	"github.com/daviskamau/learnhub-backend/internal/reconcile"
	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/pkg/config"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/money"
	"github.com/daviskamau/learnhub-backend/pkg/paystack"
	pkgstripe "github.com/daviskamau/learnhub-backend/pkg/stripe"
)

type courseFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type paystackClient interface {
	InitializeTransaction(ctx context.Context, params paystack.InitializeParams) (*paystack.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type stripeClient interface {
	CreateCheckoutSession(ctx context.Context, params pkgstripe.CheckoutSessionParams) (*stripesdk.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error)
}

type reconciler interface {
	Handle(ctx context.Context, event *gateway.PaymentEvent) (reconcile.Outcome, error)
}

// CreateSessionInput describes one checkout request.
type CreateSessionInput struct {
	BuyerID  uuid.UUID
	CourseID uuid.UUID
	Gateway  enums.PaymentGateway
	Email    string
}

// Session is the redirect handed back to the client.
type Session struct {
	RedirectURL string               `json:"redirectUrl"`
	Reference   string               `json:"reference"`
	Gateway     enums.PaymentGateway `json:"gateway"`
}

type ServiceParams struct {
	CourseRepo     courseFinder
	EnrollmentRepo enrollments.Repository
	PurchaseRepo   purchases.Repository
	UserRepo       users.Repository
	Paystack       paystackClient
	Stripe         stripeClient
	Reconciler     reconciler
	Payments       config.PaymentsConfig
	BaseURL        string
}

type Service struct {
	courses     courseFinder
	enrollments enrollments.Repository
	purchases   purchases.Repository
	users       users.Repository
	paystack    paystackClient
	stripe      stripeClient
	reconciler  reconciler
	payments    config.PaymentsConfig
	baseURL     string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.CourseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "course repo required")
	}
	if params.EnrollmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enrollment repo required")
	}
	if params.PurchaseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Paystack == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "paystack client required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{
		courses:     params.CourseRepo,
		enrollments: params.EnrollmentRepo,
		purchases:   params.PurchaseRepo,
		users:       params.UserRepo,
		paystack:    params.Paystack,
		stripe:      params.Stripe,
		reconciler:  params.Reconciler,
		payments:    params.Payments,
		baseURL:     params.BaseURL,
	}, nil
}

// CreateSession validates the request, creates the pending purchase and
// returns the gateway redirect. Currency conversion for the local-currency
// gateway happens here, once; webhooks never re-convert.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error) {
	if !input.Gateway.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported gateway %q", input.Gateway))
	}

	course, err := s.courses.FindByID(ctx, input.CourseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}
	if course == nil || !course.IsPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	if course.IsFree || course.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course does not require payment")
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, input.BuyerID, input.CourseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
	}
	if enrollment != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already enrolled in this course")
	}

	email := input.Email
	if email == "" {
		buyer, err := s.users.FindByID(ctx, input.BuyerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		}
		if buyer == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		email = buyer.Email
	}

	switch input.Gateway {
	case enums.PaymentGatewayPaystack:
		return s.createPaystackSession(ctx, course, input.BuyerID, email)
	default:
		return s.createStripeSession(ctx, course, input.BuyerID, email)
	}
}

func (s *Service) createPaystackSession(ctx context.Context, course *models.Course, buyerID uuid.UUID, email string) (*Session, error) {
	rate := s.payments.USDToNGNRate
	amount, err := money.ConvertMinor(course.PriceCents, rate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert amount")
	}

	reference := gateway.BuildReference(course.ID, buyerID, time.Now())
	purchase := &models.Purchase{
		ID:                 uuid.New(),
		BuyerID:            buyerID,
		CourseID:           course.ID,
		Gateway:            enums.PaymentGatewayPaystack,
		AmountCents:        amount,
		Currency:           s.payments.PaystackCurrency,
		DisplayAmountCents: course.PriceCents,
		DisplayCurrency:    course.Currency,
		ConversionRate:     rate,
		GatewayReference:   reference,
		Status:             enums.PurchaseStatusPending,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
	}

	result, err := s.paystack.InitializeTransaction(ctx, paystack.InitializeParams{
		Email:       email,
		Amount:      amount,
		Reference:   reference,
		Currency:    s.payments.PaystackCurrency,
		CallbackURL: s.baseURL + "/checkout/callback",
		Metadata: map[string]string{
			"course_id":       course.ID.String(),
			"user_id":         buyerID.String(),
			"display_amount":  fmt.Sprintf("%d", course.PriceCents),
			"conversion_rate": fmt.Sprintf("%d", rate),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize paystack transaction")
	}

	return &Session{
		RedirectURL: result.AuthorizationURL,
		Reference:   reference,
		Gateway:     enums.PaymentGatewayPaystack,
	}, nil
}

func (s *Service) createStripeSession(ctx context.Context, course *models.Course, buyerID uuid.UUID, email string) (*Session, error) {
	reference := gateway.BuildReference(course.ID, buyerID, time.Now())

	session, err := s.stripe.CreateCheckoutSession(ctx, pkgstripe.CheckoutSessionParams{
		Reference:   reference,
		ProductName: course.Title,
		Amount:      course.PriceCents,
		Currency:    course.Currency,
		Email:       email,
		SuccessURL:  s.baseURL + "/checkout/success?reference=" + reference,
		CancelURL:   s.baseURL + "/courses/" + course.ID.String(),
		Metadata: map[string]string{
			"course_id": course.ID.String(),
			"user_id":   buyerID.String(),
			"reference": reference,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe session")
	}

	sessionID := session.ID
	purchase := &models.Purchase{
		ID:                 uuid.New(),
		BuyerID:            buyerID,
		CourseID:           course.ID,
		Gateway:            enums.PaymentGatewayStripe,
		AmountCents:        course.PriceCents,
		Currency:           course.Currency,
		DisplayAmountCents: course.PriceCents,
		DisplayCurrency:    course.Currency,
		ConversionRate:     1,
		GatewayReference:   reference,
		GatewayChargeID:    &sessionID,
		Status:             enums.PurchaseStatusPending,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
	}

	return &Session{
		RedirectURL: session.URL,
		Reference:   reference,
		Gateway:     enums.PaymentGatewayStripe,
	}, nil
}

// Verify asks the gateway for the authoritative transaction state and
// funnels the answer through the reconciler, the same path webhooks take.
func (s *Service) Verify(ctx context.Context, reference string) (reconcile.Outcome, *models.Purchase, error) {
	purchase, err := s.purchases.FindByGatewayReference(ctx, reference)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase == nil {
		return "", nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	if purchase.Status.IsTerminal() {
		return reconcile.OutcomeAlreadyReconciled, purchase, nil
	}

	var event *gateway.PaymentEvent
	switch purchase.Gateway {
	case enums.PaymentGatewayPaystack:
		event, err = s.paystackEvent(ctx, purchase)
	default:
		event, err = s.stripeEvent(ctx, purchase)
	}
	if err != nil {
		return "", nil, err
	}

	outcome, err := s.reconciler.Handle(ctx, event)
	if err != nil {
		return "", nil, err
	}

	refreshed, err := s.purchases.FindByGatewayReference(ctx, reference)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase")
	}
	if refreshed != nil {
		purchase = refreshed
	}
	return outcome, purchase, nil
}

func (s *Service) paystackEvent(ctx context.Context, purchase *models.Purchase) (*gateway.PaymentEvent, error) {
	txn, err := s.paystack.VerifyTransaction(ctx, purchase.GatewayReference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify paystack transaction")
	}

	event := &gateway.PaymentEvent{
		Gateway:         enums.PaymentGatewayPaystack,
		EventID:         fmt.Sprintf("verify:%s", purchase.GatewayReference),
		Reference:       purchase.GatewayReference,
		BuyerID:         purchase.BuyerID,
		CourseID:        purchase.CourseID,
		AmountMinor:     txn.Amount,
		Currency:        purchase.Currency,
		GatewayChargeID: fmt.Sprintf("%d", txn.ID),
	}

	switch txn.Status {
	case "success":
		event.Type = enums.PaymentEventChargeSucceeded
		if paidAt, parseErr := time.Parse(time.RFC3339, txn.PaidAt); parseErr == nil {
			event.PaidAt = &paidAt
		}
	case "failed", "abandoned":
		event.Type = enums.PaymentEventChargeFailed
	default:
		// Still in flight at the gateway; nothing to reconcile yet.
		event.Type = enums.PaymentEventIgnored
	}
	return event, nil
}

func (s *Service) stripeEvent(ctx context.Context, purchase *models.Purchase) (*gateway.PaymentEvent, error) {
	if purchase.GatewayChargeID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase has no stripe session id")
	}
	session, err := s.stripe.GetCheckoutSession(ctx, *purchase.GatewayChargeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe session")
	}

	event := &gateway.PaymentEvent{
		Gateway:         enums.PaymentGatewayStripe,
		EventID:         fmt.Sprintf("verify:%s", purchase.GatewayReference),
		Reference:       purchase.GatewayReference,
		BuyerID:         purchase.BuyerID,
		CourseID:        purchase.CourseID,
		AmountMinor:     session.AmountTotal,
		Currency:        purchase.Currency,
		GatewayChargeID: session.ID,
	}

	switch {
	case session.Status == stripesdk.CheckoutSessionStatusComplete &&
		session.PaymentStatus == stripesdk.CheckoutSessionPaymentStatusPaid:
		event.Type = enums.PaymentEventChargeSucceeded
		now := time.Now().UTC()
		event.PaidAt = &now
	case session.Status == stripesdk.CheckoutSessionStatusExpired:
		event.Type = enums.PaymentEventSessionExpired
	default:
		event.Type = enums.PaymentEventIgnored
	}
	return event, nil
}
