package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/daviskamau/learnhub-backend/pkg/enums"
)

// SignatureHeaderStripe is the header carrying Stripe's signed timestamp scheme.
const SignatureHeaderStripe = "Stripe-Signature"

// StripeAdapter verifies and normalizes Stripe webhook deliveries.
type StripeAdapter struct {
	signingSecret string
}

// NewStripeAdapter builds an adapter around the webhook signing secret.
func NewStripeAdapter(signingSecret string) *StripeAdapter {
	return &StripeAdapter{signingSecret: strings.TrimSpace(signingSecret)}
}

// VerifySignature validates the delivery against Stripe's signature scheme
// and returns the decoded event.
func (a *StripeAdapter) VerifySignature(payload []byte, signature string) (*stripe.Event, error) {
	if a == nil || a.signingSecret == "" {
		return nil, newVerificationError(enums.PaymentGatewayStripe, ReasonSecretNotConfigured, nil)
	}
	if strings.TrimSpace(signature) == "" {
		return nil, newVerificationError(enums.PaymentGatewayStripe, ReasonMissingSignature, nil)
	}

	event, err := webhook.ConstructEvent(payload, signature, a.signingSecret)
	if err != nil {
		return nil, newVerificationError(enums.PaymentGatewayStripe, ReasonMismatch, err)
	}
	return &event, nil
}

// Normalize maps a verified Stripe event to a canonical event. Event
// types the platform does not handle come back as Ignored.
func (a *StripeAdapter) Normalize(event *stripe.Event) (*PaymentEvent, error) {
	if event == nil || event.Data == nil {
		return nil, newVerificationError(enums.PaymentGatewayStripe, ReasonMalformedPayload, nil)
	}

	normalized := &PaymentEvent{
		Gateway: enums.PaymentGatewayStripe,
		EventID: event.ID,
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, newVerificationError(enums.PaymentGatewayStripe, ReasonMalformedPayload, err)
		}
		if event.Type == stripe.EventTypeCheckoutSessionCompleted {
			normalized.Type = enums.PaymentEventChargeSucceeded
			paidAt := time.Unix(event.Created, 0).UTC()
			normalized.PaidAt = &paidAt
		} else {
			normalized.Type = enums.PaymentEventSessionExpired
		}
		normalized.Reference = session.ClientReferenceID
		normalized.AmountMinor = session.AmountTotal
		normalized.Currency = strings.ToUpper(string(session.Currency))
		normalized.GatewayChargeID = session.ID
		normalized.CourseID, normalized.BuyerID = resolveParties(session.Metadata, session.ClientReferenceID)

	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, newVerificationError(enums.PaymentGatewayStripe, ReasonMalformedPayload, err)
		}
		normalized.Type = enums.PaymentEventChargeFailed
		normalized.Reference = intent.Metadata["reference"]
		normalized.AmountMinor = intent.Amount
		normalized.Currency = strings.ToUpper(string(intent.Currency))
		normalized.GatewayChargeID = intent.ID
		normalized.CourseID, normalized.BuyerID = resolveParties(intent.Metadata, normalized.Reference)

	default:
		normalized.Type = enums.PaymentEventIgnored
	}

	return normalized, nil
}
