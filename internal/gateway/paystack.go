package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/daviskamau/learnhub-backend/pkg/enums"
	"github.com/google/uuid"
)

// SignatureHeaderPaystack is the header carrying the HMAC of the raw body.
const SignatureHeaderPaystack = "x-paystack-signature"

const (
	paystackEventChargeSuccess = "charge.success"
	paystackEventChargeFailed  = "charge.failed"
)

// PaystackAdapter verifies and normalizes Paystack webhook deliveries.
type PaystackAdapter struct {
	secret string
}

// NewPaystackAdapter builds an adapter around the webhook signing secret.
func NewPaystackAdapter(secret string) *PaystackAdapter {
	return &PaystackAdapter{secret: strings.TrimSpace(secret)}
}

// VerifySignature checks the HMAC-SHA512 hex digest of the raw body
// against the delivery header. The comparison is constant time.
func (a *PaystackAdapter) VerifySignature(payload []byte, signature string) error {
	if a == nil || a.secret == "" {
		return newVerificationError(enums.PaymentGatewayPaystack, ReasonSecretNotConfigured, nil)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return newVerificationError(enums.PaymentGatewayPaystack, ReasonMissingSignature, nil)
	}

	mac := hmac.New(sha512.New, []byte(a.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return newVerificationError(enums.PaymentGatewayPaystack, ReasonMismatch, nil)
	}
	return nil
}

type paystackEnvelope struct {
	Event string       `json:"event"`
	Data  paystackData `json:"data"`
}

type paystackData struct {
	ID        int64          `json:"id"`
	Reference string         `json:"reference"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	PaidAt    string         `json:"paid_at"`
	Metadata  map[string]any `json:"metadata"`
}

// Normalize maps a verified Paystack payload to a canonical event.
// Event types the platform does not handle come back as Ignored.
func (a *PaystackAdapter) Normalize(payload []byte) (*PaymentEvent, error) {
	var envelope paystackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, newVerificationError(enums.PaymentGatewayPaystack, ReasonMalformedPayload, err)
	}

	event := &PaymentEvent{
		Gateway:         enums.PaymentGatewayPaystack,
		Reference:       envelope.Data.Reference,
		AmountMinor:     envelope.Data.Amount,
		Currency:        strings.ToUpper(envelope.Data.Currency),
		GatewayChargeID: fmt.Sprintf("%d", envelope.Data.ID),
	}
	event.EventID = fmt.Sprintf("%s:%s:%s", enums.PaymentGatewayPaystack, envelope.Event, envelope.Data.Reference)

	switch envelope.Event {
	case paystackEventChargeSuccess:
		event.Type = enums.PaymentEventChargeSucceeded
	case paystackEventChargeFailed:
		event.Type = enums.PaymentEventChargeFailed
	default:
		event.Type = enums.PaymentEventIgnored
		return event, nil
	}

	if envelope.Data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, envelope.Data.PaidAt); err == nil {
			event.PaidAt = &paidAt
		}
	}

	event.CourseID, event.BuyerID = resolvePartiesAny(envelope.Data.Metadata, envelope.Data.Reference)
	return event, nil
}

// Paystack metadata values arrive untyped; only string values are usable
// as identifiers.
func resolvePartiesAny(metadata map[string]any, reference string) (courseID, userID uuid.UUID) {
	flat := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if s, ok := value.(string); ok {
			flat[key] = s
		}
	}
	return resolveParties(flat, reference)
}
