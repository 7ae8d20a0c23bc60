// Package gateway normalizes payment-provider webhooks into a canonical
// event shape so the reconciler never sees provider-specific payloads.
package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/daviskamau/learnhub-backend/pkg/enums"
	"github.com/google/uuid"
)

// PaymentEvent is the canonical, gateway-agnostic webhook event.
// AmountMinor is in minor units of Currency as charged by the gateway.
type PaymentEvent struct {
	Gateway         enums.PaymentGateway
	Type            enums.PaymentEventType
	EventID         string
	Reference       string
	BuyerID         uuid.UUID
	CourseID        uuid.UUID
	AmountMinor     int64
	Currency        string
	GatewayChargeID string
	PaidAt          *time.Time
}

// HasPartyMetadata reports whether the event carries both the buyer and
// the course, either from gateway metadata or from the reference itself.
func (e *PaymentEvent) HasPartyMetadata() bool {
	if e == nil {
		return false
	}
	return e.BuyerID != uuid.Nil && e.CourseID != uuid.Nil
}

// Verification failure reasons.
const (
	ReasonMissingSignature    = "missing_signature"
	ReasonSecretNotConfigured = "secret_not_configured"
	ReasonMismatch            = "signature_mismatch"
	ReasonMalformedPayload    = "malformed_payload"
)

// VerificationError marks a webhook delivery that failed authentication.
// Deliveries carrying this error must be rejected with a 4xx, never
// acknowledged.
type VerificationError struct {
	Gateway enums.PaymentGateway
	Reason  string
	cause   error
}

func (e *VerificationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s webhook verification failed (%s): %v", e.Gateway, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s webhook verification failed (%s)", e.Gateway, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.cause
}

func newVerificationError(gw enums.PaymentGateway, reason string, cause error) *VerificationError {
	return &VerificationError{Gateway: gw, Reason: reason, cause: cause}
}

// BuildReference formats the internal payment reference embedded in
// gateway sessions: course_<courseID>_<userID>_<unixMillis>.
func BuildReference(courseID, userID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("course_%s_%s_%d", courseID, userID, at.UnixMilli())
}

// ParseReference recovers the course and buyer from an internal payment
// reference. It returns an error for references this platform did not mint.
func ParseReference(reference string) (courseID, userID uuid.UUID, err error) {
	parts := strings.Split(reference, "_")
	if len(parts) != 4 || parts[0] != "course" {
		return uuid.Nil, uuid.Nil, fmt.Errorf("unrecognized reference format %q", reference)
	}
	courseID, err = uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid course id in reference: %w", err)
	}
	userID, err = uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user id in reference: %w", err)
	}
	if _, err := strconv.ParseInt(parts[3], 10, 64); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid timestamp in reference: %w", err)
	}
	return courseID, userID, nil
}

// resolveParties fills buyer/course from metadata when present, falling
// back to the reference encoding. Missing parties leave uuid.Nil; the
// reconciler decides whether that matters for the event type.
func resolveParties(metadata map[string]string, reference string) (courseID, userID uuid.UUID) {
	if raw, ok := metadata["course_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			courseID = id
		}
	}
	if raw, ok := metadata["user_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			userID = id
		}
	}
	if courseID != uuid.Nil && userID != uuid.Nil {
		return courseID, userID
	}
	if c, u, err := ParseReference(reference); err == nil {
		if courseID == uuid.Nil {
			courseID = c
		}
		if userID == uuid.Nil {
			userID = u
		}
	}
	return courseID, userID
}
