package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviskamau/learnhub-backend/pkg/enums"
)

func signPaystack(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackAdapter_VerifySignature(t *testing.T) {
	adapter := NewPaystackAdapter("sk_test_secret")
	payload := []byte(`{"event":"charge.success"}`)

	t.Run("accepts valid signature", func(t *testing.T) {
		require.NoError(t, adapter.VerifySignature(payload, signPaystack("sk_test_secret", payload)))
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		signature := signPaystack("sk_test_secret", payload)
		err := adapter.VerifySignature([]byte(`{"event":"charge.success","amount":1}`), signature)
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonMismatch, verr.Reason)
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		err := adapter.VerifySignature(payload, "")
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonMissingSignature, verr.Reason)
	})

	t.Run("rejects when secret not configured", func(t *testing.T) {
		err := NewPaystackAdapter("").VerifySignature(payload, signPaystack("sk_test_secret", payload))
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonSecretNotConfigured, verr.Reason)
	})
}

func TestPaystackAdapter_Normalize_ChargeSuccess(t *testing.T) {
	adapter := NewPaystackAdapter("secret")
	courseID := uuid.New()
	userID := uuid.New()
	reference := BuildReference(courseID, userID, time.UnixMilli(1000))

	payload := []byte(fmt.Sprintf(`{
		"event": "charge.success",
		"data": {
			"id": 4242,
			"reference": %q,
			"amount": 15840000,
			"currency": "NGN",
			"paid_at": "2026-08-01T12:00:00Z",
			"metadata": {"course_id": %q, "user_id": %q}
		}
	}`, reference, courseID, userID))

	event, err := adapter.Normalize(payload)
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentGatewayPaystack, event.Gateway)
	assert.Equal(t, enums.PaymentEventChargeSucceeded, event.Type)
	assert.Equal(t, reference, event.Reference)
	assert.Equal(t, int64(15840000), event.AmountMinor)
	assert.Equal(t, "NGN", event.Currency)
	assert.Equal(t, "4242", event.GatewayChargeID)
	assert.Equal(t, courseID, event.CourseID)
	assert.Equal(t, userID, event.BuyerID)
	require.NotNil(t, event.PaidAt)
	assert.True(t, event.HasPartyMetadata())
}

func TestPaystackAdapter_Normalize_FallsBackToReference(t *testing.T) {
	adapter := NewPaystackAdapter("secret")
	courseID := uuid.New()
	userID := uuid.New()
	reference := BuildReference(courseID, userID, time.UnixMilli(99))

	payload := []byte(fmt.Sprintf(`{
		"event": "charge.failed",
		"data": {"id": 1, "reference": %q, "amount": 158400, "currency": "ngn"}
	}`, reference))

	event, err := adapter.Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentEventChargeFailed, event.Type)
	assert.Equal(t, courseID, event.CourseID)
	assert.Equal(t, userID, event.BuyerID)
	assert.Equal(t, "NGN", event.Currency)
}

func TestPaystackAdapter_Normalize_UnknownEventIgnored(t *testing.T) {
	adapter := NewPaystackAdapter("secret")
	event, err := adapter.Normalize([]byte(`{"event":"transfer.success","data":{"id":1}}`))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentEventIgnored, event.Type)
}

func TestPaystackAdapter_Normalize_MalformedPayload(t *testing.T) {
	adapter := NewPaystackAdapter("secret")
	_, err := adapter.Normalize([]byte(`not json`))
	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonMalformedPayload, verr.Reason)
}

func TestParseReference(t *testing.T) {
	courseID := uuid.New()
	userID := uuid.New()

	gotCourse, gotUser, err := ParseReference(BuildReference(courseID, userID, time.UnixMilli(1700000000000)))
	require.NoError(t, err)
	assert.Equal(t, courseID, gotCourse)
	assert.Equal(t, userID, gotUser)

	_, _, err = ParseReference("cs_test_a1b2c3")
	require.Error(t, err)

	_, _, err = ParseReference("course_nope_nope_123")
	require.Error(t, err)
}
