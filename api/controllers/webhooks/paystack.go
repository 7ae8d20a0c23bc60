package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/daviskamau/learnhub-backend/api/responses"
	"github.com/daviskamau/learnhub-backend/internal/gateway"
	"github.com/daviskamau/learnhub-backend/internal/reconcile"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
	"github.com/daviskamau/learnhub-backend/pkg/metrics"
)

type Reconciler interface {
	Handle(ctx context.Context, event *gateway.PaymentEvent) (reconcile.Outcome, error)
}

type webhookGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// PaystackWebhook verifies, normalizes and reconciles Paystack charge events.
func PaystackWebhook(adapter *gateway.PaystackAdapter, svc Reconciler, guard webhookGuard, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	gw := string(enums.PaymentGatewayPaystack)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		if adapter == nil || svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		wm.IncReceived(gw)

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			wm.IncRejected(gw, "body_read")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(gateway.SignatureHeaderPaystack)
		if err := adapter.VerifySignature(payload, sigHeader); err != nil {
			var verr *gateway.VerificationError
			reason := "signature"
			if errors.As(err, &verr) {
				reason = verr.Reason
			}
			wm.IncRejected(gw, reason)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		event, err := adapter.Normalize(payload)
		if err != nil {
			wm.IncRejected(gw, "malformed_payload")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse payload"))
			return
		}

		alreadyProcessed, err := guard.Seen(ctx, event.EventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			wm.IncOutcome(gw, "duplicate")
			responses.WriteSuccess(w, map[string]string{"outcome": "duplicate"})
			return
		}

		outcome, err := svc.Handle(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Marked only after the reconciler commits; an unmarked redelivery
		// is absorbed by the status machine.
		if err := guard.Mark(ctx, event.EventID); err != nil && logg != nil {
			logg.Warn(ctx, "failed to mark paystack event "+event.EventID+" processed")
		}

		wm.IncOutcome(gw, string(outcome))
		wm.ObserveDuration(gw, time.Since(start))
		if logg != nil {
			ctx = logg.WithGatewayReference(ctx, event.Reference)
			logg.Info(ctx, "paystack event "+event.EventID+" processed: "+string(outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
