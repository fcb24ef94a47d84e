package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anupamdas/zevar-backend/api/responses"
	"github.com/anupamdas/zevar-backend/internal/payments"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/logger"
)

const razorpayConsumer = "razorpay-webhook"

type webhookService interface {
	HandleWebhook(ctx context.Context, event *payments.WebhookEvent) error
}

// Verifier checks the gateway signature over the raw request body.
type Verifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// Guard deduplicates webhook deliveries by gateway event id.
type Guard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Razorpay handles payment lifecycle events pushed by the gateway. Events are
// acknowledged with 200 even when they resolve to a no-op so the gateway stops
// retrying.
func Razorpay(svc webhookService, verifier Verifier, guard Guard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("X-Razorpay-Signature")
		if !verifier.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature"))
			return
		}

		var event payments.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := strings.TrimSpace(r.Header.Get("X-Razorpay-Event-Id"))
		if eventID != "" && guard != nil {
			alreadyProcessed, guardErr := guard.CheckAndMarkProcessed(ctx, razorpayConsumer, eventID)
			if guardErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, guardErr, "check idempotency"))
				return
			}
			if alreadyProcessed {
				responses.WriteSuccess(w, nil)
				return
			}
		}

		if err := svc.HandleWebhook(ctx, &event); err != nil {
			if eventID != "" && guard != nil {
				_ = guard.Delete(ctx, razorpayConsumer, eventID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("razorpay event %s processed", event.Event))
		}
		responses.WriteSuccess(w, nil)
	}
}
