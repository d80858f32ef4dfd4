package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Verifier checks that a successful transaction is genuine.
type Verifier interface {
	Verify(ctx context.Context, tx Transaction) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, tx Transaction) error

func (f VerifierFunc) Verify(ctx context.Context, tx Transaction) error {
	return f(ctx, tx)
}

// StripeVerifier checks transactions that carry a signed Stripe
// checkout.session.completed event.
type StripeVerifier struct {
	WebhookSecret string
}

func (v StripeVerifier) Verify(ctx context.Context, tx Transaction) error {
	if v.WebhookSecret == "" {
		return errors.New("stripe webhook secret not configured")
	}

	event, err := webhook.ConstructEventWithOptions(
		tx.Payload,
		tx.Signature,
		v.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return fmt.Errorf("unexpected event type %q", event.Type)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("invalid session payload: %w", err)
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return errors.New("checkout session is unpaid")
	}
	if got := sess.Metadata["product_id"]; got != tx.ProductID {
		return fmt.Errorf("session is for product %q, not %q", got, tx.ProductID)
	}
	return nil
}
