// Package billing handles plan purchases and listing quota tracking.
package billing

import "context"

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomePending   Outcome = "pending"
)

// Transaction is the result of a purchase attempt. Payload and Signature
// carry the provider's signed receipt for verification.
type Transaction struct {
	ProductID string
	Outcome   Outcome
	Payload   []byte
	Signature string
}

// Provider runs the purchase sheet for a product.
type Provider interface {
	Purchase(ctx context.Context, productID string) (Transaction, error)
}
