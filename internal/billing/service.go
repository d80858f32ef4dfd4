package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/store"
)

var (
	ErrUnknownPlan           = errors.New("unknown plan")
	ErrUserCancelled         = errors.New("purchase cancelled")
	ErrPending               = errors.New("purchase pending approval")
	ErrUnverifiedTransaction = errors.New("transaction could not be verified")
	ErrQuotaExceeded         = store.ErrQuotaExceeded
)

// AccountStore is the subset of the state store billing writes to.
type AccountStore interface {
	Account(ctx context.Context) (model.Account, error)
	UpdateAccount(ctx context.Context, fn func(*model.Account) error) (model.Account, error)
	ChangePlan(ctx context.Context, plan model.Plan) (model.Account, error)
	RecordProcessedListing(ctx context.Context) (model.Quotas, error)
}

type Service struct {
	provider Provider
	verifier Verifier
	store    AccountStore
}

func NewService(provider Provider, verifier Verifier, st AccountStore) *Service {
	return &Service{provider: provider, verifier: verifier, store: st}
}

// Purchase buys plan and switches the account to it once the transaction
// is verified.
func (s *Service) Purchase(ctx context.Context, plan model.Plan) (model.Account, error) {
	productID := plan.ProductID()
	if _, ok := model.PlanForProductID(productID); !ok {
		return model.Account{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}

	tx, err := s.provider.Purchase(ctx, productID)
	if err != nil {
		return model.Account{}, fmt.Errorf("purchase failed: %w", err)
	}

	switch tx.Outcome {
	case OutcomeCancelled:
		return model.Account{}, ErrUserCancelled
	case OutcomePending:
		return model.Account{}, ErrPending
	case OutcomeSuccess:
	default:
		return model.Account{}, fmt.Errorf("unexpected purchase outcome %q", tx.Outcome)
	}

	if tx.ProductID != productID {
		return model.Account{}, fmt.Errorf("%w: got product %q", ErrUnverifiedTransaction, tx.ProductID)
	}
	if err := s.verifier.Verify(ctx, tx); err != nil {
		log.Warn().Err(err).Str("productID", productID).Msg("rejected purchase")
		return model.Account{}, fmt.Errorf("%w: %v", ErrUnverifiedTransaction, err)
	}

	account, err := s.store.ChangePlan(ctx, plan)
	if err != nil {
		return model.Account{}, err
	}

	log.Info().Str("plan", string(plan)).Int("limit", account.Quotas.ProcessedListingsLimit).Msg("plan changed")
	return account, nil
}

// TrackProcessedListing counts one processed listing. It returns
// ErrQuotaExceeded without counting when the plan limit is reached.
func (s *Service) TrackProcessedListing(ctx context.Context) (model.Quotas, error) {
	return s.store.RecordProcessedListing(ctx)
}
