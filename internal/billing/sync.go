package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/api"
	"github.com/raine/listlift/internal/model"
)

// PlanSource reports the backend's view of an account.
type PlanSource interface {
	AccountPlan(ctx context.Context, userID string) (api.AccountPlan, error)
}

// SyncPlan adopts the plan the backend has on record for this user. The
// local usage counter never goes down: the higher of the two counts is kept.
func (s *Service) SyncPlan(ctx context.Context, remote PlanSource) (model.Account, error) {
	account, err := s.store.Account(ctx)
	if err != nil {
		return model.Account{}, err
	}

	server, err := remote.AccountPlan(ctx, account.UserID)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to fetch account plan: %w", err)
	}
	if !server.Plan.Valid() {
		return model.Account{}, fmt.Errorf("%w: %q", ErrUnknownPlan, server.Plan)
	}

	synced, err := s.store.UpdateAccount(ctx, func(a *model.Account) error {
		used := max(a.Quotas.ProcessedListings, server.ProcessedListings)
		*a = a.WithPlan(server.Plan)
		a.Quotas.ProcessedListings = used
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}

	if synced.Plan != account.Plan {
		log.Info().Str("from", string(account.Plan)).Str("to", string(synced.Plan)).Msg("plan synced from backend")
	}
	return synced, nil
}
