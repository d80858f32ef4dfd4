package ebay

import (
	"context"

	"github.com/raine/listlift/internal/api"
	"github.com/raine/listlift/internal/model"
)

// MarketplaceAPI is the subset of the backend client used for OAuth and publishing.
type MarketplaceAPI interface {
	ExchangeCode(ctx context.Context, code string) (api.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (model.EbayAuth, error)
	Publish(ctx context.Context, item model.Item, offer api.PublishOffer) (api.PublishResult, error)
}

// StateStore is the subset of the local state store the publisher writes to.
type StateStore interface {
	Account(ctx context.Context) (model.Account, error)
	UpdateAccount(ctx context.Context, fn func(*model.Account) error) (model.Account, error)
	Item(ctx context.Context, id string) (model.Item, bool, error)
	UpdateItem(ctx context.Context, id string, fn func(*model.Item) error) (model.Item, error)
}

// Browser runs the interactive part of the OAuth flow. It opens authURL and
// returns the URL the provider redirected to once it uses callbackScheme.
// It returns ErrCancelled if the user gave up.
type Browser interface {
	Authenticate(ctx context.Context, authURL, callbackScheme string) (string, error)
}
