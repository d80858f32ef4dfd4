package ebay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/api"
	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/store"
)

// refreshThreshold is how close to expiry a token gets refreshed.
const refreshThreshold = 5 * time.Minute

type PublisherOpts struct {
	ClientID    string
	RedirectURI string
	Now         func() time.Time
}

// Publisher holds the OAuth and publishing flows. Credentials live in the
// account record of the state store.
type Publisher struct {
	api         MarketplaceAPI
	store       StateStore
	clientID    string
	redirectURI string
	now         func() time.Time
}

func NewPublisher(client MarketplaceAPI, st StateStore, opts PublisherOpts) *Publisher {
	p := &Publisher{
		api:         client,
		store:       st,
		clientID:    opts.ClientID,
		redirectURI: opts.RedirectURI,
		now:         opts.Now,
	}
	if p.clientID == "" {
		p.clientID = "LISTLIFT"
	}
	if p.redirectURI == "" {
		p.redirectURI = CallbackScheme + "://auth"
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	return p
}

// SignIn runs the consent flow through browser and stores the resulting
// credentials.
func (p *Publisher) SignIn(ctx context.Context, browser Browser) (model.EbayAuth, error) {
	state, err := newState()
	if err != nil {
		return model.EbayAuth{}, err
	}

	callback, err := browser.Authenticate(ctx, AuthorizeURL(p.clientID, p.redirectURI, state), CallbackScheme)
	if err != nil {
		return model.EbayAuth{}, err
	}

	code, err := parseCallback(callback, state)
	if err != nil {
		return model.EbayAuth{}, err
	}

	token, err := p.api.ExchangeCode(ctx, code)
	if err != nil {
		return model.EbayAuth{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	auth := model.EbayAuth{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    p.now().Add(time.Duration(token.ExpiresIn) * time.Second),
		Scope:        []string(token.Scope),
		SiteID:       DefaultSiteID,
	}
	if err := p.setAuth(ctx, &auth); err != nil {
		return model.EbayAuth{}, err
	}

	log.Info().Strs("scope", auth.Scope).Time("expiresAt", auth.ExpiresAt).Msg("linked eBay account")
	return auth, nil
}

// RefreshIfNeeded refreshes the access token when it expires within five
// minutes. It does nothing when no account is linked.
func (p *Publisher) RefreshIfNeeded(ctx context.Context) error {
	account, err := p.store.Account(ctx)
	if err != nil {
		return err
	}
	current := account.EbayAuth
	if current == nil || !current.ExpiresWithin(refreshThreshold, p.now()) {
		return nil
	}

	refreshed, err := p.api.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh eBay token: %w", err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	if refreshed.SiteID == "" {
		refreshed.SiteID = current.SiteID
	}
	if refreshed.Scope == nil {
		refreshed.Scope = current.Scope
	}

	log.Debug().Time("expiresAt", refreshed.ExpiresAt).Msg("refreshed eBay token")
	return p.setAuth(ctx, &refreshed)
}

// Publish lists the item on eBay and marks it published.
func (p *Publisher) Publish(ctx context.Context, itemID string, offer api.PublishOffer) (api.PublishResult, error) {
	account, err := p.store.Account(ctx)
	if err != nil {
		return api.PublishResult{}, err
	}
	if account.EbayAuth == nil {
		return api.PublishResult{}, ErrNotAuthenticated
	}
	if err := p.RefreshIfNeeded(ctx); err != nil {
		return api.PublishResult{}, err
	}

	item, ok, err := p.store.Item(ctx, itemID)
	if err != nil {
		return api.PublishResult{}, err
	}
	if !ok {
		return api.PublishResult{}, fmt.Errorf("publish %s: %w", itemID, store.ErrItemNotFound)
	}
	if !item.RequiredAspectsComplete() {
		return api.PublishResult{}, ErrMissingSpecifics
	}

	result, err := p.api.Publish(ctx, item, offer)
	if err != nil {
		return api.PublishResult{}, fmt.Errorf("failed to publish listing: %w", err)
	}

	if _, err := p.store.UpdateItem(ctx, itemID, func(it *model.Item) error {
		it.MarketplaceStatus.Ebay = model.StatusPublished
		return nil
	}); err != nil {
		// The listing exists on eBay even if the local write failed
		return result, fmt.Errorf("published %s but failed to record status: %w", result.ListingID, err)
	}

	log.Info().Str("itemID", itemID).Str("listingID", result.ListingID).Msg("published listing")
	return result, nil
}

// SignOut forgets the linked account.
func (p *Publisher) SignOut(ctx context.Context) error {
	_, err := p.store.UpdateAccount(ctx, func(a *model.Account) error {
		a.EbayAuth = nil
		return nil
	})
	return err
}

// RefreshPolicies replaces the cached business policies.
func (p *Publisher) RefreshPolicies(ctx context.Context, policies model.PoliciesCache) error {
	_, err := p.store.UpdateAccount(ctx, func(a *model.Account) error {
		a.PoliciesCache = policies
		return nil
	})
	return err
}

// DefaultOffer fills an offer from the item price and the first cached policy
// of each kind.
func DefaultOffer(item model.Item, policies model.PoliciesCache) (api.PublishOffer, error) {
	offer := api.PublishOffer{Quantity: 1}
	if item.PriceSet != nil {
		offer.Price = *item.PriceSet
	} else if item.PriceSuggested != nil {
		offer.Price = item.PriceSuggested.Median
	}

	var missing []string
	if len(policies.ShippingPolicies) > 0 {
		offer.ShippingPolicyID = policies.ShippingPolicies[0].ID
	} else {
		missing = append(missing, "shipping")
	}
	if len(policies.PaymentPolicies) > 0 {
		offer.PaymentPolicyID = policies.PaymentPolicies[0].ID
	} else {
		missing = append(missing, "payment")
	}
	if len(policies.ReturnPolicies) > 0 {
		offer.ReturnPolicyID = policies.ReturnPolicies[0].ID
	} else {
		missing = append(missing, "return")
	}
	if len(missing) > 0 {
		return offer, fmt.Errorf("no cached %s policy", strings.Join(missing, ", "))
	}
	if offer.Price <= 0 {
		return offer, fmt.Errorf("item has no price")
	}
	return offer, nil
}

func (p *Publisher) setAuth(ctx context.Context, auth *model.EbayAuth) error {
	_, err := p.store.UpdateAccount(ctx, func(a *model.Account) error {
		a.EbayAuth = auth
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store eBay credentials: %w", err)
	}
	return nil
}
