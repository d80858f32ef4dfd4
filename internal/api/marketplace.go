package api

import (
	"context"

	"github.com/raine/listlift/internal/model"
)

// TokenResponse is the result of exchanging an authorization code.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	Scope                 Scopes `json:"scope"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
}

type refreshResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    Timestamp `json:"expires_at"`
	Scope        Scopes    `json:"scope"`
	SiteID       string    `json:"site_id"`
}

// PublishOffer is the pricing and policy part of a publish request.
type PublishOffer struct {
	Price            float64 `json:"price"`
	Quantity         int     `json:"quantity"`
	ShippingPolicyID string  `json:"shipping_policy_id"`
	PaymentPolicyID  string  `json:"payment_policy_id"`
	ReturnPolicyID   string  `json:"return_policy_id"`
}

// PublishResult identifies the created marketplace listing.
type PublishResult struct {
	ListingID  string `json:"listing_id"`
	ListingURL string `json:"listing_url"`
	Status     string `json:"status"`
}

type publishItem struct {
	ID         string         `json:"id"`
	Brand      string         `json:"brand"`
	Size       string         `json:"size"`
	Material   string         `json:"material"`
	Condition  string         `json:"condition"`
	CategoryID *string        `json:"category_id"`
	Aspects    []model.Aspect `json:"aspects"`
}

type publishRequest struct {
	Item  publishItem  `json:"item"`
	Offer PublishOffer `json:"offer"`
}

// ExchangeCode trades an OAuth authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenResponse, error) {
	var out TokenResponse
	res, err := c.req(ctx).
		SetBody(map[string]string{"code": code}).
		Post("/ebay/oauth/token")
	err = decode(res, err, &out)
	return out, err
}

// RefreshToken obtains a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (model.EbayAuth, error) {
	var out refreshResponse
	res, err := c.req(ctx).
		SetBody(map[string]string{"refresh_token": refreshToken}).
		Post("/ebay/oauth/refresh")
	if err := decode(res, err, &out); err != nil {
		return model.EbayAuth{}, err
	}
	return model.EbayAuth{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    out.ExpiresAt.Time,
		Scope:        []string(out.Scope),
		SiteID:       out.SiteID,
	}, nil
}

// Publish creates a marketplace listing for the item.
func (c *Client) Publish(ctx context.Context, item model.Item, offer PublishOffer) (PublishResult, error) {
	aspects := item.Aspects
	if aspects == nil {
		aspects = []model.Aspect{}
	}

	var out PublishResult
	res, err := c.req(ctx).
		SetBody(publishRequest{
			Item: publishItem{
				ID:         item.ID,
				Brand:      item.Brand,
				Size:       item.Size,
				Material:   item.Material,
				Condition:  string(item.Condition),
				CategoryID: item.CategoryID,
				Aspects:    aspects,
			},
			Offer: offer,
		}).
		Post("/ebay/publish")
	err = decode(res, err, &out)
	return out, err
}
