package api

import (
	"context"

	"github.com/raine/listlift/internal/model"
)

// AccountPlan is the server's view of the user's plan and usage.
type AccountPlan struct {
	Plan                   model.Plan `json:"plan"`
	ProcessedListings      int        `json:"processed_listings"`
	ProcessedListingsLimit int        `json:"processed_listings_limit"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) AccountPlan(ctx context.Context, userID string) (AccountPlan, error) {
	var out AccountPlan
	res, err := c.req(ctx).
		SetPathParam("userId", userID).
		Get("/account/{userId}")
	err = decode(res, err, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	res, err := c.req(ctx).Get("/health")
	err = decode(res, err, &out)
	return out, err
}
