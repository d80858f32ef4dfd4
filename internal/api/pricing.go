package api

import (
	"context"

	"github.com/raine/listlift/internal/model"
)

type ShippingOption string

const (
	ShippingFree ShippingOption = "free"
	ShippingPaid ShippingOption = "paid"
)

// PricingFilters narrow the comparable listings search.
type PricingFilters struct {
	Condition *string         `json:"condition"`
	Size      *string         `json:"size"`
	Shipping  *ShippingOption `json:"shipping"`
	Location  *string         `json:"location"`
}

type pricingRequest struct {
	ItemID     string         `json:"item_id"`
	CategoryID *string        `json:"category_id"`
	Condition  string         `json:"condition"`
	Filters    PricingFilters `json:"filters"`
}

// FetchComps returns comparable listings and the derived price band.
func (c *Client) FetchComps(ctx context.Context, item model.Item, filters PricingFilters) (model.PricingSummary, error) {
	var out model.PricingSummary
	res, err := c.req(ctx).
		SetBody(pricingRequest{
			ItemID:     item.ID,
			CategoryID: item.CategoryID,
			Condition:  string(item.Condition),
			Filters:    filters,
		}).
		Post("/pricing/comps")
	err = decode(res, err, &out)
	return out, err
}
