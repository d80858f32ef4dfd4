package api

import (
	"context"

	"github.com/raine/listlift/internal/model"
)

type titleRequest struct {
	ItemID    string          `json:"item_id"`
	Tone      model.TitleTone `json:"tone"`
	Brand     string          `json:"brand"`
	Size      string          `json:"size"`
	Material  string          `json:"material"`
	Condition string          `json:"condition"`
	Aspects   []model.Aspect  `json:"aspects"`
}

// GenerateTitles returns title and description candidates in the given tone.
func (c *Client) GenerateTitles(ctx context.Context, item model.Item, tone model.TitleTone) ([]model.ListingText, error) {
	aspects := item.Aspects
	if aspects == nil {
		aspects = []model.Aspect{}
	}

	var out []model.ListingText
	res, err := c.req(ctx).
		SetBody(titleRequest{
			ItemID:    item.ID,
			Tone:      tone,
			Brand:     item.Brand,
			Size:      item.Size,
			Material:  item.Material,
			Condition: string(item.Condition),
			Aspects:   aspects,
		}).
		Post("/titles/generate")
	err = decode(res, err, &out)
	return out, err
}
