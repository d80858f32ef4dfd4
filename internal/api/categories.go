package api

import (
	"context"

	"github.com/raine/listlift/internal/model"
)

// CategorySuggestion is one candidate marketplace category.
type CategorySuggestion struct {
	CategoryID   string  `json:"category_id"`
	CategoryPath string  `json:"category_path"`
	Confidence   float64 `json:"confidence"`
}

type suggestionRequest struct {
	Title   string         `json:"title"`
	Aspects []model.Aspect `json:"aspects"`
}

// SuggestCategories asks the backend for categories matching the item. The
// selected title is used as the query, falling back to the brand.
func (c *Client) SuggestCategories(ctx context.Context, item model.Item) ([]CategorySuggestion, error) {
	title := item.Brand
	if t, ok := item.SelectedTitle(); ok {
		title = t.Title
	}
	aspects := item.Aspects
	if aspects == nil {
		aspects = []model.Aspect{}
	}

	var out []CategorySuggestion
	res, err := c.req(ctx).
		SetBody(suggestionRequest{Title: title, Aspects: aspects}).
		Post("/categories/suggest")
	err = decode(res, err, &out)
	return out, err
}

// CategorySpecifics returns the item specifics the category asks for.
func (c *Client) CategorySpecifics(ctx context.Context, categoryID string) ([]model.Aspect, error) {
	var out []model.Aspect
	res, err := c.req(ctx).
		SetPathParam("categoryId", categoryID).
		Get("/categories/{categoryId}/specifics")
	err = decode(res, err, &out)
	return out, err
}
