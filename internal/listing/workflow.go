// Package listing drives an item through the listing flow: photos, label
// recognition, category and specifics, titles, pricing, then publish or
// export.
package listing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/analytics"
	"github.com/raine/listlift/internal/api"
	"github.com/raine/listlift/internal/export"
	"github.com/raine/listlift/internal/media"
	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/store"
)

// UserError is a flow failure with the message to show the user.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func userError(msg string, err error) error {
	return &UserError{Message: msg, Err: err}
}

// Store is the part of the state store the editor needs.
type Store interface {
	Item(ctx context.Context, id string) (model.Item, bool, error)
	UpsertItem(ctx context.Context, item model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, id string, fn func(*model.Item) error) (model.Item, error)
}

// API is the remote listing backend.
type API interface {
	SuggestCategories(ctx context.Context, item model.Item) ([]api.CategorySuggestion, error)
	CategorySpecifics(ctx context.Context, categoryID string) ([]model.Aspect, error)
	FetchComps(ctx context.Context, item model.Item, filters api.PricingFilters) (model.PricingSummary, error)
	GenerateTitles(ctx context.Context, item model.Item, tone model.TitleTone) ([]model.ListingText, error)
}

// PhotoProcessor turns a raw photo into a cleaned square one.
type PhotoProcessor interface {
	Process(data []byte) ([]byte, float64, error)
}

// QuotaTracker counts processed listings against the plan.
type QuotaTracker interface {
	TrackProcessedListing(ctx context.Context) (model.Quotas, error)
}

// Publisher lists an item on eBay.
type Publisher interface {
	Publish(ctx context.Context, itemID string, offer api.PublishOffer) (api.PublishResult, error)
}

// Exporter builds a listing kit for another marketplace.
type Exporter interface {
	Generate(ctx context.Context, itemID string, marketplace model.ExportMarketplace) (*export.Kit, error)
}

// Deps are the collaborators an Editor works with. Tracker may be nil.
type Deps struct {
	Store      Store
	API        API
	Photos     PhotoProcessor
	Recognizer media.TextRecognizer
	Quota      QuotaTracker
	Publisher  Publisher
	Exporter   Exporter
	Tracker    *analytics.Tracker
	PhotoDir   string
}

// Editor runs the listing flow for one item. Every failure is a *UserError.
type Editor struct {
	deps   Deps
	itemID string
}

// NewDraft stores a fresh item and returns an editor for it.
func NewDraft(ctx context.Context, deps Deps) (*Editor, error) {
	item, err := deps.Store.UpsertItem(ctx, model.NewItem(time.Now().UTC()))
	if err != nil {
		return nil, userError(MsgSaveFailed, err)
	}
	log.Info().Str("itemID", item.ID).Msg("created draft")
	return &Editor{deps: deps, itemID: item.ID}, nil
}

// Edit returns an editor for an existing item.
func Edit(deps Deps, itemID string) *Editor {
	return &Editor{deps: deps, itemID: itemID}
}

func (e *Editor) ItemID() string {
	return e.itemID
}

// Item returns the current stored item.
func (e *Editor) Item(ctx context.Context) (model.Item, error) {
	item, ok, err := e.deps.Store.Item(ctx, e.itemID)
	if err != nil {
		return model.Item{}, userError(MsgSaveFailed, err)
	}
	if !ok {
		return model.Item{}, userError(MsgSaveFailed, store.ErrItemNotFound)
	}
	return item, nil
}

func (e *Editor) update(ctx context.Context, msg string, fn func(*model.Item) error) (model.Item, error) {
	item, err := e.deps.Store.UpdateItem(ctx, e.itemID, fn)
	if err != nil {
		var ue *UserError
		if errors.As(err, &ue) {
			return model.Item{}, err
		}
		return model.Item{}, userError(msg, err)
	}
	return item, nil
}

// AddPhoto cleans data, counts it against the quota and appends it to the
// item's photos.
func (e *Editor) AddPhoto(ctx context.Context, data []byte) (model.Item, error) {
	cleaned, confidence, err := e.deps.Photos.Process(data)
	if err != nil {
		log.Warn().Err(err).Str("itemID", e.itemID).Msg("photo processing failed")
		return model.Item{}, userError(MsgPhotoFailed, err)
	}

	if _, err := e.deps.Quota.TrackProcessedListing(ctx); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			return model.Item{}, userError(MsgQuotaExceeded, err)
		}
		return model.Item{}, userError(MsgPhotoFailed, err)
	}
	e.deps.Tracker.Track(analytics.PhotoCleaned, map[string]any{"itemID": e.itemID, "confidence": confidence})

	cleanedURL, err := media.SaveFile(e.deps.PhotoDir, cleaned)
	if err != nil {
		return model.Item{}, userError(MsgPhotoFailed, err)
	}

	photo := model.NewPhotoAsset(cleanedURL, confidence)
	if thumb, err := media.Thumbnail(cleaned); err == nil {
		photo.ThumbnailData = thumb
	} else {
		log.Warn().Err(err).Str("itemID", e.itemID).Msg("failed to create thumbnail")
	}

	return e.update(ctx, MsgPhotoFailed, func(it *model.Item) error {
		it.Photos = append(it.Photos, photo)
		it.CleanedPhotos = append(it.CleanedPhotos, photo)
		return nil
	})
}

// RunOCR reads the label in data and fills brand, size and material.
func (e *Editor) RunOCR(ctx context.Context, data []byte) (media.LabelAttributes, error) {
	lines, err := e.deps.Recognizer.Recognize(ctx, data)
	if err != nil {
		log.Warn().Err(err).Str("itemID", e.itemID).Msg("label recognition failed")
		return media.LabelAttributes{}, userError(MsgOCRFailed, err)
	}
	attrs := media.ExtractAttributes(lines)

	_, err = e.update(ctx, MsgOCRFailed, func(it *model.Item) error {
		it.Brand = attrs.Brand
		it.Size = attrs.Size
		it.Material = attrs.Material
		return nil
	})
	if err != nil {
		return media.LabelAttributes{}, err
	}

	e.deps.Tracker.Track(analytics.OCRConfirmed, map[string]any{"itemID": e.itemID, "confidence": attrs.Confidence})
	return attrs, nil
}

// LoadCategories asks the backend for category suggestions.
func (e *Editor) LoadCategories(ctx context.Context) ([]api.CategorySuggestion, error) {
	item, err := e.Item(ctx)
	if err != nil {
		return nil, err
	}
	suggestions, err := e.deps.API.SuggestCategories(ctx, item)
	if err != nil {
		return nil, userError(MsgCategoriesFailed, err)
	}
	return suggestions, nil
}

// SelectCategory sets the category and replaces the aspects with its
// specifics.
func (e *Editor) SelectCategory(ctx context.Context, suggestion api.CategorySuggestion) (model.Item, error) {
	aspects, err := e.deps.API.CategorySpecifics(ctx, suggestion.CategoryID)
	if err != nil {
		return model.Item{}, userError(MsgSpecificsFailed, err)
	}

	item, err := e.update(ctx, MsgSpecificsFailed, func(it *model.Item) error {
		id := suggestion.CategoryID
		it.CategoryID = &id
		it.Aspects = aspects
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}

	e.deps.Tracker.Track(analytics.CategoryConfirmed, map[string]any{"itemID": e.itemID, "category": suggestion.CategoryPath})
	return item, nil
}

// UpdateAspect replaces the aspect with the same id. Unknown aspects are
// ignored.
func (e *Editor) UpdateAspect(ctx context.Context, aspect model.Aspect) (model.Item, error) {
	return e.update(ctx, MsgSaveFailed, func(it *model.Item) error {
		for i := range it.Aspects {
			if it.Aspects[i].ID == aspect.ID {
				it.Aspects[i] = aspect
				break
			}
		}
		return nil
	})
}

// SelectTitle points the selection at titleID, or clears it when titleID
// is nil.
func (e *Editor) SelectTitle(ctx context.Context, titleID *string) (model.Item, error) {
	return e.update(ctx, MsgSaveFailed, func(it *model.Item) error {
		it.SelectedTitleID = titleID
		return nil
	})
}

// SetPrice sets the user's asking price.
func (e *Editor) SetPrice(ctx context.Context, price float64) (model.Item, error) {
	if price <= 0 {
		return model.Item{}, userError(MsgInvalidPrice, nil)
	}
	item, err := e.update(ctx, MsgSaveFailed, func(it *model.Item) error {
		it.PriceSet = &price
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}
	e.deps.Tracker.Track(analytics.PriceSet, map[string]any{"itemID": e.itemID, "price": price})
	return item, nil
}

// GenerateTitles replaces the title options, selects the first one and
// takes its description.
func (e *Editor) GenerateTitles(ctx context.Context, tone model.TitleTone) (model.Item, error) {
	item, err := e.Item(ctx)
	if err != nil {
		return model.Item{}, err
	}
	options, err := e.deps.API.GenerateTitles(ctx, item, tone)
	if err != nil {
		return model.Item{}, userError(MsgTitlesFailed, err)
	}

	return e.update(ctx, MsgTitlesFailed, func(it *model.Item) error {
		it.TitleOptions = options
		it.SelectedTitleID = nil
		if len(options) > 0 {
			id := options[0].ID
			it.SelectedTitleID = &id
			it.Description = options[0].Description
		}
		return nil
	})
}

// ChooseTitle selects an existing title option and takes its description.
func (e *Editor) ChooseTitle(ctx context.Context, titleID string) (model.Item, error) {
	return e.update(ctx, MsgSaveFailed, func(it *model.Item) error {
		for _, opt := range it.TitleOptions {
			if opt.ID == titleID {
				id := opt.ID
				it.SelectedTitleID = &id
				it.Description = opt.Description
				return nil
			}
		}
		return userError(MsgUnknownTitle, nil)
	})
}

// FetchComps looks up comparable listings and stores the price band.
func (e *Editor) FetchComps(ctx context.Context, filters api.PricingFilters) (model.PricingSummary, error) {
	item, err := e.Item(ctx)
	if err != nil {
		return model.PricingSummary{}, err
	}
	summary, err := e.deps.API.FetchComps(ctx, item, filters)
	if err != nil {
		return model.PricingSummary{}, userError(MsgCompsFailed, err)
	}

	_, err = e.update(ctx, MsgCompsFailed, func(it *model.Item) error {
		band := summary.PriceBand
		it.PriceSuggested = &band
		return nil
	})
	if err != nil {
		return model.PricingSummary{}, err
	}

	e.deps.Tracker.Track(analytics.CompsViewed, map[string]any{"itemID": e.itemID, "count": len(summary.Items)})
	return summary, nil
}

// Publish lists the item on eBay with offer.
func (e *Editor) Publish(ctx context.Context, offer api.PublishOffer) (api.PublishResult, error) {
	if item, err := e.Item(ctx); err != nil {
		return api.PublishResult{}, err
	} else if item.CategoryID == nil {
		return api.PublishResult{}, userError(MsgNoCategorySelected, nil)
	}

	result, err := e.deps.Publisher.Publish(ctx, e.itemID, offer)
	if err != nil {
		log.Warn().Err(err).Str("itemID", e.itemID).Msg("publish failed")
		return api.PublishResult{}, userError(MsgPublishFailed, err)
	}
	e.deps.Tracker.Track(analytics.PublishedSuccess, map[string]any{"itemID": e.itemID, "listingID": result.ListingID})
	return result, nil
}

// Export builds a listing kit for marketplace.
func (e *Editor) Export(ctx context.Context, marketplace model.ExportMarketplace) (*export.Kit, error) {
	kit, err := e.deps.Exporter.Generate(ctx, e.itemID, marketplace)
	if err != nil {
		return nil, userError(MsgExportFailed, err)
	}
	e.deps.Tracker.Track(analytics.ExportUsed, map[string]any{"itemID": e.itemID, "marketplace": string(marketplace)})
	return kit, nil
}
