// Package model contains the value types persisted and exchanged by the
// ListLift client: items being prepared for sale and the single account record.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Item is one prospective or published listing.
type Item struct {
	ID                string            `json:"id"`
	Photos            []PhotoAsset      `json:"photos"`
	CleanedPhotos     []PhotoAsset      `json:"cleaned_photos"`
	Brand             string            `json:"brand"`
	Size              string            `json:"size"`
	Material          string            `json:"material"`
	Condition         Condition         `json:"condition"`
	Measurements      []Measurement     `json:"measurements"`
	CategoryID        *string           `json:"category_id,omitempty"`
	Aspects           []Aspect          `json:"aspects"`
	TitleOptions      []ListingText     `json:"title_options"`
	SelectedTitleID   *string           `json:"selected_title_id,omitempty"`
	Description       string            `json:"description"`
	PriceSuggested    *PriceBand        `json:"price_suggested,omitempty"`
	PriceSet          *float64          `json:"price_set,omitempty"`
	MarketplaceStatus MarketplaceStatus `json:"marketplace_status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewItem returns an empty draft item with a fresh identifier.
func NewItem(now time.Time) Item {
	return Item{
		ID:                uuid.New().String(),
		Condition:         ConditionPreOwned,
		MarketplaceStatus: NewMarketplaceStatus(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SelectedTitle returns the title option referenced by SelectedTitleID.
// A nil or dangling reference reports no selection.
func (it Item) SelectedTitle() (ListingText, bool) {
	if it.SelectedTitleID == nil {
		return ListingText{}, false
	}
	for _, t := range it.TitleOptions {
		if t.ID == *it.SelectedTitleID {
			return t, true
		}
	}
	return ListingText{}, false
}

// RequiredAspectsComplete reports whether every required aspect has a value.
func (it Item) RequiredAspectsComplete() bool {
	for _, a := range it.Aspects {
		if a.IsRequired && a.Value == "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the item. Nil slices stay nil.
func (it Item) Clone() Item {
	out := it
	out.Photos = clonePhotos(it.Photos)
	out.CleanedPhotos = clonePhotos(it.CleanedPhotos)
	out.Measurements = cloneSlice(it.Measurements)
	out.CategoryID = clonePtr(it.CategoryID)
	out.Aspects = CloneAspects(it.Aspects)
	out.TitleOptions = cloneSlice(it.TitleOptions)
	out.SelectedTitleID = clonePtr(it.SelectedTitleID)
	out.PriceSuggested = clonePtr(it.PriceSuggested)
	out.PriceSet = clonePtr(it.PriceSet)
	out.MarketplaceStatus.Exports = cloneExports(it.MarketplaceStatus.Exports)
	return out
}

// Measurement is a named measurement such as "Chest: 52cm".
type Measurement struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Aspect is an item specific requested by the marketplace category.
type Aspect struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Value      string   `json:"value"`
	IsRequired bool     `json:"is_required"`
	Options    []string `json:"options"`
}

// CloneAspects deep copies a list of aspects.
func CloneAspects(in []Aspect) []Aspect {
	if in == nil {
		return nil
	}
	out := make([]Aspect, len(in))
	for i, a := range in {
		a.Options = cloneSlice(a.Options)
		out[i] = a
	}
	return out
}

// ListingText is one generated title and description candidate.
type ListingText struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Tone         TitleTone `json:"tone"`
	QualityScore float64   `json:"quality_score"`
}

// MarketplaceStatus tracks where the item is listed and exported.
type MarketplaceStatus struct {
	Ebay    ListingStatus  `json:"ebay"`
	Etsy    ListingStatus  `json:"etsy"`
	Exports []ExportStatus `json:"exports"`
}

// NewMarketplaceStatus returns draft statuses with no exports.
func NewMarketplaceStatus() MarketplaceStatus {
	return MarketplaceStatus{Ebay: StatusDraft, Etsy: StatusDraft}
}

// ExportStatus records the last time a listing kit was generated for a marketplace.
type ExportStatus struct {
	ID             string            `json:"id"`
	Marketplace    ExportMarketplace `json:"marketplace"`
	LastExportedAt *time.Time        `json:"last_exported_at,omitempty"`
}

// MarkExported sets the export timestamp for marketplace, appending a record
// the first time the marketplace is exported.
func (m *MarketplaceStatus) MarkExported(marketplace ExportMarketplace, at time.Time) {
	for i := range m.Exports {
		if m.Exports[i].Marketplace == marketplace {
			m.Exports[i].LastExportedAt = &at
			return
		}
	}
	m.Exports = append(m.Exports, ExportStatus{
		ID:             uuid.New().String(),
		Marketplace:    marketplace,
		LastExportedAt: &at,
	})
}

// LastExport returns the export record for marketplace, if any.
func (m MarketplaceStatus) LastExport(marketplace ExportMarketplace) (ExportStatus, bool) {
	for _, e := range m.Exports {
		if e.Marketplace == marketplace {
			return e, true
		}
	}
	return ExportStatus{}, false
}

// PriceBand is the suggested price range derived from comparable listings.
type PriceBand struct {
	ResultsCount int        `json:"results_count"`
	Median       float64    `json:"median"`
	IQR          float64    `json:"iqr"`
	SuggestedMin float64    `json:"suggested_min"`
	SuggestedMax float64    `json:"suggested_max"`
	Confidence   Confidence `json:"confidence"`
}

// ComparableListing is a sold or active listing similar to the item.
type ComparableListing struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	Currency       string   `json:"currency"`
	ImageURL       *string  `json:"image_url,omitempty"`
	URL            string   `json:"url"`
	Condition      string   `json:"condition"`
	SellerLocation string   `json:"seller_location"`
	ShippingCost   *float64 `json:"shipping_cost,omitempty"`
	Marketplace    string   `json:"marketplace"`
}

// PricingSummary is the comparable-price lookup result.
type PricingSummary struct {
	Items     []ComparableListing `json:"items"`
	PriceBand PriceBand           `json:"price_band"`
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneExports(in []ExportStatus) []ExportStatus {
	if in == nil {
		return nil
	}
	out := make([]ExportStatus, len(in))
	for i, e := range in {
		e.LastExportedAt = clonePtr(e.LastExportedAt)
		out[i] = e
	}
	return out
}
