package model

// Condition is the physical condition of an item.
type Condition string

const (
	ConditionNewWithTags    Condition = "newWithTags"
	ConditionNewWithoutTags Condition = "newWithoutTags"
	ConditionPreOwned       Condition = "preOwned"
	ConditionExcellent      Condition = "excellent"
	ConditionGood           Condition = "good"
	ConditionFair           Condition = "fair"
)

// AllConditions lists conditions in display order.
var AllConditions = []Condition{
	ConditionNewWithTags,
	ConditionNewWithoutTags,
	ConditionPreOwned,
	ConditionExcellent,
	ConditionGood,
	ConditionFair,
}

func (c Condition) Valid() bool {
	_, ok := conditionNames[c]
	return ok
}

func (c Condition) DisplayName() string {
	return conditionNames[c]
}

var conditionNames = map[Condition]string{
	ConditionNewWithTags:    "New (With Tags)",
	ConditionNewWithoutTags: "New (No Tags)",
	ConditionPreOwned:       "Pre-owned",
	ConditionExcellent:      "Excellent",
	ConditionGood:           "Good",
	ConditionFair:           "Fair",
}

// TitleTone selects the style of generated titles.
type TitleTone string

const (
	ToneSEO     TitleTone = "seo"
	ToneConcise TitleTone = "concise"
	ToneVintage TitleTone = "vintage"
)

func (t TitleTone) Valid() bool {
	_, ok := toneNames[t]
	return ok
}

func (t TitleTone) DisplayName() string {
	return toneNames[t]
}

var toneNames = map[TitleTone]string{
	ToneSEO:     "SEO (Long)",
	ToneConcise: "Concise",
	ToneVintage: "Vintage",
}

// ListingStatus is the state of an item on a marketplace.
type ListingStatus string

const (
	StatusDraft     ListingStatus = "draft"
	StatusPublished ListingStatus = "published"
	StatusSold      ListingStatus = "sold"
	StatusArchived  ListingStatus = "archived"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusSold, StatusArchived:
		return true
	}
	return false
}

// ExportMarketplace is a marketplace supported by listing kit export.
type ExportMarketplace string

const (
	MarketplaceDepop    ExportMarketplace = "depop"
	MarketplaceVinted   ExportMarketplace = "vinted"
	MarketplacePoshmark ExportMarketplace = "poshmark"
	MarketplaceMercari  ExportMarketplace = "mercari"
	MarketplaceFacebook ExportMarketplace = "facebookMarketplace"
)

// AllExportMarketplaces lists export targets in display order.
var AllExportMarketplaces = []ExportMarketplace{
	MarketplaceDepop,
	MarketplaceVinted,
	MarketplacePoshmark,
	MarketplaceMercari,
	MarketplaceFacebook,
}

func (m ExportMarketplace) Valid() bool {
	_, ok := marketplaceNames[m]
	return ok
}

func (m ExportMarketplace) DisplayName() string {
	return marketplaceNames[m]
}

var marketplaceNames = map[ExportMarketplace]string{
	MarketplaceDepop:    "Depop",
	MarketplaceVinted:   "Vinted",
	MarketplacePoshmark: "Poshmark",
	MarketplaceMercari:  "Mercari",
	MarketplaceFacebook: "Facebook Marketplace",
}

// Confidence grades a price band by how many comparables backed it.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}
