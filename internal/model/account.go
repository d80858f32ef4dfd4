package model

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
	PlanPower Plan = "power"
)

// AllPlans lists plans from cheapest to most expensive.
var AllPlans = []Plan{PlanFree, PlanPro, PlanPower}

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanPower:
		return true
	}
	return false
}

func (p Plan) DisplayName() string {
	switch p {
	case PlanFree:
		return "Free"
	case PlanPro:
		return "Pro"
	case PlanPower:
		return "Power"
	}
	return string(p)
}

// MonthlyPrice is the plan price in GBP.
func (p Plan) MonthlyPrice() float64 {
	switch p {
	case PlanPro:
		return 9.99
	case PlanPower:
		return 24.99
	}
	return 0
}

// ListingLimit is the number of listings the plan may process.
// The power plan is unbounded.
func (p Plan) ListingLimit() int {
	switch p {
	case PlanPro:
		return 200
	case PlanPower:
		return math.MaxInt
	}
	return 10
}

// ProductID is the in-app purchase product identifier for the plan.
func (p Plan) ProductID() string {
	return "listlift." + string(p)
}

// PlanForProductID maps a purchase product identifier back to its plan.
func PlanForProductID(productID string) (Plan, bool) {
	p := Plan(strings.TrimPrefix(productID, "listlift."))
	if !strings.HasPrefix(productID, "listlift.") || !p.Valid() || p == PlanFree {
		return "", false
	}
	return p, true
}

// Quotas tracks listing processing usage against the plan limit.
type Quotas struct {
	ProcessedListings      int `json:"processed_listings"`
	ProcessedListingsLimit int `json:"processed_listings_limit"`
}

// Remaining is limit minus used. It may be negative.
func (q Quotas) Remaining() int {
	return q.ProcessedListingsLimit - q.ProcessedListings
}

// Exhausted reports whether another listing would exceed the limit.
func (q Quotas) Exhausted() bool {
	return q.ProcessedListings >= q.ProcessedListingsLimit
}

// EbayAuth is the marketplace OAuth credential bundle.
type EbayAuth struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        []string  `json:"scope"`
	SiteID       string    `json:"site_id"`
}

// ExpiresWithin reports whether the access token expires within d of now.
func (a EbayAuth) ExpiresWithin(d time.Duration, now time.Time) bool {
	return a.ExpiresAt.Sub(now) <= d
}

// Template is a saved listing template.
type Template struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CategoryID     *string   `json:"category_id,omitempty"`
	DefaultAspects []Aspect  `json:"default_aspects"`
	TitleTone      TitleTone `json:"title_tone"`
}

// Policy is one marketplace business policy.
type Policy struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MarketplaceID string `json:"marketplace_id"`
}

// PoliciesCache holds the user's marketplace business policies.
type PoliciesCache struct {
	ShippingPolicies []Policy `json:"shipping_policies"`
	PaymentPolicies  []Policy `json:"payment_policies"`
	ReturnPolicies   []Policy `json:"return_policies"`
}

// Account is the single per-installation subscription, quota and
// credential record.
type Account struct {
	UserID        string        `json:"user_id"`
	Plan          Plan          `json:"plan"`
	Quotas        Quotas        `json:"quotas"`
	EbayAuth      *EbayAuth     `json:"ebay_auth,omitempty"`
	Templates     []Template    `json:"templates"`
	PoliciesCache PoliciesCache `json:"policies_cache"`
}

// DefaultAccount returns the first-run account: free plan, no usage.
func DefaultAccount() Account {
	return Account{
		UserID:    uuid.New().String(),
		Plan:      PlanFree,
		Quotas:    Quotas{ProcessedListingsLimit: PlanFree.ListingLimit()},
		Templates: []Template{},
		PoliciesCache: PoliciesCache{
			ShippingPolicies: []Policy{},
			PaymentPolicies:  []Policy{},
			ReturnPolicies:   []Policy{},
		},
	}
}

// WithPlan returns a copy on plan with the quota limit set to the plan's
// entitlement. Usage is kept.
func (a Account) WithPlan(plan Plan) Account {
	out := a.Clone()
	out.Plan = plan
	out.Quotas.ProcessedListingsLimit = plan.ListingLimit()
	return out
}

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	out := a
	if a.EbayAuth != nil {
		auth := *a.EbayAuth
		auth.Scope = cloneSlice(a.EbayAuth.Scope)
		out.EbayAuth = &auth
	}
	if a.Templates != nil {
		out.Templates = make([]Template, len(a.Templates))
		for i, t := range a.Templates {
			t.CategoryID = clonePtr(t.CategoryID)
			t.DefaultAspects = CloneAspects(t.DefaultAspects)
			out.Templates[i] = t
		}
	}
	out.PoliciesCache = PoliciesCache{
		ShippingPolicies: cloneSlice(a.PoliciesCache.ShippingPolicies),
		PaymentPolicies:  cloneSlice(a.PoliciesCache.PaymentPolicies),
		ReturnPolicies:   cloneSlice(a.PoliciesCache.ReturnPolicies),
	}
	return out
}
