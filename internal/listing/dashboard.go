package listing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/raine/listlift/internal/model"
)

// DashboardStore is the part of the state store the dashboard reads.
type DashboardStore interface {
	Items(ctx context.Context) ([]model.Item, error)
	Account(ctx context.Context) (model.Account, error)
}

// Dashboard is the home screen: recent items first, plus the account.
type Dashboard struct {
	Items   []model.Item
	Account model.Account
}

func LoadDashboard(ctx context.Context, st DashboardStore) (Dashboard, error) {
	items, err := st.Items(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("failed to load items: %w", err)
	}
	account, err := st.Account(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("failed to load account: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return Dashboard{Items: items, Account: account}, nil
}

// String renders the dashboard as plain text.
func (d Dashboard) String() string {
	limit := "unlimited"
	if d.Account.Quotas.ProcessedListingsLimit != math.MaxInt {
		limit = strconv.Itoa(d.Account.Quotas.ProcessedListingsLimit)
	}
	ebay := "not connected"
	if d.Account.EbayAuth != nil {
		ebay = "connected (" + d.Account.EbayAuth.SiteID + ")"
	}

	var sb strings.Builder
	sb.WriteString(formatText(msgDashboardHeader,
		d.Account.Plan.DisplayName(),
		d.Account.Quotas.ProcessedListings,
		limit,
		ebay,
		len(d.Items),
	))
	for _, it := range d.Items {
		sb.WriteString("\n")
		sb.WriteString(itemLine(it))
	}
	return sb.String()
}

func itemLine(it model.Item) string {
	name := it.Brand
	if t, ok := it.SelectedTitle(); ok {
		name = t.Title
	}
	if name == "" {
		name = "(untitled)"
	}
	price := "-"
	if it.PriceSet != nil {
		price = fmt.Sprintf("£%.2f", *it.PriceSet)
	}
	return fmt.Sprintf("- %s  %s  %s  [%s]", it.ID[:min(8, len(it.ID))], name, price, it.MarketplaceStatus.Ebay)
}
