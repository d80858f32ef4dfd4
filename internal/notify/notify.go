// Package notify reacts to marketplace sale events: it marks the sold item
// and alerts the seller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/analytics"
	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/store"
)

// SaleNotification is pushed by the backend when a listing sells.
type SaleNotification struct {
	ItemID  string    `json:"item_id"`
	OrderID string    `json:"order_id"`
	SoldAt  time.Time `json:"sold_at"`
}

// Source delivers sale notifications until ctx is done, then closes the
// channel.
type Source interface {
	Subscribe(ctx context.Context) (<-chan SaleNotification, error)
}

// ItemStore is the part of the state store the service needs.
type ItemStore interface {
	UpdateItem(ctx context.Context, id string, fn func(*model.Item) error) (model.Item, error)
}

// Service marks sold items and alerts the seller.
type Service struct {
	store   ItemStore
	alerter Alerter
	tracker *analytics.Tracker
}

// NewService creates a sale notification service. alerter may be nil.
func NewService(store ItemStore, alerter Alerter, tracker *analytics.Tracker) *Service {
	return &Service{store: store, alerter: alerter, tracker: tracker}
}

// HandleSale marks the item sold on eBay. Notifications for items that are
// not in the store are ignored.
func (s *Service) HandleSale(ctx context.Context, n SaleNotification) error {
	item, err := s.store.UpdateItem(ctx, n.ItemID, func(it *model.Item) error {
		it.MarketplaceStatus.Ebay = model.StatusSold
		return nil
	})
	if errors.Is(err, store.ErrItemNotFound) {
		log.Info().Str("itemID", n.ItemID).Str("orderID", n.OrderID).Msg("ignoring sale for unknown item")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark item sold: %w", err)
	}

	log.Info().Str("itemID", n.ItemID).Str("orderID", n.OrderID).Time("soldAt", n.SoldAt).Msg("item sold")
	s.tracker.Track(analytics.SaleDetected, map[string]any{"itemID": n.ItemID, "orderID": n.OrderID})

	if s.alerter != nil {
		if err := s.alerter.Alert(ctx, "Item sold", saleMessage(item, n)); err != nil {
			log.Warn().Err(err).Str("itemID", n.ItemID).Msg("failed to send sale alert")
		}
	}
	return nil
}

// Run consumes src until ctx is done or the source closes.
func (s *Service) Run(ctx context.Context, src Source) error {
	sales, err := src.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to sales: %w", err)
	}

	log.Info().Msg("listening for sale notifications")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sale listener stopped")
			return nil
		case n, ok := <-sales:
			if !ok {
				log.Info().Msg("sale source closed")
				return nil
			}
			if err := s.HandleSale(ctx, n); err != nil {
				log.Error().Err(err).Str("itemID", n.ItemID).Msg("failed to handle sale")
			}
		}
	}
}

func saleMessage(item model.Item, n SaleNotification) string {
	name := item.Brand
	if t, ok := item.SelectedTitle(); ok {
		name = t.Title
	}
	if name == "" {
		name = "Your item"
	}
	return fmt.Sprintf("%s sold on eBay (order %s)", name, n.OrderID)
}

// ChanSource delivers notifications sent on C.
type ChanSource struct {
	C chan SaleNotification
}

func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{C: make(chan SaleNotification, buffer)}
}

func (c *ChanSource) Subscribe(ctx context.Context) (<-chan SaleNotification, error) {
	return c.C, nil
}
