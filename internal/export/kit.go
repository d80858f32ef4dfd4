// Package export builds listing kits for marketplaces without a publishing
// API: resized photos plus copy-paste text and a posting checklist.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/store"
)

var ErrInvalidImage = errors.New("invalid image")

const jpegQuality = 90

// ItemStore is the part of the state store the generator needs.
type ItemStore interface {
	Item(ctx context.Context, id string) (model.Item, bool, error)
	UpdateItem(ctx context.Context, id string, fn func(*model.Item) error) (model.Item, error)
}

// PhotoLoader reads photo bytes by URL.
type PhotoLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// Kit is everything needed to list an item by hand.
type Kit struct {
	Marketplace model.ExportMarketplace `json:"marketplace"`
	Images      [][]byte                `json:"images"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Specifics   string                  `json:"specifics"`
	Checklist   []string                `json:"checklist"`
}

// Text is the clipboard form of the kit.
func (k *Kit) Text() string {
	var parts []string
	for _, s := range []string{k.Title, k.Description, k.Specifics} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// WriteDir writes the images, the listing text and the checklist into dir.
func (k *Kit) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	for i, img := range k.Images {
		name := filepath.Join(dir, fmt.Sprintf("%s-%d.jpg", k.Marketplace, i+1))
		if err := os.WriteFile(name, img, 0600); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "listing.txt"), []byte(k.Text()+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write listing text: %w", err)
	}
	checklist := strings.Join(k.Checklist, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "checklist.txt"), []byte(checklist), 0600); err != nil {
		return fmt.Errorf("failed to write checklist: %w", err)
	}
	return nil
}

// PreferredSize is the photo size each marketplace displays best.
func PreferredSize(m model.ExportMarketplace) (width, height uint) {
	switch m {
	case model.MarketplaceDepop, model.MarketplaceVinted:
		return 1080, 1350
	case model.MarketplacePoshmark:
		return 1200, 1600
	case model.MarketplaceMercari:
		return 1080, 1080
	case model.MarketplaceFacebook:
		return 1200, 900
	}
	return 1080, 1080
}

// Checklist returns the manual posting steps for m.
func Checklist(m model.ExportMarketplace) []string {
	switch m {
	case model.MarketplaceDepop:
		return []string{"Open Depop app", "Tap Sell", "Upload resized photos", "Paste title & description", "Set price", "Publish"}
	case model.MarketplaceVinted:
		return []string{"Open Vinted", "Tap Sell", "Upload resized photos", "Paste title", "Fill brand & size", "Set shipping", "Publish"}
	case model.MarketplacePoshmark:
		return []string{"Open Poshmark", "Tap Sell", "Upload resized photos", "Paste description", "Set price", "List"}
	case model.MarketplaceMercari:
		return []string{"Open Mercari", "Add photos", "Paste details", "Set shipping", "List"}
	case model.MarketplaceFacebook:
		return []string{"Open Facebook Marketplace", "Tap Sell", "Upload photos", "Paste title", "Paste description", "Set price", "Post"}
	}
	return nil
}

type Generator struct {
	store  ItemStore
	loader PhotoLoader
	now    func() time.Time
}

func NewGenerator(store ItemStore, loader PhotoLoader) *Generator {
	return &Generator{
		store:  store,
		loader: loader,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds the kit for itemID and records the export on the item.
// Cleaned photos that cannot be loaded are skipped.
func (g *Generator) Generate(ctx context.Context, itemID string, marketplace model.ExportMarketplace) (*Kit, error) {
	if !marketplace.Valid() {
		return nil, fmt.Errorf("unknown marketplace %q", marketplace)
	}

	item, ok, err := g.store.Item(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read item: %w", err)
	}
	if !ok {
		return nil, store.ErrItemNotFound
	}

	images, err := g.resizePhotos(ctx, item.CleanedPhotos, marketplace)
	if err != nil {
		return nil, err
	}

	kit := &Kit{
		Marketplace: marketplace,
		Images:      images,
		Title:       item.Brand,
		Description: item.Description,
		Specifics:   specifics(item.Aspects),
		Checklist:   Checklist(marketplace),
	}
	if t, ok := item.SelectedTitle(); ok {
		kit.Title = t.Title
		kit.Description = t.Description
	}

	_, err = g.store.UpdateItem(ctx, itemID, func(it *model.Item) error {
		it.MarketplaceStatus.MarkExported(marketplace, g.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record export: %w", err)
	}

	log.Info().Str("itemID", itemID).Str("marketplace", string(marketplace)).Int("images", len(images)).Msg("generated export kit")
	return kit, nil
}

func (g *Generator) resizePhotos(ctx context.Context, photos []model.PhotoAsset, marketplace model.ExportMarketplace) ([][]byte, error) {
	w, h := PreferredSize(marketplace)
	results := make([][]byte, len(photos))

	eg, ctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		if photo.CleanedURL == nil {
			continue
		}
		eg.Go(func() error {
			data, err := g.loader.Load(ctx, *photo.CleanedURL)
			if err != nil {
				log.Warn().Err(err).Str("photoID", photo.ID).Msg("skipping unreadable photo")
				return nil
			}
			out, err := resizeTo(data, w, h)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	images := make([][]byte, 0, len(results))
	for _, r := range results {
		if r != nil {
			images = append(images, r)
		}
	}
	return images, nil
}

func resizeTo(data []byte, w, h uint) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resize.Resize(w, h, img, resize.Lanczos3), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}

func specifics(aspects []model.Aspect) string {
	lines := make([]string, len(aspects))
	for i, a := range aspects {
		lines[i] = a.Name + ": " + a.Value
	}
	return strings.Join(lines, "\n")
}
