package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/storage"
	"github.com/raine/listlift/internal/store"
)

type mapLoader map[string][]byte

func (m mapLoader) Load(ctx context.Context, url string) ([]byte, error) {
	data, ok := m[url]
	if !ok {
		return nil, errors.New("no such photo")
	}
	return data, nil
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func photoAt(url string) model.PhotoAsset {
	return model.NewPhotoAsset(url, 0.9)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), storage.NewMemoryBackend())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loader := mapLoader{"file:///a.jpg": testPhoto(t), "file:///b.jpg": testPhoto(t)}

	item := model.NewItem(time.Now())
	item.Brand = "Levi's"
	item.Description = "Classic straight leg jeans."
	item.CleanedPhotos = []model.PhotoAsset{photoAt("file:///a.jpg"), photoAt("file:///missing.jpg"), photoAt("file:///b.jpg")}
	item.Aspects = []model.Aspect{{Name: "Size", Value: "32"}, {Name: "Colour", Value: "Blue"}}
	_, err := s.UpsertItem(ctx, item)
	require.NoError(t, err)

	kit, err := NewGenerator(s, loader).Generate(ctx, item.ID, model.MarketplaceDepop)
	require.NoError(t, err)

	assert.Equal(t, "Levi's", kit.Title)
	assert.Equal(t, "Classic straight leg jeans.", kit.Description)
	assert.Equal(t, "Size: 32\nColour: Blue", kit.Specifics)
	assert.Equal(t, Checklist(model.MarketplaceDepop), kit.Checklist)
	require.Len(t, kit.Images, 2)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(kit.Images[0]))
	require.NoError(t, err)
	assert.Equal(t, 1080, cfg.Width)
	assert.Equal(t, 1350, cfg.Height)

	stored, ok, err := s.Item(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	e, ok := stored.MarketplaceStatus.LastExport(model.MarketplaceDepop)
	require.True(t, ok)
	assert.NotNil(t, e.LastExportedAt)
}

func TestGenerateUsesSelectedTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	item := model.NewItem(time.Now())
	item.Brand = "Levi's"
	item.Description = "own description"
	item.TitleOptions = []model.ListingText{{ID: "t1", Title: "Levi's 501 W32 L34", Description: "generated"}}
	id := "t1"
	item.SelectedTitleID = &id
	_, err := s.UpsertItem(ctx, item)
	require.NoError(t, err)

	kit, err := NewGenerator(s, mapLoader{}).Generate(ctx, item.ID, model.MarketplaceMercari)
	require.NoError(t, err)
	assert.Equal(t, "Levi's 501 W32 L34", kit.Title)
	assert.Equal(t, "generated", kit.Description)
	assert.Empty(t, kit.Images)
	assert.Equal(t, "Levi's 501 W32 L34\n\ngenerated", kit.Text())
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := NewGenerator(s, mapLoader{}).Generate(ctx, "nope", model.MarketplaceVinted)
	assert.ErrorIs(t, err, store.ErrItemNotFound)

	_, err = NewGenerator(s, mapLoader{}).Generate(ctx, "nope", model.ExportMarketplace("etsy"))
	assert.ErrorContains(t, err, "unknown marketplace")

	item := model.NewItem(time.Now())
	item.CleanedPhotos = []model.PhotoAsset{photoAt("file:///bad.jpg")}
	_, err = s.UpsertItem(ctx, item)
	require.NoError(t, err)

	_, err = NewGenerator(s, mapLoader{"file:///bad.jpg": []byte("garbage")}).Generate(ctx, item.ID, model.MarketplaceVinted)
	assert.ErrorIs(t, err, ErrInvalidImage)

	stored, _, err := s.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.MarketplaceStatus.Exports)
}

func TestPreferredSizes(t *testing.T) {
	tests := []struct {
		m    model.ExportMarketplace
		w, h uint
	}{
		{model.MarketplaceDepop, 1080, 1350},
		{model.MarketplaceVinted, 1080, 1350},
		{model.MarketplacePoshmark, 1200, 1600},
		{model.MarketplaceMercari, 1080, 1080},
		{model.MarketplaceFacebook, 1200, 900},
	}
	for _, tt := range tests {
		w, h := PreferredSize(tt.m)
		assert.Equal(t, tt.w, w, tt.m)
		assert.Equal(t, tt.h, h, tt.m)
		assert.NotEmpty(t, Checklist(tt.m), tt.m)
	}
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kit")
	kit := &Kit{
		Marketplace: model.MarketplaceVinted,
		Images:      [][]byte{[]byte("one"), []byte("two")},
		Title:       "Title",
		Checklist:   []string{"Open Vinted", "Publish"},
	}
	require.NoError(t, kit.WriteDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	text, err := os.ReadFile(filepath.Join(dir, "listing.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Title\n", string(text))

	img, err := os.ReadFile(filepath.Join(dir, "vinted-2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(img))
}
