package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/listlift/internal/storage"
)

// productShot is a white backdrop with a red square in the middle.
func productShot(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				c = color.NRGBA{R: 200, G: 20, B: 20, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestAutoEnhanceStretchesContrast(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(100 + x*50/63)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	out, err := NewPipeline(nil).AutoEnhance(encodePNG(t, img))
	require.NoError(t, err)

	format, err := Format(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	lo, _, _, _ := decoded.At(0, 32).RGBA()
	hi, _, _, _ := decoded.At(63, 32).RGBA()
	assert.Less(t, lo>>8, uint32(30))
	assert.Greater(t, hi>>8, uint32(225))
}

func TestRemoveBackground(t *testing.T) {
	out, confidence, err := NewPipeline(nil).RemoveBackground(encodePNG(t, productShot(80, 80)))
	require.NoError(t, err)
	assert.Equal(t, 1.0, confidence)

	format, err := Format(out)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, _, _, cornerA := decoded.At(2, 2).RGBA()
	_, _, _, centreA := decoded.At(40, 40).RGBA()
	assert.Equal(t, uint32(0), cornerA)
	assert.Equal(t, uint32(0xffff), centreA)
}

func TestRemoveBackgroundPlainImageKeepsEverything(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}

	out, confidence, err := NewPipeline(nil).RemoveBackground(encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, 0.0, confidence)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, _, _, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

type brokenSegmenter struct {
	mask *image.Alpha
	err  error
}

func (s brokenSegmenter) Segment(image.Image) (*image.Alpha, float64, error) {
	return s.mask, 1, s.err
}

func TestRemoveBackgroundErrors(t *testing.T) {
	shot := encodePNG(t, productShot(10, 10))

	_, _, err := NewPipeline(nil).RemoveBackground([]byte("not an image"))
	assert.ErrorIs(t, err, ErrMaskFailed)

	_, _, err = NewPipeline(brokenSegmenter{err: errors.New("model missing")}).RemoveBackground(shot)
	assert.ErrorIs(t, err, ErrMaskFailed)

	small := image.NewAlpha(image.Rect(0, 0, 5, 5))
	_, _, err = NewPipeline(brokenSegmenter{mask: small}).RemoveBackground(shot)
	assert.ErrorIs(t, err, ErrCompositeFailed)
}

func TestAutoCropToSquare(t *testing.T) {
	p := NewPipeline(nil)

	t.Run("jpeg", func(t *testing.T) {
		out, err := p.AutoCropToSquare(encodeJPEG(t, productShot(200, 120)))
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 120, cfg.Width)
		assert.Equal(t, 120, cfg.Height)
	})

	t.Run("png keeps format", func(t *testing.T) {
		out, err := p.AutoCropToSquare(encodePNG(t, productShot(90, 150)))
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 90, cfg.Width)
		assert.Equal(t, 90, cfg.Height)
	})

	t.Run("centred", func(t *testing.T) {
		assert.Equal(t, image.Rect(40, 0, 160, 120), centredSquare(image.Rect(0, 0, 200, 120)))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := p.AutoCropToSquare(nil)
		assert.ErrorIs(t, err, ErrRenderFailed)
	})
}

func TestProcessAndThumbnail(t *testing.T) {
	out, confidence, err := NewPipeline(nil).Process(encodeJPEG(t, productShot(160, 100)))
	require.NoError(t, err)
	assert.Greater(t, confidence, 0.0)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, cfg.Width, cfg.Height)

	thumb, err := Thumbnail(encodeJPEG(t, productShot(1000, 500)))
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailSize, cfg.Width)
	assert.Equal(t, ThumbnailSize/2, cfg.Height)
}

func TestExtractAttributes(t *testing.T) {
	tests := []struct {
		name  string
		lines []TextObservation
		want  LabelAttributes
	}{
		{
			name: "full label",
			lines: []TextObservation{
				{Text: "levis", Confidence: 0.9},
				{Text: "UK 10", Confidence: 0.8},
				{Text: "100% cotton", Confidence: 0.7},
			},
			want: LabelAttributes{Brand: "Levis", Size: "UK 10", Material: "100% Cotton", Confidence: 0.8},
		},
		{
			name: "punctuated brand is skipped",
			lines: []TextObservation{
				{Text: "Levi's", Confidence: 1},
				{Text: "M", Confidence: 1},
				{Text: "Made in Italy", Confidence: 1},
			},
			want: LabelAttributes{Size: "M", Confidence: 1},
		},
		{
			name: "split size",
			lines: []TextObservation{
				{Text: "32/34", Confidence: 0.5},
				{Text: "Denim jacket", Confidence: 0.5},
			},
			want: LabelAttributes{Size: "32/34", Material: "Denim Jacket", Confidence: 0.5},
		},
		{
			name: "fabric word is also a brand",
			lines: []TextObservation{
				{Text: "WOOL", Confidence: 1},
			},
			want: LabelAttributes{Brand: "Wool", Material: "Wool", Confidence: 1},
		},
		{
			name: "letter size is also a brand",
			lines: []TextObservation{
				{Text: "XXL", Confidence: 0.6},
				{Text: "ZARA", Confidence: 0.8},
			},
			want: LabelAttributes{Brand: "Xxl", Size: "XXL", Confidence: 0.7},
		},
		{
			name: "no lines",
			want: LabelAttributes{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAttributes(tt.lines)
			assert.Equal(t, tt.want.Brand, got.Brand)
			assert.Equal(t, tt.want.Size, got.Size)
			assert.Equal(t, tt.want.Material, got.Material)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, 1e-9)
		})
	}
}

func TestParseLabelLines(t *testing.T) {
	lines, err := parseLabelLines("```json\n{\"lines\": [{\"text\": \"ZARA\", \"confidence\": 1.4}, {\"text\": \" \", \"confidence\": 0.2}, {\"text\": \"S\", \"confidence\": 0.6}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []TextObservation{{Text: "ZARA", Confidence: 1}, {Text: "S", Confidence: 0.6}}, lines)

	_, err = parseLabelLines("sorry, I can't read that")
	assert.Error(t, err)
}

type countingRecognizer struct {
	calls int
}

func (r *countingRecognizer) Recognize(ctx context.Context, image []byte) ([]TextObservation, error) {
	r.calls++
	return []TextObservation{{Text: "ZARA", Confidence: 0.9}}, nil
}

func TestCachedRecognizer(t *testing.T) {
	ctx := context.Background()
	inner := &countingRecognizer{}
	cached := NewCachedRecognizer(inner, storage.NewMemoryBackend())

	first, err := cached.Recognize(ctx, []byte("label"))
	require.NoError(t, err)
	second, err := cached.Recognize(ctx, []byte("label"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = cached.Recognize(ctx, []byte("other label"))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	uncached := NewCachedRecognizer(inner, nil)
	_, err = uncached.Recognize(ctx, []byte("label"))
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	shot := encodeJPEG(t, productShot(20, 20))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(shot)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader()

	data, err := l.Load(ctx, srv.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, shot, data)

	_, err = l.Load(ctx, srv.URL+"/page")
	assert.ErrorContains(t, err, "invalid content type")

	_, err = l.Load(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = NewLoader().WithMaxSize(10).Load(ctx, srv.URL+"/photo.jpg")
	assert.ErrorContains(t, err, "too large")

	_, err = l.Load(ctx, "ftp://example.com/photo.jpg")
	assert.ErrorContains(t, err, "unsupported")
}

func TestSaveFileAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	shot := encodePNG(t, productShot(10, 10))

	u, err := SaveFile(dir, shot)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))
	assert.True(t, strings.HasSuffix(u, ".png"))

	data, err := NewLoader().Load(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, shot, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
