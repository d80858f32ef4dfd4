// Package media is the on-device photo pipeline: enhancement, background
// removal, square cropping and label text recognition.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

var (
	ErrMaskFailed      = errors.New("foreground mask failed")
	ErrCompositeFailed = errors.New("composite failed")
	ErrRenderFailed    = errors.New("render failed")
)

const (
	DefaultJPEGQuality = 90
	// Share of pixels clipped at each end of a channel's histogram by AutoEnhance.
	enhanceClip = 0.01
)

// Pipeline processes photos in memory. The zero value is not usable; use
// NewPipeline.
type Pipeline struct {
	segmenter   Segmenter
	jpegQuality int
}

func NewPipeline(segmenter Segmenter) *Pipeline {
	if segmenter == nil {
		segmenter = BorderSegmenter{}
	}
	return &Pipeline{segmenter: segmenter, jpegQuality: DefaultJPEGQuality}
}

// AutoEnhance stretches each colour channel so its 1st and 99th percentile
// map to the full range. Output is JPEG.
func (p *Pipeline) AutoEnhance(data []byte) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	src := toNRGBA(img)
	var hist [3][256]int
	for i := 0; i < len(src.Pix); i += 4 {
		hist[0][src.Pix[i]]++
		hist[1][src.Pix[i+1]]++
		hist[2][src.Pix[i+2]]++
	}

	total := len(src.Pix) / 4
	var lut [3][256]uint8
	for c := 0; c < 3; c++ {
		lo, hi := percentileBounds(hist[c], total, enhanceClip)
		for v := 0; v < 256; v++ {
			lut[c][v] = stretch(uint8(v), lo, hi)
		}
	}

	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i] = lut[0][src.Pix[i]]
		src.Pix[i+1] = lut[1][src.Pix[i+1]]
		src.Pix[i+2] = lut[2][src.Pix[i+2]]
	}

	return p.encodeJPEG(src)
}

// RemoveBackground keeps the foreground found by the segmenter and makes the
// rest transparent. It returns a PNG and the segmenter's confidence.
func (p *Pipeline) RemoveBackground(data []byte) ([]byte, float64, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMaskFailed, err)
	}

	mask, confidence, err := p.segmenter.Segment(img)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMaskFailed, err)
	}
	if mask == nil || mask.Bounds() != img.Bounds() {
		return nil, 0, fmt.Errorf("%w: mask does not cover the image", ErrCompositeFailed)
	}

	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, image.Transparent, image.Point{}, draw.Src)
	draw.DrawMask(out, b, img, b.Min, mask, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.Bytes(), confidence, nil
}

// AutoCropToSquare crops the largest centred square. PNG input stays PNG so
// transparency survives; anything else becomes JPEG.
func (p *Pipeline) AutoCropToSquare(data []byte) ([]byte, error) {
	img, format, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	out := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	if sq := centredSquare(img.Bounds()); !sq.Empty() {
		out = image.NewNRGBA(image.Rect(0, 0, sq.Dx(), sq.Dy()))
		draw.Draw(out, out.Bounds(), img, sq.Min, draw.Src)
	}

	if format == "png" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
		}
		return buf.Bytes(), nil
	}
	return p.encodeJPEG(out)
}

// Process runs enhance, background removal and square crop in order.
func (p *Pipeline) Process(data []byte) ([]byte, float64, error) {
	enhanced, err := p.AutoEnhance(data)
	if err != nil {
		return nil, 0, err
	}
	cleaned, confidence, err := p.RemoveBackground(enhanced)
	if err != nil {
		return nil, 0, err
	}
	cropped, err := p.AutoCropToSquare(cleaned)
	if err != nil {
		return nil, 0, err
	}
	return cropped, confidence, nil
}

func (p *Pipeline) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// Format reports the encoding of data ("jpeg" or "png").
func Format(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	return format, err
}

func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Empty() {
		return nil, "", errors.New("empty image")
	}
	return img, format, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func centredSquare(b image.Rectangle) image.Rectangle {
	side := min(b.Dx(), b.Dy())
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}

func percentileBounds(hist [256]int, total int, clip float64) (uint8, uint8) {
	cut := int(float64(total) * clip)
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > cut {
			break
		}
	}
	return uint8(lo), uint8(hi)
}

func stretch(v, lo, hi uint8) uint8 {
	if hi <= lo {
		return v
	}
	switch {
	case v <= lo:
		return 0
	case v >= hi:
		return 255
	}
	return uint8((int(v) - int(lo)) * 255 / (int(hi) - int(lo)))
}
