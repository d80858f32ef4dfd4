package media

import (
	"image"
	"image/color"
)

// Segmenter produces a foreground alpha mask for an image. The mask must
// cover the image bounds. confidence is in [0, 1].
type Segmenter interface {
	Segment(img image.Image) (mask *image.Alpha, confidence float64, err error)
}

// Default colour distance below which a pixel counts as background.
const defaultBorderTolerance = 48

// BorderSegmenter treats pixels close to the average border colour as
// background. It suits product photos shot against a plain backdrop.
// Confidence is the share of border pixels that match the backdrop estimate.
type BorderSegmenter struct {
	// Tolerance is the max per-channel distance from the border colour
	// still considered background. Zero means the default.
	Tolerance int
}

func (s BorderSegmenter) Segment(img image.Image) (*image.Alpha, float64, error) {
	tol := s.Tolerance
	if tol <= 0 {
		tol = defaultBorderTolerance
	}

	b := img.Bounds()
	bg, confidence := borderColour(img, tol)
	mask := image.NewAlpha(b)

	var fg int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if distance(c, bg) > tol {
				mask.SetAlpha(x, y, color.Alpha{A: 0xff})
				fg++
			}
		}
	}

	// An all-background or all-foreground mask means the backdrop was not plain
	total := b.Dx() * b.Dy()
	if fg == 0 || fg == total {
		for i := range mask.Pix {
			mask.Pix[i] = 0xff
		}
		return mask, 0, nil
	}
	return mask, confidence, nil
}

// borderColour averages the border pixels and reports the share of them
// within tol of that average.
func borderColour(img image.Image, tol int) (color.NRGBA, float64) {
	b := img.Bounds()
	var border []color.NRGBA
	add := func(x, y int) {
		border = append(border, color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA))
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		add(x, b.Min.Y)
		if b.Dy() > 1 {
			add(x, b.Max.Y-1)
		}
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		add(b.Min.X, y)
		if b.Dx() > 1 {
			add(b.Max.X-1, y)
		}
	}

	var r, g, bl int
	for _, c := range border {
		r += int(c.R)
		g += int(c.G)
		bl += int(c.B)
	}
	n := len(border)
	bg := color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 0xff}

	matched := 0
	for _, c := range border {
		if distance(c, bg) <= tol {
			matched++
		}
	}
	return bg, float64(matched) / float64(n)
}

func distance(a, b color.NRGBA) int {
	return max(absDiff(a.R, b.R), absDiff(a.G, b.G), absDiff(a.B, b.B))
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
