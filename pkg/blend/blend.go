// Package blend composites aligned slices from several volumes into one
// RGBA image.
package blend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"mincslice/internal/models"
)

var (
	// ErrMisaligned is returned when slices do not share the same in-plane axes.
	ErrMisaligned = errors.New("slices are not aligned")

	// ErrBadAlpha is returned for blend weights outside [0, 1], weights that
	// sum to more than 1, or a weight count that does not match the slices.
	ErrBadAlpha = errors.New("invalid blend ratios")
)

const alphaTolerance = 1e-9

// ColorMapper converts an intensity to a colour. colormap.Mapping
// implements it.
type ColorMapper interface {
	Color(value float64) color.RGBA
}

// Layer is one slice to composite with its weight and colour mapping
type Layer struct {
	Slice  *models.Slice
	Alpha  float64
	Colors ColorMapper
}

// ValidateAlphas checks a set of blend ratios.
func ValidateAlphas(alphas []float64) error {
	sum := 0.0
	for i, a := range alphas {
		if math.IsNaN(a) || a < 0 || a > 1 {
			return fmt.Errorf("%w: ratio %d is %v", ErrBadAlpha, i, a)
		}
		sum += a
	}
	if sum > 1+alphaTolerance {
		return fmt.Errorf("%w: ratios sum to %v", ErrBadAlpha, sum)
	}
	return nil
}

func spaceName(a *models.Axis) string {
	if a == nil {
		return ""
	}
	return a.Name
}

// Blend composites slices weighted by the parallel alphas, mapping every
// slice through colors.
func Blend(slices []*models.Slice, alphas []float64, colors ColorMapper) (*image.RGBA, error) {
	if len(alphas) != len(slices) {
		return nil, fmt.Errorf("%w: %d ratios for %d slices", ErrBadAlpha, len(alphas), len(slices))
	}
	layers := make([]Layer, len(slices))
	for i, s := range slices {
		layers[i] = Layer{Slice: s, Alpha: alphas[i], Colors: colors}
	}
	return Composite(layers)
}

// Composite walks every output pixel and accumulates each covering layer's
// colour scaled by its weight and colour alpha. The output is as large as
// the largest layer. Output alpha is opaque wherever a covering layer has a
// non-zero intensity and transparent elsewhere.
func Composite(layers []Layer) (*image.RGBA, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: nothing to blend", ErrMisaligned)
	}

	alphas := make([]float64, len(layers))
	width, height := 0, 0
	first := layers[0].Slice
	for i, l := range layers {
		if l.Slice == nil || l.Colors == nil {
			return nil, fmt.Errorf("%w: layer %d has no slice or color map", ErrMisaligned, i)
		}
		if len(l.Slice.Data) < l.Slice.Width*l.Slice.Height {
			return nil, fmt.Errorf("%w: layer %d has %d values for a %dx%d slice",
				ErrMisaligned, i, len(l.Slice.Data), l.Slice.Width, l.Slice.Height)
		}
		if spaceName(l.Slice.WidthSpace) != spaceName(first.WidthSpace) ||
			spaceName(l.Slice.HeightSpace) != spaceName(first.HeightSpace) {
			return nil, fmt.Errorf("%w: layer %d is %s x %s, layer 0 is %s x %s", ErrMisaligned, i,
				spaceName(l.Slice.WidthSpace), spaceName(l.Slice.HeightSpace),
				spaceName(first.WidthSpace), spaceName(first.HeightSpace))
		}
		alphas[i] = l.Alpha
		width = max(width, l.Slice.Width)
		height = max(height, l.Slice.Height)
	}
	if err := ValidateAlphas(alphas); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b float64
			opaque := false
			for _, l := range layers {
				s := l.Slice
				if x >= s.Width || y >= s.Height {
					continue
				}
				v := s.Data[y*s.Width+x]
				if v != 0 {
					opaque = true
				}
				c := l.Colors.Color(v)
				w := l.Alpha * float64(c.A) / 255
				r += float64(c.R) * w
				g += float64(c.G) * w
				b += float64(c.B) * w
			}
			var a uint8
			if opaque {
				a = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: clamp8(r), G: clamp8(g), B: clamp8(b), A: a})
		}
	}
	return img, nil
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
