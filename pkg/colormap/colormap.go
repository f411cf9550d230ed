// Package colormap maps scalar intensities onto a discrete colour palette.
package colormap

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ColorMap is a palette of RGBA colours with components in [0, 1], plus the
// default mapping options.
type ColorMap struct {
	// Colors holds 4 floats per palette entry
	Colors []float64

	Clamp      bool
	Flip       bool
	Scale      float64
	Contrast   float64
	Brightness float64
}

// Option configures a ColorMap at parse time
type Option func(*ColorMap)

// WithClamp sets whether out-of-range values map to the end colours.
func WithClamp(clamp bool) Option { return func(c *ColorMap) { c.Clamp = clamp } }

// WithFlip inverts the palette.
func WithFlip(flip bool) Option { return func(c *ColorMap) { c.Flip = flip } }

// WithScale sets the output scale, usually 1 or 255.
func WithScale(scale float64) Option { return func(c *ColorMap) { c.Scale = scale } }

// WithContrast sets the contrast multiplier.
func WithContrast(contrast float64) Option { return func(c *ColorMap) { c.Contrast = contrast } }

// WithBrightness sets the brightness offset.
func WithBrightness(brightness float64) Option {
	return func(c *ColorMap) { c.Brightness = brightness }
}

// Parse reads a colour map: one colour per line, "r g b [a]" with
// components in [0, 1]. Lines with fewer than three values are skipped and
// alpha defaults to 1.
func Parse(text string, opts ...Option) (*ColorMap, error) {
	cm := &ColorMap{Clamp: true, Scale: 1, Contrast: 1}
	for _, opt := range opts {
		opt(cm)
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if len(fields) > 4 {
			fields = fields[:4]
		}
		rgba := [4]float64{0, 0, 0, 1}
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("color map line %d: invalid component %q", line, f)
			}
			rgba[i] = v
		}
		cm.Colors = append(cm.Colors, rgba[:]...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading color map: %w", err)
	}
	if len(cm.Colors) == 0 {
		return nil, fmt.Errorf("color map has no colors")
	}
	return cm, nil
}

// Gray returns a 256 entry black-to-white palette.
func Gray() *ColorMap {
	cm := &ColorMap{Clamp: true, Scale: 1, Contrast: 1, Colors: make([]float64, 0, 256*4)}
	for i := 0; i < 256; i++ {
		v := float64(i) / 255
		cm.Colors = append(cm.Colors, v, v, v, 1)
	}
	return cm
}

// Len returns the number of palette entries.
func (c *ColorMap) Len() int {
	return len(c.Colors) / 4
}

// Options controls a single mapping call
type Options struct {
	Min, Max   float64
	Clamp      bool
	Flip       bool
	Scale      float64
	Contrast   float64
	Brightness float64

	// Alpha multiplies the alpha channel of every output colour
	Alpha float64
}

// Options returns the map's defaults for the intensity range [min, max].
func (c *ColorMap) Options(min, max float64) Options {
	return Options{
		Min:        min,
		Max:        max,
		Clamp:      c.Clamp,
		Flip:       c.Flip,
		Scale:      c.Scale,
		Contrast:   c.Contrast,
		Brightness: c.Brightness,
		Alpha:      1,
	}
}

// index returns the offset into Colors for value, or -1 when the value is
// out of range and clamping is off.
func (c *ColorMap) index(value float64, o Options) int {
	if (value < o.Min || value > o.Max) && !o.Clamp {
		return -1
	}
	n := c.Len()
	increment := float64(n) / (o.Max - o.Min)
	i := int(math.Floor(math.Max(0, math.Min((value-o.Min)*increment, float64(n-1)))))
	if o.Flip {
		i = n - 1 - i
	}
	return i * 4
}

var defaultColor = [4]float64{0, 0, 0, 1}

// MapColors maps each value to 4 RGBA components.
func (c *ColorMap) MapColors(values []float64, o Options) []float64 {
	out := make([]float64, len(values)*4)
	brightness := o.Brightness * o.Scale
	contrast := o.Contrast * o.Scale

	for i, v := range values {
		rgba := defaultColor[:]
		if ci := c.index(v, o); ci >= 0 {
			rgba = c.Colors[ci : ci+4]
		}
		out[i*4] = contrast*rgba[0] + brightness
		out[i*4+1] = contrast*rgba[1] + brightness
		out[i*4+2] = contrast*rgba[2] + brightness
		out[i*4+3] = o.Scale * rgba[3] * o.Alpha
	}
	return out
}

// ColorFromValue maps a single value. Colour components are clamped to
// [0, 1] before scaling.
func (c *ColorMap) ColorFromValue(value float64, o Options) [4]float64 {
	color := defaultColor
	if ci := c.index(value, o); ci >= 0 {
		copy(color[:], c.Colors[ci:ci+4])
	}
	for i := 0; i < 3; i++ {
		color[i] = math.Max(0, math.Min(o.Contrast*color[i]+o.Brightness, 1)) * o.Scale
	}
	color[3] *= o.Scale
	return color
}

// Hex formats the colour for value as "rrggbb".
func (c *ColorMap) Hex(value float64, o Options) string {
	o.Scale = 1
	rgb := c.ColorFromValue(value, o)
	return fmt.Sprintf("%02x%02x%02x",
		int(math.Floor(rgb[0]*255)), int(math.Floor(rgb[1]*255)), int(math.Floor(rgb[2]*255)))
}

// Mapping binds a colour map to an intensity range and converts single
// values to 8-bit colours.
type Mapping struct {
	cm   *ColorMap
	opts Options
}

// Range returns a Mapping for [min, max] using the map's defaults at 8-bit
// scale.
func (c *ColorMap) Range(min, max float64) *Mapping {
	o := c.Options(min, max)
	o.Scale = 255
	return &Mapping{cm: c, opts: o}
}

// Color converts value to an 8-bit colour.
func (m *Mapping) Color(value float64) color.RGBA {
	out := m.cm.MapColors([]float64{value}, m.opts)
	return color.RGBA{R: clamp8(out[0]), G: clamp8(out[1]), B: clamp8(out[2]), A: clamp8(out[3])}
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
