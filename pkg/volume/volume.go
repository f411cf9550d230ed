// Package volume ties a normalized header and its voxel data to a slice
// cache, a colour map and a cursor position.
package volume

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"sync"

	"mincslice/internal/models"
	"mincslice/pkg/blend"
	"mincslice/pkg/cache"
	"mincslice/pkg/colormap"
	"mincslice/pkg/header"
	"mincslice/pkg/slicer"
	"mincslice/pkg/stats"
)

// ErrShortBuffer is returned when the voxel buffer holds fewer values than
// the header describes.
var ErrShortBuffer = errors.New("voxel buffer shorter than header")

// Volume is a loaded image volume
type Volume struct {
	Header *models.Header

	buf    slicer.Buffer
	cache  *cache.Cache
	colors *colormap.ColorMap
	logger *log.Logger

	// Min and Max bound the intensities mapped onto the colour map
	Min, Max float64

	mu       sync.Mutex
	position [3]int
}

// Option configures a Volume
type Option func(*Volume)

// WithColorMap sets the colour map used to render slices. Defaults to
// colormap.Gray.
func WithColorMap(cm *colormap.ColorMap) Option {
	return func(v *Volume) { v.colors = cm }
}

// WithRange fixes the intensity window instead of using the data range.
func WithRange(min, max float64) Option {
	return func(v *Volume) {
		v.Min, v.Max = min, max
	}
}

// WithLogger sets the logger for load and extraction messages.
func WithLogger(l *log.Logger) Option {
	return func(v *Volume) { v.logger = l }
}

// New creates a Volume over h and buf. Unless WithRange is given the
// intensity window is the header's voxel range, or the data range when the
// header has none.
func New(h *models.Header, buf slicer.Buffer, opts ...Option) (*Volume, error) {
	if h == nil || h.Order[0] == "" {
		return nil, slicer.ErrNoHeader
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: no voxel buffer", slicer.ErrNoHeader)
	}
	want, ok := h.Samples()
	if !ok {
		return nil, fmt.Errorf("%w: volume exceeds %d values", header.ErrMalformedHeader, models.MaxSamples)
	}
	if buf.Len() < want {
		return nil, fmt.Errorf("%w: have %d values, need %d", ErrShortBuffer, buf.Len(), want)
	}

	v := &Volume{
		Header: h,
		buf:    buf,
		cache:  cache.New(),
		Min:    math.NaN(),
		Max:    math.NaN(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.colors == nil {
		v.colors = colormap.Gray()
	}
	if v.logger == nil {
		v.logger = log.Default()
	}
	if math.IsNaN(v.Min) || math.IsNaN(v.Max) {
		if h.VoxelMax > h.VoxelMin {
			v.Min, v.Max = h.VoxelMin, h.VoxelMax
		} else {
			v.Min, v.Max = stats.Range(buf)
		}
	}
	if v.Max <= v.Min {
		v.Max = v.Min + 1
	}
	v.logger.Printf("volume %s: %d x %d x %d, %d frame(s), intensity [%g, %g]",
		orderString(h), h.XSpace.SpaceLength, h.YSpace.SpaceLength, h.ZSpace.SpaceLength,
		h.Frames(), v.Min, v.Max)
	return v, nil
}

func orderString(h *models.Header) string {
	return h.Order[0] + "," + h.Order[1] + "," + h.Order[2]
}

// Buffer returns the voxel data.
func (v *Volume) Buffer() slicer.Buffer {
	return v.buf
}

// Logger returns the logger the volume reports through.
func (v *Volume) Logger() *log.Logger {
	return v.logger
}

// ColorMap returns the colour map used for rendering.
func (v *Volume) ColorMap() *colormap.ColorMap {
	return v.colors
}

// Mapping binds the colour map to the volume's intensity window.
func (v *Volume) Mapping() *colormap.Mapping {
	return v.colors.Range(v.Min, v.Max)
}

// Colors returns the mapper slices of this volume are rendered with. rgb8
// voxels already hold packed colours and bypass the colour map.
func (v *Volume) Colors() blend.ColorMapper {
	if v.Header.Datatype == RGB8 {
		return packedRGBA{}
	}
	return v.Mapping()
}

// RGB8 is the datatype of volumes whose voxels are packed RGBA bytes, red
// in the low byte.
const RGB8 = "rgb8"

type packedRGBA struct{}

func (packedRGBA) Color(value float64) color.RGBA {
	p := uint32(value)
	return color.RGBA{R: uint8(p), G: uint8(p >> 8), B: uint8(p >> 16), A: uint8(p >> 24)}
}

// Slice returns the slice along axis at index and time, extracting it on
// first use. The slice is shared with the cache; callers must not modify it.
func (v *Volume) Slice(axis string, index, time int) (*models.Slice, error) {
	a := v.Header.Axis(axis)
	if a == nil {
		return nil, fmt.Errorf("%w: %q", slicer.ErrUnknownAxis, axis)
	}
	number := slicer.PhysicalIndex(a, index)

	return v.cache.GetOrCompute(axis, time, number, func() (*models.Slice, error) {
		s, err := slicer.Extract(v.Header, v.buf, axis, index, time)
		if err != nil {
			return nil, err
		}
		s.Axis = axis
		s.Time = time
		return s, nil
	})
}

// CachedSlices reports how many slices have been extracted so far.
func (v *Volume) CachedSlices() int {
	return v.cache.Len()
}

// SliceImage renders s through Colors, scales the alpha channel by
// s.Alpha and scales the image to physical proportions: each side is its
// voxel count times the step of its axis times zoom. A negative horizontal
// step mirrors the image.
func (v *Volume) SliceImage(s *models.Slice, zoom float64) *image.RGBA {
	if zoom <= 0 {
		zoom = 1
	}
	colors := v.Colors()
	alpha := math.Max(0, math.Min(1, s.Alpha))
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			c := colors.Color(s.Data[y*s.Width+x])
			c.A = uint8(float64(c.A) * alpha)
			img.SetRGBA(x, y, c)
		}
	}
	return scaleToAxes(img, s, zoom)
}

func scaleToAxes(img *image.RGBA, s *models.Slice, zoom float64) *image.RGBA {
	b := img.Bounds()
	width := int(math.Floor(float64(b.Dx()) * stepOf(s.WidthSpace) * zoom))
	height := int(math.Floor(float64(b.Dy()) * stepOf(s.HeightSpace) * zoom))
	return blend.NearestNeighbor(img, width, height)
}

// Image extracts and renders a slice in one call.
func (v *Volume) Image(axis string, index, time int, zoom float64) (*image.RGBA, error) {
	s, err := v.Slice(axis, index, time)
	if err != nil {
		return nil, err
	}
	return v.SliceImage(s, zoom), nil
}

func stepOf(a *models.Axis) float64 {
	if a == nil || a.Step == 0 {
		return 1
	}
	return a.Step
}

// VoxelCoords returns the cursor position in voxel indices.
func (v *Volume) VoxelCoords() (x, y, z int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position[0], v.position[1], v.position[2]
}

// SetVoxelCoords moves the cursor. Positions are not bounds checked.
func (v *Volume) SetVoxelCoords(x, y, z int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = [3]int{x, y, z}
}

// WorldCoords returns the cursor position in world space.
func (v *Volume) WorldCoords() (x, y, z float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.Header
	return h.XSpace.Start + float64(v.position[0])*h.XSpace.Step,
		h.YSpace.Start + float64(v.position[1])*h.YSpace.Step,
		h.ZSpace.Start + float64(v.position[2])*h.ZSpace.Step
}

// SetWorldCoords moves the cursor to the voxel containing the world point.
func (v *Volume) SetWorldCoords(x, y, z float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.Header
	v.position = [3]int{
		worldToVoxel(x, h.XSpace),
		worldToVoxel(y, h.YSpace),
		worldToVoxel(z, h.ZSpace),
	}
}

func worldToVoxel(w float64, a *models.Axis) int {
	return int(math.Floor((w - a.Start) / a.Step))
}

// PreferredZoom returns the largest zoom at which every orthogonal slice
// fits in a width x height panel. The z field of view is measured with the
// x step.
func (v *Volume) PreferredZoom(width, height float64) float64 {
	h := v.Header
	xFOV := float64(h.XSpace.SpaceLength) * math.Abs(h.XSpace.Step)
	yFOV := float64(h.YSpace.SpaceLength) * math.Abs(h.YSpace.Step)
	zFOV := float64(h.ZSpace.SpaceLength) * math.Abs(h.XSpace.Step)
	return math.Min(math.Min(width/xFOV, width/yFOV), math.Min(height/zFOV, height/yFOV))
}
