package volume

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"mincslice/internal/models"
	"mincslice/pkg/blend"
)

// ErrEmptyOverlay is returned when an overlay is built without volumes.
var ErrEmptyOverlay = errors.New("overlay needs at least one volume")

// Overlay displays several volumes blended together. Slice numbers are
// given in the first volume's voxel grid and rescaled for the others.
type Overlay struct {
	Volumes []*Volume

	mu     sync.Mutex
	ratios []float64
}

// NewOverlay creates an overlay with equal blend ratios.
func NewOverlay(volumes ...*Volume) (*Overlay, error) {
	if len(volumes) == 0 {
		return nil, ErrEmptyOverlay
	}
	o := &Overlay{
		Volumes: volumes,
		ratios:  make([]float64, len(volumes)),
	}
	for i := range o.ratios {
		o.ratios[i] = 1 / float64(len(volumes))
	}
	return o, nil
}

// BlendRatios returns a copy of the current blend ratios.
func (o *Overlay) BlendRatios() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float64(nil), o.ratios...)
}

// SetBlendRatios replaces the blend ratios. There must be one per volume,
// each in [0, 1], summing to at most 1.
func (o *Overlay) SetBlendRatios(ratios []float64) error {
	if len(ratios) != len(o.Volumes) {
		return fmt.Errorf("%w: %d ratios for %d volumes", blend.ErrBadAlpha, len(ratios), len(o.Volumes))
	}
	if err := blend.ValidateAlphas(ratios); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ratios = append(o.ratios[:0], ratios...)
	return nil
}

// SliceNumber converts a slice index in the first volume's grid to the
// index in volume i along axis.
func (o *Overlay) SliceNumber(i int, axis string, index int) (int, error) {
	base := o.Volumes[0].Header.Axis(axis)
	own := o.Volumes[i].Header.Axis(axis)
	if base == nil || own == nil {
		return 0, fmt.Errorf("unknown axis %q", axis)
	}
	if base.Step == 0 || own.Step == 0 {
		return index, nil
	}
	factor := own.Step / base.Step
	return int(math.Round(float64(index) / factor)), nil
}

// Slice returns one slice per member volume at the corresponding position.
func (o *Overlay) Slice(axis string, index, time int) ([]*models.Slice, error) {
	slices := make([]*models.Slice, len(o.Volumes))
	for i, v := range o.Volumes {
		n, err := o.SliceNumber(i, axis, index)
		if err != nil {
			return nil, err
		}
		s, err := v.Slice(axis, n, time)
		if err != nil {
			return nil, fmt.Errorf("overlay volume %d: %w", i, err)
		}
		slices[i] = s
	}
	return slices, nil
}

// Image blends the member slices, each through its own Colors, and scales
// the result by the first volume's steps.
func (o *Overlay) Image(axis string, index, time int, zoom float64) (*image.RGBA, error) {
	slices, err := o.Slice(axis, index, time)
	if err != nil {
		return nil, err
	}
	ratios := o.BlendRatios()

	layers := make([]blend.Layer, len(slices))
	for i, s := range slices {
		layers[i] = blend.Layer{Slice: s, Alpha: ratios[i], Colors: o.Volumes[i].Colors()}
	}
	img, err := blend.Composite(layers)
	if err != nil {
		return nil, err
	}

	if zoom <= 0 {
		zoom = 1
	}
	return scaleToAxes(img, slices[0], zoom), nil
}
