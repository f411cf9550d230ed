package header

import (
	"errors"
	"fmt"
	"math"

	"mincslice/internal/models"
)

// ErrMalformedHeader is returned when a header cannot describe a volume.
var ErrMalformedHeader = errors.New("malformed header")

// DefaultDatatype is assumed when a header does not name its voxel type.
const DefaultDatatype = "uint8"

var identityCosines = map[string][3]float64{
	models.XSpace: {1, 0, 0},
	models.YSpace: {0, 1, 0},
	models.ZSpace: {0, 0, 1},
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedHeader, fmt.Sprintf(format, args...))
}

// Normalize parses every numeric field of raw and derives the per-axis slice
// geometry. raw is not modified.
//
// For storage order (o0, o1, o2):
//
//	o0: height=len(o1) width=len(o2) offset=len(o1)*len(o2) slice_length=height*width
//	o1: height=len(o2) width=len(o0) offset=len(o0)
//	o2: height=len(o1) width=len(o0) offset=len(o0)
func Normalize(raw *RawHeader) (*models.Header, error) {
	if raw == nil {
		return nil, malformed("no header")
	}
	if raw.Order == nil {
		return nil, malformed("order is missing")
	}

	order := raw.Order
	h := &models.Header{Datatype: raw.Datatype}
	if h.Datatype == "" {
		h.Datatype = DefaultDatatype
	}

	switch len(order) {
	case 3:
	case 4:
		if _, spatial := identityCosines[order[0]]; spatial {
			return nil, malformed("order has 4 entries but %q is not a time axis", order[0])
		}
		if raw.Time == nil {
			return nil, malformed("order names time axis %q but the time record is missing", order[0])
		}
		t, err := parseTime(raw.Time)
		if err != nil {
			return nil, err
		}
		h.Time = t
		order = order[1:]
	default:
		return nil, malformed("order must have 3 or 4 entries, got %d", len(order))
	}

	seen := make(map[string]bool, 3)
	for i, name := range order {
		if _, ok := identityCosines[name]; !ok {
			return nil, malformed("unknown axis %q in order", name)
		}
		if seen[name] {
			return nil, malformed("axis %q appears twice in order", name)
		}
		seen[name] = true
		h.Order[i] = name
	}

	for _, name := range models.SpatialAxes {
		axis, err := parseAxis(name, raw.axis(name))
		if err != nil {
			return nil, err
		}
		switch name {
		case models.XSpace:
			h.XSpace = axis
		case models.YSpace:
			h.YSpace = axis
		case models.ZSpace:
			h.ZSpace = axis
		}
	}

	if _, ok := h.Samples(); !ok {
		return nil, malformed("%d x %d x %d voxels in %d frame(s) exceeds %d values",
			h.XSpace.SpaceLength, h.YSpace.SpaceLength, h.ZSpace.SpaceLength, h.Frames(), models.MaxSamples)
	}

	deriveGeometry(h)
	return h, nil
}

func deriveGeometry(h *models.Header) {
	order0 := h.Axis(h.Order[0])
	order1 := h.Axis(h.Order[1])
	order2 := h.Axis(h.Order[2])

	order0.Height = order1.SpaceLength
	order0.HeightSpace = order1
	order0.Width = order2.SpaceLength
	order0.WidthSpace = order2

	order1.Height = order2.SpaceLength
	order1.HeightSpace = order2
	order1.Width = order0.SpaceLength
	order1.WidthSpace = order0

	order2.Height = order1.SpaceLength
	order2.HeightSpace = order1
	order2.Width = order0.SpaceLength
	order2.WidthSpace = order0

	order0.Offset = order1.SpaceLength * order2.SpaceLength
	order1.Offset = order0.SpaceLength
	order2.Offset = order0.SpaceLength

	order0.SliceLength = order0.Height * order0.Width
}

func parseLength(owner string, n Number) (int, error) {
	f, err := n.Float()
	if err != nil {
		return 0, malformed("%s.space_length: %v", owner, err)
	}
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, malformed("%s.space_length must be a positive integer, got %v", owner, f)
	}
	return int(f), nil
}

func parseAxis(name string, raw *RawAxis) (*models.Axis, error) {
	if raw == nil {
		return nil, malformed("%s record is missing", name)
	}
	length, err := parseLength(name, raw.SpaceLength)
	if err != nil {
		return nil, err
	}
	start, err := raw.Start.Float()
	if err != nil {
		return nil, malformed("%s.start: %v", name, err)
	}
	step, err := raw.Step.Float()
	if err != nil {
		return nil, malformed("%s.step: %v", name, err)
	}

	axis := &models.Axis{
		Name:             name,
		SpaceLength:      length,
		Start:            start,
		Step:             step,
		DirectionCosines: identityCosines[name],
	}
	if len(raw.DirectionCosines) > 0 {
		if len(raw.DirectionCosines) != 3 {
			return nil, malformed("%s.direction_cosines must have 3 entries", name)
		}
		for i, c := range raw.DirectionCosines {
			v, err := c.Float()
			if err != nil {
				return nil, malformed("%s.direction_cosines[%d]: %v", name, i, err)
			}
			axis.DirectionCosines[i] = v
		}
	}
	return axis, nil
}

// parseTime requires a length; start and step default to 0 and 1 since
// several formats carry no description of the time dimension.
func parseTime(raw *RawAxis) (*models.TimeAxis, error) {
	length, err := parseLength("time", raw.SpaceLength)
	if err != nil {
		return nil, err
	}
	t := &models.TimeAxis{SpaceLength: length, Step: 1}
	if raw.Start != "" {
		if t.Start, err = raw.Start.Float(); err != nil {
			return nil, malformed("time.start: %v", err)
		}
	}
	if raw.Step != "" {
		if t.Step, err = raw.Step.Float(); err != nil {
			return nil, malformed("time.step: %v", err)
		}
	}
	return t, nil
}
