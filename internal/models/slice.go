package models

import "math"

// Axis names used throughout MINC-style headers.
const (
	XSpace = "xspace"
	YSpace = "yspace"
	ZSpace = "zspace"
	Time   = "time"
)

// SpatialAxes lists the three spatial axis names in canonical x, y, z order.
var SpatialAxes = [3]string{XSpace, YSpace, ZSpace}

// Axis describes one spatial dimension of a voxel grid
type Axis struct {
	// Name is one of xspace, yspace or zspace
	Name string

	// SpaceLength is the number of voxels along this axis
	SpaceLength int

	// Start is the world coordinate of the first voxel
	Start float64

	// Step is the signed physical distance between voxels. A negative step
	// means storage runs opposite to the anatomical positive direction.
	Step float64

	// DirectionCosines orient the axis in world space
	DirectionCosines [3]float64

	// Height and Width are the dimensions of a slice taken along this axis.
	Height int
	Width  int

	// HeightSpace and WidthSpace are the axes that run vertically and
	// horizontally in a slice taken along this axis.
	HeightSpace *Axis
	WidthSpace  *Axis

	// Offset is the stride multiplier for one step along this axis
	Offset int

	// SliceLength is Height*Width. Only set on the outermost storage axis.
	SliceLength int
}

// TimeAxis describes the optional fourth dimension
type TimeAxis struct {
	SpaceLength int
	Start       float64
	Step        float64
}

// Header is a normalized volume header
type Header struct {
	// Order is the storage order of the spatial axes, outermost first
	Order [3]string

	XSpace *Axis
	YSpace *Axis
	ZSpace *Axis

	// Time is nil for static volumes
	Time *TimeAxis

	// Datatype is the MINC voxel type name, e.g. "uint8" or "float32"
	Datatype string

	// VoxelMin and VoxelMax are the intensity range found in the data
	VoxelMin float64
	VoxelMax float64
}

// Axis returns the axis record with the given name, or nil.
func (h *Header) Axis(name string) *Axis {
	switch name {
	case XSpace:
		return h.XSpace
	case YSpace:
		return h.YSpace
	case ZSpace:
		return h.ZSpace
	}
	return nil
}

// Order0 returns the outermost storage axis.
func (h *Header) Order0() *Axis {
	return h.Axis(h.Order[0])
}

// Frames returns the number of time frames, 1 for static volumes.
func (h *Header) Frames() int {
	if h.Time == nil || h.Time.SpaceLength < 1 {
		return 1
	}
	return h.Time.SpaceLength
}

// VoxelCount is the number of voxels in a single time frame.
func (h *Header) VoxelCount() int {
	return h.XSpace.SpaceLength * h.YSpace.SpaceLength * h.ZSpace.SpaceLength
}

// MaxSamples bounds the number of values a volume may hold across all of
// its time frames.
const MaxSamples = math.MaxInt32

// Samples returns VoxelCount times Frames. ok is false when a length is
// negative or the product exceeds MaxSamples.
func (h *Header) Samples() (n int, ok bool) {
	n = 1
	for _, length := range [4]int{h.XSpace.SpaceLength, h.YSpace.SpaceLength, h.ZSpace.SpaceLength, h.Frames()} {
		if length < 0 || (length > 0 && n > MaxSamples/length) {
			return 0, false
		}
		n *= length
	}
	return n, true
}

// Slice is a 2D cross-section of a volume along one axis
type Slice struct {
	// Data holds Width*Height intensity values, row-major, top row first
	Data []float64

	// Width and Height are the dimensions of Data
	Width  int
	Height int

	// WidthSpace and HeightSpace identify the axes mapped to the horizontal
	// and vertical screen directions.
	WidthSpace  *Axis
	HeightSpace *Axis

	// Axis is the axis the slice was taken along
	Axis string

	// Number is the physical slice index after sign correction
	Number int

	// Time is the time frame the slice was taken from
	Time int

	// Alpha is the blend weight. Reset to 1 every time a slice is served.
	Alpha float64
}
