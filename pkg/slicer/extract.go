// Package slicer extracts oriented 2D slices from flat voxel buffers
// described by a normalized header.
package slicer

import (
	"errors"
	"fmt"

	"mincslice/internal/models"
)

var (
	// ErrNoHeader is returned when extraction is attempted without a
	// normalized header.
	ErrNoHeader = errors.New("no normalized header")

	// ErrUnknownAxis is returned for axis names other than xspace, yspace
	// and zspace.
	ErrUnknownAxis = errors.New("unknown axis")

	// ErrIndexOutOfRange is returned for slice or time indices outside the
	// volume.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// PhysicalIndex maps a requested slice index to the index in storage.
// Axes with a negative step run opposite to the anatomical direction, so
// index i selects plane space_length-i.
func PhysicalIndex(axis *models.Axis, index int) int {
	if axis.Step < 0 {
		return axis.SpaceLength - index
	}
	return index
}

func checkRequest(h *models.Header, buf Buffer, axisName string, index, time int) (*models.Axis, error) {
	if h == nil || h.Order[0] == "" {
		return nil, ErrNoHeader
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: no voxel buffer", ErrNoHeader)
	}
	axis := h.Axis(axisName)
	if axis == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAxis, axisName)
	}
	if index < 0 || index >= axis.SpaceLength {
		return nil, fmt.Errorf("%w: %s slice %d not in [0, %d)", ErrIndexOutOfRange, axisName, index, axis.SpaceLength)
	}
	if time < 0 || time >= h.Frames() {
		return nil, fmt.Errorf("%w: time %d not in [0, %d)", ErrIndexOutOfRange, time, h.Frames())
	}
	return axis, nil
}

// Extract takes the slice along axisName at the requested index and time
// frame and returns it in canonical display orientation. buf is only read.
func Extract(h *models.Header, buf Buffer, axisName string, index, time int) (*models.Slice, error) {
	axis, err := checkRequest(h, buf, axisName, index, time)
	if err != nil {
		return nil, err
	}

	number := PhysicalIndex(axis, index)
	order0 := h.Order0()

	timeOffset := 0
	if h.Time != nil {
		timeOffset = time * order0.Height * order0.Width * order0.SpaceLength
	}

	r := newReader(buf)
	height := axis.Height
	rowLength := axis.Width
	lengthStep := axis.WidthSpace.Step
	heightStep := axis.HeightSpace.Step

	var data []float64
	switch axisName {
	case h.Order[0]:
		data = extractPrimary(r, timeOffset+axis.SliceLength*number, height, rowLength, lengthStep, heightStep)
	case h.Order[1]:
		data = extractSecondary(r, timeOffset+number*order0.Width, order0.SliceLength, height, rowLength, heightStep)
	default:
		data = extractTertiary(r, timeOffset+number, order0.Width, order0.SliceLength, height, rowLength)
	}

	slice := &models.Slice{
		Data:        data,
		Width:       rowLength,
		Height:      height,
		WidthSpace:  axis.WidthSpace,
		HeightSpace: axis.HeightSpace,
		Axis:        axisName,
		Number:      number,
		Time:        time,
		Alpha:       1,
	}
	orient(h, slice)
	return slice, nil
}

// extractPrimary copies a contiguous plane, flipping rows and/or columns so
// that the result is top-to-bottom, left-to-right whatever the storage
// polarity of the two in-plane axes.
func extractPrimary(r reader, base, height, rowLength int, lengthStep, heightStep float64) []float64 {
	sliceLength := height * rowLength
	data := make([]float64, sliceLength)

	if lengthStep > 0 {
		if heightStep > 0 {
			for i := 0; i < sliceLength; i++ {
				data[i] = r.at(base + i)
			}
		} else {
			for i := height; i > 0; i-- {
				for j := 0; j < rowLength; j++ {
					put(data, (height-i)*rowLength+j, r.at(base+i*rowLength+j))
				}
			}
		}
	} else {
		if heightStep < 0 {
			for i := 0; i < height; i++ {
				for j := 0; j < rowLength; j++ {
					put(data, i*rowLength+j, r.at(base+i*rowLength+rowLength-j))
				}
			}
		} else {
			for i := height; i > 0; i-- {
				for j := 0; j < rowLength; j++ {
					put(data, (height-i)*rowLength+j, r.at(base+i*rowLength+rowLength-j))
				}
			}
		}
	}
	return data
}

// extractSecondary gathers a plane whose rows are order0 slices apart.
func extractSecondary(r reader, base, rowOffset, height, rowLength int, heightStep float64) []float64 {
	data := make([]float64, height*rowLength)

	if heightStep < 0 {
		for j := 0; j < height; j++ {
			for k := 0; k < rowLength; k++ {
				put(data, j*rowLength+k, r.at(base+rowOffset*k+j))
			}
		}
	} else {
		for j := height; j >= 0; j-- {
			for k := 0; k < rowLength; k++ {
				put(data, (height-j)*rowLength+k, r.at(base+rowOffset*k+j))
			}
		}
	}
	return data
}

// extractTertiary gathers the innermost-axis plane. Unlike the other two
// cases it never flips on step sign.
func extractTertiary(r reader, base, rowOffset, elementOffset, height, rowLength int) []float64 {
	data := make([]float64, height*rowLength)
	for j := 0; j < height; j++ {
		for k := 0; k < rowLength; k++ {
			data[j*rowLength+k] = r.at(base + rowOffset*j + k*elementOffset)
		}
	}
	return data
}

// orient rotates a freshly extracted slice into canonical orientation:
// xspace slices show yspace across and zspace up, yspace slices show
// xspace across and zspace up, zspace slices show xspace across and
// yspace up.
func orient(h *models.Header, s *models.Slice) {
	var rotate func([]float64, int, int) []float64

	switch s.Axis {
	case models.XSpace:
		if h.XSpace.HeightSpace.Name == models.YSpace {
			rotate = Rotate90Left
			if h.ZSpace.Step < 0 {
				rotate = Rotate90Right
			}
		}
	case models.YSpace:
		if h.YSpace.HeightSpace.Name == models.XSpace {
			rotate = Rotate90Left
			if h.ZSpace.Step < 0 {
				rotate = Rotate90Right
			}
		}
	case models.ZSpace:
		if h.ZSpace.HeightSpace.Name == models.XSpace {
			rotate = Rotate90Left
		}
	}
	if rotate == nil {
		return
	}

	s.Data = rotate(s.Data, s.Width, s.Height)
	s.Width, s.Height = s.Height, s.Width
	s.WidthSpace, s.HeightSpace = s.HeightSpace, s.WidthSpace
}
