package loader

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	"mincslice/internal/models"
	"mincslice/pkg/header"
	"mincslice/pkg/slicer"
	"mincslice/pkg/volume"
)

// MGHHeaderSize is the fixed size of an MGH header. Voxel data follows it.
const MGHHeaderSize = 284

// ErrNotMGH is returned when the header version field is not 1 in either
// byte order.
var ErrNotMGH = errors.New("not an MGH file")

// MGH voxel types
const (
	mghUChar = 0
	mghInt   = 1
	mghFloat = 3
	mghShort = 4
)

// defaultDircos is used when the header carries no valid transform. Rows
// are the file's column, row and slice axes followed by the centre.
var defaultDircos = [4][3]float64{
	{-1, 0, 0},
	{0, 0, -1},
	{0, 1, 0},
	{0, 0, 0},
}

type mghHeader struct {
	order    binary.ByteOrder
	ndims    int
	sizes    [4]int
	datatype int
	raw      *header.RawHeader
}

// LoadMGH reads an MGH volume, or an MGZ volume when the stream starts with
// the gzip magic number.
func LoadMGH(ctx context.Context, r io.Reader, opts ...volume.Option) (*volume.Volume, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open MGZ stream: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	hdr := make([]byte, MGHHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("failed to read MGH header: %w", err)
	}
	m, err := parseMGHHeader(hdr)
	if err != nil {
		return nil, err
	}
	h, err := header.Normalize(m.raw)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size, err := mghVoxelSize(m.datatype)
	if err != nil {
		return nil, err
	}
	samples, ok := h.Samples()
	if !ok {
		return nil, fmt.Errorf("%w: volume too large", ErrNotMGH)
	}
	// The header's size is untrusted until the data arrives.
	want := int64(samples) * int64(size)
	data, err := io.ReadAll(io.LimitReader(r, want))
	if err != nil {
		return nil, fmt.Errorf("failed to read MGH voxel data: %w", err)
	}
	if int64(len(data)) < want {
		return nil, fmt.Errorf("failed to read MGH voxel data: %w: have %d of %d bytes",
			io.ErrUnexpectedEOF, len(data), want)
	}

	var buf slicer.Buffer
	switch m.datatype {
	case mghUChar:
		buf = slicer.Voxels[uint8](data)
	case mghInt:
		buf, err = decode[int32](data, m.order, size)
	case mghFloat:
		buf, err = decode[float32](data, m.order, size)
	case mghShort:
		buf, err = decode[int16](data, m.order, size)
	}
	if err != nil {
		return nil, err
	}

	v, err := newVolume(h, buf, opts)
	if err != nil {
		return nil, err
	}
	v.Logger().Printf("loaded MGH volume: %d dimensions, %s of %s voxels",
		m.ndims, humanize.Bytes(uint64(len(data))), h.Datatype)
	return v, nil
}

func mghVoxelSize(datatype int) (int, error) {
	switch datatype {
	case mghUChar:
		return 1, nil
	case mghInt, mghFloat:
		return 4, nil
	case mghShort:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: MGH type %d", ErrUnsupportedDataType, datatype)
}

var mghTypeNames = map[int]string{
	mghUChar: "uint8",
	mghInt:   "int32",
	mghFloat: "float32",
	mghShort: "int16",
}

// parseMGHHeader decodes the fixed header and derives a MINC header from
// its transform. The first file dimension varies fastest.
func parseMGHHeader(b []byte) (*mghHeader, error) {
	m := &mghHeader{}
	switch binary.LittleEndian.Uint32(b[0:4]) {
	case 0x00000001:
		m.order = binary.LittleEndian
	case 0x01000000:
		m.order = binary.BigEndian
	default:
		return nil, ErrNotMGH
	}

	for m.ndims = 0; m.ndims < 4; m.ndims++ {
		n := m.order.Uint32(b[4+4*m.ndims:])
		if n <= 1 {
			break
		}
		m.sizes[m.ndims] = int(n)
	}
	if m.ndims < 3 {
		return nil, fmt.Errorf("%w: cannot handle %d-dimensional images", ErrNotMGH, m.ndims)
	}

	m.datatype = int(m.order.Uint32(b[20:]))
	if _, ok := mghTypeNames[m.datatype]; !ok {
		return nil, fmt.Errorf("%w: MGH type %d", ErrUnsupportedDataType, m.datatype)
	}

	spacing := [3]float64{1, 1, 1}
	dircos := defaultDircos
	if m.order.Uint16(b[28:]) != 0 {
		off := 30
		for i := 0; i < 3; i++ {
			spacing[i] = float64(math.Float32frombits(m.order.Uint32(b[off:])))
			off += 4
		}
		for i := 0; i < 4; i++ {
			for j := 0; j < 3; j++ {
				dircos[i][j] = float64(math.Float32frombits(m.order.Uint32(b[off:])))
				off += 4
			}
		}
	}

	// Each file axis is named after the world axis its cosine points along.
	var names [3]string
	var axisIndex [3]int
	for axis := 0; axis < 3; axis++ {
		cx := math.Abs(dircos[axis][0])
		cy := math.Abs(dircos[axis][1])
		cz := math.Abs(dircos[axis][2])
		names[axis] = models.XSpace
		if cy > cx && cy > cz {
			names[axis], axisIndex[axis] = models.YSpace, 1
		}
		if cz > cx && cz > cy {
			names[axis], axisIndex[axis] = models.ZSpace, 2
		}
	}

	var xform [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			xform[i][j] = dircos[j][i] * spacing[i]
		}
	}
	for i := 0; i < 3; i++ {
		centre := 0.0
		for j := 0; j < 3; j++ {
			centre += xform[i][j] * (float64(m.sizes[j]) / 2)
		}
		xform[i][3] = dircos[3][i] - centre
	}

	var transform [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			col := j
			if j < 3 {
				col = axisIndex[j]
			}
			transform[i][col] = xform[i][j]
		}
	}
	g := TransformToMinc(transform)

	raw := &header.RawHeader{
		Order:    []string{names[2], names[1], names[0]},
		Datatype: mghTypeNames[m.datatype],
	}
	for i, name := range models.SpatialAxes {
		ra := &header.RawAxis{
			Start:            header.Num(g.Start[i]),
			Step:             header.Num(g.Step[i]),
			DirectionCosines: make([]header.Number, 3),
		}
		for c := 0; c < 3; c++ {
			ra.DirectionCosines[c] = header.Num(g.DirectionCosines[i][c])
		}
		setRawAxis(raw, name, ra)
	}
	for axis, name := range names {
		if ra := rawAxis(raw, name); ra != nil {
			ra.SpaceLength = header.Num(float64(m.sizes[axis]))
		}
	}
	if m.ndims == 4 {
		raw.Order = append([]string{models.Time}, raw.Order...)
		raw.Time = &header.RawAxis{
			SpaceLength: header.Num(float64(m.sizes[3])),
			Start:       header.Num(0),
			Step:        header.Num(1),
		}
	}
	m.raw = raw
	return m, nil
}

func setRawAxis(raw *header.RawHeader, name string, a *header.RawAxis) {
	switch name {
	case models.XSpace:
		raw.XSpace = a
	case models.YSpace:
		raw.YSpace = a
	case models.ZSpace:
		raw.ZSpace = a
	}
}

func rawAxis(raw *header.RawHeader, name string) *header.RawAxis {
	switch name {
	case models.XSpace:
		return raw.XSpace
	case models.YSpace:
		return raw.YSpace
	case models.ZSpace:
		return raw.ZSpace
	}
	return nil
}
