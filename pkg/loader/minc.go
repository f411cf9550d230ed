package loader

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"mincslice/pkg/header"
	"mincslice/pkg/slicer"
	"mincslice/pkg/volume"
)

// LoadMINC reads a MINC volume exported as a JSON header and a raw
// little-endian voxel stream.
func LoadMINC(ctx context.Context, headerText, raw io.Reader, opts ...volume.Option) (*volume.Volume, error) {
	text, err := io.ReadAll(headerText)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	rh, err := header.ParseJSON(text)
	if err != nil {
		return nil, err
	}
	h, err := header.Normalize(rh)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read voxel data: %w", err)
	}
	buf, err := decodeMINC(h.Datatype, data)
	if err != nil {
		return nil, err
	}

	v, err := newVolume(h, buf, opts)
	if err != nil {
		return nil, err
	}
	v.Logger().Printf("loaded MINC volume: %s of %s voxels", humanize.Bytes(uint64(len(data))), h.Datatype)
	return v, nil
}

func decodeMINC(datatype string, data []byte) (slicer.Buffer, error) {
	le := binary.LittleEndian
	switch datatype {
	case "int8":
		return decode[int8](data, le, 1)
	case "uint8":
		return slicer.Voxels[uint8](data), nil
	case "int16":
		return decode[int16](data, le, 2)
	case "uint16":
		return decode[uint16](data, le, 2)
	case "int32":
		return decode[int32](data, le, 4)
	case "uint32", volume.RGB8:
		return decode[uint32](data, le, 4)
	case "float32":
		return decode[float32](data, le, 4)
	case "float64":
		return decode[float64](data, le, 8)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDataType, datatype)
}
