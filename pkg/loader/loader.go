// Package loader reads MINC (JSON header plus raw data) and MGH/MGZ volumes
// from disk or any io.Reader.
package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mincslice/internal/models"
	"mincslice/pkg/slicer"
	"mincslice/pkg/stats"
	"mincslice/pkg/volume"
)

var (
	// ErrUnsupportedDataType is returned for voxel types the loaders cannot
	// decode.
	ErrUnsupportedDataType = errors.New("unsupported data type")

	// ErrUnknownFormat is returned by Open for unrecognised file extensions.
	ErrUnknownFormat = errors.New("unknown volume format")
)

// Open loads the volume at path. ".mgh" and ".mgz" files are read as MGH;
// ".json" and ".header" files are read as MINC headers with the voxel data
// in a sibling ".raw" file.
func Open(ctx context.Context, path string, opts ...volume.Option) (*volume.Volume, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mgh", ".mgz":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open volume: %w", err)
		}
		defer f.Close()
		return LoadMGH(ctx, f, opts...)

	case ".json", ".header":
		hf, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open header: %w", err)
		}
		defer hf.Close()

		rawPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".raw"
		rf, err := os.Open(rawPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open voxel data: %w", err)
		}
		defer rf.Close()
		return LoadMINC(ctx, hf, rf, opts...)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// decode converts raw bytes into typed voxels of size bytes each.
func decode[T slicer.Sample](data []byte, order binary.ByteOrder, size int) (slicer.Voxels[T], error) {
	if len(data)%size != 0 {
		return nil, fmt.Errorf("voxel data length %d is not a multiple of %d", len(data), size)
	}
	out := make(slicer.Voxels[T], len(data)/size)
	if err := binary.Read(bytes.NewReader(data), order, []T(out)); err != nil {
		return nil, fmt.Errorf("failed to decode voxels: %w", err)
	}
	return out, nil
}

// newVolume stamps the voxel range on h and wraps it in a Volume.
func newVolume(h *models.Header, buf slicer.Buffer, opts []volume.Option) (*volume.Volume, error) {
	h.VoxelMin, h.VoxelMax = stats.Range(buf)
	return volume.New(h, buf, opts...)
}
