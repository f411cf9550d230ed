package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"mincslice/internal/models"
	"mincslice/pkg/volume"
)

// Viewer renders slices of a loaded volume to images on disk
type Viewer struct {
	// vol is the volume being viewed
	vol *volume.Volume

	// zoom scales rendered slices beyond their physical size
	zoom float64

	// format is the file format used by SaveSliceSequence, "png" or "jpg"
	format string
}

// NewViewer creates a viewer for vol. A non-positive zoom means 1 and an
// empty format means png.
func NewViewer(vol *volume.Volume, zoom float64, format string) *Viewer {
	if zoom <= 0 {
		zoom = 1
	}
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		format = "png"
	}
	return &Viewer{vol: vol, zoom: zoom, format: format}
}

// AxisName maps the short names x, y and z (any case) to the header axis
// names. Full names are returned unchanged.
func AxisName(axis string) (string, error) {
	switch strings.ToLower(axis) {
	case "x", models.XSpace:
		return models.XSpace, nil
	case "y", models.YSpace:
		return models.YSpace, nil
	case "z", models.ZSpace:
		return models.ZSpace, nil
	}
	return "", fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice renders the slice at position along axis in the given time
// frame.
func (v *Viewer) ExtractSlice(axis string, position, time int) (image.Image, error) {
	name, err := AxisName(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	return v.vol.Image(name, position, time, v.zoom)
}

// IntensityAt returns the voxel value at x, y, z in the given time frame.
func (v *Viewer) IntensityAt(x, y, z, time int) (float64, error) {
	h := v.vol.Header
	coords := map[string]int{models.XSpace: x, models.YSpace: y, models.ZSpace: z}
	for _, name := range models.SpatialAxes {
		if c := coords[name]; c < 0 || c >= h.Axis(name).SpaceLength {
			return 0, fmt.Errorf("%s coordinate %d outside volume", name, c)
		}
	}
	if time < 0 || time >= h.Frames() {
		return 0, fmt.Errorf("time %d outside volume", time)
	}

	inner := h.Axis(h.Order[2]).SpaceLength
	middle := h.Axis(h.Order[1]).SpaceLength
	idx := time*h.VoxelCount() +
		coords[h.Order[0]]*middle*inner +
		coords[h.Order[1]]*inner +
		coords[h.Order[2]]
	return v.vol.Buffer().At(idx), nil
}

// ExtractRegion copies a box of voxels, x varying fastest, from one time
// frame.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ, time int) ([]float64, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	h := v.vol.Header
	if startX+sizeX > h.XSpace.SpaceLength || startY+sizeY > h.YSpace.SpaceLength || startZ+sizeZ > h.ZSpace.SpaceLength {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				value, err := v.IntensityAt(startX+x, startY+y, startZ+z, time)
				if err != nil {
					return nil, err
				}
				region[z*sizeX*sizeY+y*sizeX+x] = value
			}
		}
	}
	return region, nil
}

// SaveSlice writes img to filename, as JPEG for .jpg and .jpeg names and as
// PNG otherwise.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
	return png.Encode(file, img)
}

// SaveSliceSequence renders every slice along axis in one time frame into
// outputDir and returns the number of files written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string, time int) (int, error) {
	name, err := AxisName(axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	count := v.vol.Header.Axis(name).SpaceLength
	for pos := 0; pos < count; pos++ {
		img, err := v.ExtractSlice(name, pos, time)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", name[:1], pos, v.format))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return count, nil
}
