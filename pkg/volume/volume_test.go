package volume

import (
	"errors"
	"image/color"
	"io"
	"log"
	"testing"

	"mincslice/internal/models"
	"mincslice/pkg/blend"
	"mincslice/pkg/header"
	"mincslice/pkg/slicer"
)

var quiet = WithLogger(log.New(io.Discard, "", 0))

// testHeader builds an x,y,z ordered header with x=2, y=3, z=4 voxels, so
// voxel (x, y, z) sits at x*12 + y*4 + z.
func testHeader(t *testing.T, zStep float64) *models.Header {
	t.Helper()
	raw := &header.RawHeader{
		Order:  []string{models.XSpace, models.YSpace, models.ZSpace},
		XSpace: &header.RawAxis{SpaceLength: header.Num(2), Start: header.Num(-10), Step: header.Num(1)},
		YSpace: &header.RawAxis{SpaceLength: header.Num(3), Start: header.Num(0), Step: header.Num(2)},
		ZSpace: &header.RawAxis{SpaceLength: header.Num(4), Start: header.Num(0), Step: header.Num(zStep)},
	}
	h, err := header.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return h
}

func testVoxels() slicer.Voxels[uint8] {
	v := make(slicer.Voxels[uint8], 24)
	for i := range v {
		v[i] = uint8(i)
	}
	return v
}

func newTestVolume(t *testing.T, zStep float64, opts ...Option) *Volume {
	t.Helper()
	v, err := New(testHeader(t, zStep), testVoxels(), append([]Option{quiet}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

func TestNew(t *testing.T) {
	v := newTestVolume(t, 1)
	if v.Min != 0 || v.Max != 23 {
		t.Errorf("Expected data range [0, 23], got [%v, %v]", v.Min, v.Max)
	}
	if v.ColorMap() == nil || v.ColorMap().Len() != 256 {
		t.Error("Expected default gray color map")
	}

	fixed := newTestVolume(t, 1, WithRange(5, 10))
	if fixed.Min != 5 || fixed.Max != 10 {
		t.Errorf("Expected fixed range [5, 10], got [%v, %v]", fixed.Min, fixed.Max)
	}

	if _, err := New(nil, testVoxels(), quiet); !errors.Is(err, slicer.ErrNoHeader) {
		t.Errorf("Expected ErrNoHeader, got %v", err)
	}
	if _, err := New(testHeader(t, 1), testVoxels()[:10], quiet); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer, got %v", err)
	}
}

func TestSliceIsCached(t *testing.T) {
	v := newTestVolume(t, 1)

	s1, err := v.Slice(models.ZSpace, 0, 0)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	expected := []float64{0, 12, 4, 16, 8, 20}
	for i := range expected {
		if s1.Data[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, s1.Data)
		}
	}
	if s1.Axis != models.ZSpace || s1.Time != 0 {
		t.Errorf("Expected axis and time to be stamped, got %q %d", s1.Axis, s1.Time)
	}

	s1.Alpha = 0.2
	s2, err := v.Slice(models.ZSpace, 0, 0)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if s1 != s2 {
		t.Error("Expected the same slice from the cache")
	}
	if s2.Alpha != 1 {
		t.Errorf("Expected alpha reset to 1, got %v", s2.Alpha)
	}
	if v.CachedSlices() != 1 {
		t.Errorf("Expected 1 cached slice, got %d", v.CachedSlices())
	}
}

func TestSliceNumberStableAcrossHits(t *testing.T) {
	v := newTestVolume(t, -1)

	first, err := v.Slice(models.ZSpace, 1, 0)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if first.Number != 3 {
		t.Errorf("Expected physical slice 3, got %d", first.Number)
	}
	again, err := v.Slice(models.ZSpace, 1, 0)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if again != first || again.Number != 3 {
		t.Errorf("Expected cached slice 3, got %d", again.Number)
	}
}

func TestSliceErrors(t *testing.T) {
	v := newTestVolume(t, 1)
	if _, err := v.Slice("wspace", 0, 0); !errors.Is(err, slicer.ErrUnknownAxis) {
		t.Errorf("Expected ErrUnknownAxis, got %v", err)
	}
	if _, err := v.Slice(models.ZSpace, 4, 0); !errors.Is(err, slicer.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
	if v.CachedSlices() != 0 {
		t.Errorf("Expected failed extractions not to be cached, got %d", v.CachedSlices())
	}
}

func TestSliceImage(t *testing.T) {
	v := newTestVolume(t, 1)
	img, err := v.Image(models.ZSpace, 0, 0, 2)
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	// width 2 voxels * step 1 * zoom 2, height 3 voxels * step 2 * zoom 2
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 12 {
		t.Fatalf("Expected 4x12 image, got %v", img.Bounds())
	}
	if c := img.RGBAAt(0, 0); c.R != 0 || c.A != 255 {
		t.Errorf("Expected opaque black for intensity 0, got %v", c)
	}
	if c := img.RGBAAt(3, 11); c.R < 200 {
		t.Errorf("Expected bright pixel for intensity 20, got %v", c)
	}
}

// mirroredVolume has a single z slice, two voxels wide, on an x axis with a
// negative step.
func mirroredVolume(t *testing.T, xStep float64) *Volume {
	t.Helper()
	raw := &header.RawHeader{
		Order:  []string{models.ZSpace, models.YSpace, models.XSpace},
		XSpace: &header.RawAxis{SpaceLength: header.Num(2), Start: header.Num(0), Step: header.Num(xStep)},
		YSpace: &header.RawAxis{SpaceLength: header.Num(3), Start: header.Num(0), Step: header.Num(1)},
		ZSpace: &header.RawAxis{SpaceLength: header.Num(1), Start: header.Num(0), Step: header.Num(1)},
	}
	h, err := header.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	v, err := New(h, slicer.Voxels[uint8]{0, 0, 0, 250, 40, 30}, quiet)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

func TestSliceImageNegativeStepMirrors(t *testing.T) {
	for _, step := range []float64{1, -1} {
		v := mirroredVolume(t, step)
		s, err := v.Slice(models.ZSpace, 0, 0)
		if err != nil {
			t.Fatalf("Slice failed: %v", err)
		}
		img := v.SliceImage(s, 1)
		if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 3 {
			t.Fatalf("step %v: expected 2x3 image, got %v", step, img.Bounds())
		}

		mapping := v.Mapping()
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				src := x
				if step < 0 {
					src = s.Width - 1 - x
				}
				want := mapping.Color(s.Data[y*s.Width+src])
				if got := img.RGBAAt(x, y); got != want {
					t.Errorf("step %v: (%d,%d) expected %v, got %v", step, x, y, want, got)
				}
			}
		}
	}

	// The bottom row holds 40 and 30; mirrored, 30 comes first.
	v := mirroredVolume(t, -1)
	img, err := v.Image(models.ZSpace, 0, 0, 1)
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	s, _ := v.Slice(models.ZSpace, 0, 0)
	if left, right := img.RGBAAt(0, 2), img.RGBAAt(1, 2); left != v.Mapping().Color(s.Data[5]) || right != v.Mapping().Color(s.Data[4]) {
		t.Errorf("Expected mirrored bottom row, got %v %v", left, right)
	}
}

func TestSliceImageAlpha(t *testing.T) {
	v := newTestVolume(t, 1)
	s, err := v.Slice(models.ZSpace, 0, 0)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	faded := *s
	faded.Alpha = 0.5
	img := v.SliceImage(&faded, 1)
	if c := img.RGBAAt(0, 0); c.A != 127 {
		t.Errorf("Expected alpha 127 at half opacity, got %v", c)
	}
	if c := v.SliceImage(s, 1).RGBAAt(0, 0); c.A != 255 {
		t.Errorf("Expected opaque pixel, got %v", c)
	}
}

func TestPackedColors(t *testing.T) {
	h := testHeader(t, 1)
	h.Datatype = RGB8
	packed := slicer.Voxels[uint32]{0xff0000ff, 0xffff0000}
	buf := make(slicer.Voxels[uint32], 24)
	copy(buf, packed)

	v, err := New(h, buf, quiet)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	colors := v.Colors()
	if c := colors.Color(float64(packed[0])); c != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected red, got %v", c)
	}
	if c := colors.Color(float64(packed[1])); c != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("Expected blue, got %v", c)
	}

	o, err := NewOverlay(v)
	if err != nil {
		t.Fatalf("NewOverlay failed: %v", err)
	}
	if err := o.SetBlendRatios([]float64{1}); err != nil {
		t.Fatalf("SetBlendRatios failed: %v", err)
	}
	// x-major storage: voxel 0 is (0,0,0), the first pixel of z slice 0.
	img, err := o.Image(models.ZSpace, 0, 0, 1)
	if err != nil {
		t.Fatalf("Overlay image failed: %v", err)
	}
	if c := img.RGBAAt(0, 0); c != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected red overlay pixel, got %v", c)
	}
}

func TestNewRejectsOversizedHeader(t *testing.T) {
	h := testHeader(t, 1)
	for _, a := range []*models.Axis{h.XSpace, h.YSpace, h.ZSpace} {
		a.SpaceLength = 1 << 30
	}
	if _, err := New(h, testVoxels(), quiet); !errors.Is(err, header.ErrMalformedHeader) {
		t.Errorf("Expected ErrMalformedHeader, got %v", err)
	}
}

func TestCoords(t *testing.T) {
	v := newTestVolume(t, 1)

	v.SetWorldCoords(-9, 3, 2)
	x, y, z := v.VoxelCoords()
	if x != 1 || y != 1 || z != 2 {
		t.Errorf("Expected voxel (1, 1, 2), got (%d, %d, %d)", x, y, z)
	}
	wx, wy, wz := v.WorldCoords()
	if wx != -9 || wy != 2 || wz != 2 {
		t.Errorf("Expected world (-9, 2, 2), got (%v, %v, %v)", wx, wy, wz)
	}

	v.SetVoxelCoords(0, 2, 3)
	if x, y, z := v.VoxelCoords(); x != 0 || y != 2 || z != 3 {
		t.Errorf("Expected voxel (0, 2, 3), got (%d, %d, %d)", x, y, z)
	}
}

func TestPreferredZoom(t *testing.T) {
	v := newTestVolume(t, 1)
	// fields of view: x 2, y 6, z 4 (measured with the x step)
	if zoom := v.PreferredZoom(12, 12); zoom != 2 {
		t.Errorf("Expected zoom 2, got %v", zoom)
	}
	if zoom := v.PreferredZoom(60, 8); zoom != 1.3333333333333333 {
		t.Errorf("Expected zoom 4/3, got %v", zoom)
	}
}

func TestOverlay(t *testing.T) {
	base := newTestVolume(t, 1)
	coarse := newTestVolume(t, 2)

	o, err := NewOverlay(base, coarse)
	if err != nil {
		t.Fatalf("NewOverlay failed: %v", err)
	}
	if r := o.BlendRatios(); len(r) != 2 || r[0] != 0.5 || r[1] != 0.5 {
		t.Errorf("Expected equal ratios, got %v", r)
	}

	slices, err := o.Slice(models.ZSpace, 3, 0)
	if err != nil {
		t.Fatalf("Overlay slice failed: %v", err)
	}
	// step ratio 2: slice 3 maps to round(1.5) = 2
	if slices[0].Number != 3 || slices[1].Number != 2 {
		t.Errorf("Expected slice numbers 3 and 2, got %d and %d", slices[0].Number, slices[1].Number)
	}

	img, err := o.Image(models.ZSpace, 3, 0, 1)
	if err != nil {
		t.Fatalf("Overlay image failed: %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 6 {
		t.Errorf("Expected 2x6 image, got %v", img.Bounds())
	}
}

func TestOverlayBlendRatios(t *testing.T) {
	o, err := NewOverlay(newTestVolume(t, 1), newTestVolume(t, 1))
	if err != nil {
		t.Fatalf("NewOverlay failed: %v", err)
	}
	if err := o.SetBlendRatios([]float64{0.8, 0.2}); err != nil {
		t.Fatalf("SetBlendRatios failed: %v", err)
	}
	if r := o.BlendRatios(); r[0] != 0.8 || r[1] != 0.2 {
		t.Errorf("Expected [0.8 0.2], got %v", r)
	}

	for _, bad := range [][]float64{{0.8, 0.8}, {1}, {-1, 0.5}} {
		if err := o.SetBlendRatios(bad); !errors.Is(err, blend.ErrBadAlpha) {
			t.Errorf("ratios %v: expected ErrBadAlpha, got %v", bad, err)
		}
	}
	if r := o.BlendRatios(); r[0] != 0.8 {
		t.Errorf("Expected rejected ratios to leave state unchanged, got %v", r)
	}

	if _, err := NewOverlay(); !errors.Is(err, ErrEmptyOverlay) {
		t.Errorf("Expected ErrEmptyOverlay, got %v", err)
	}
}
