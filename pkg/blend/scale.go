package blend

import (
	"image"

	"golang.org/x/image/draw"
)

// NearestNeighbor scales img to width x height. A negative width with a
// positive height mirrors the image horizontally first, which is how slices
// along an axis with a negative step are displayed.
func NearestNeighbor(img *image.RGBA, width, height int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}

	src := img
	if width < 0 && height > 0 {
		src = mirror(img)
	}
	if width < 0 {
		width = -width
	}
	if height < 0 {
		height = -height
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 || b.Empty() {
		return dst
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func mirror(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetRGBA(b.Dx()-1-x, y, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
