package slicer

// Buffer is a read-only flat voxel array, row-major in the header's
// storage order with time frames outermost.
type Buffer interface {
	Len() int
	At(i int) float64
}

// Sample is the set of voxel element types found in MINC, MGH and NIfTI data.
type Sample interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

// Voxels adapts a typed slice to Buffer.
type Voxels[T Sample] []T

func (v Voxels[T]) Len() int { return len(v) }

func (v Voxels[T]) At(i int) float64 { return float64(v[i]) }

// reader clamps reads to the buffer. The extraction loops deliberately walk
// one row or element past the plane at some edges; those reads see 0.
type reader struct {
	buf Buffer
	n   int
}

func newReader(buf Buffer) reader {
	return reader{buf: buf, n: buf.Len()}
}

func (r reader) at(i int) float64 {
	if i < 0 || i >= r.n {
		return 0
	}
	return r.buf.At(i)
}

// put drops writes that fall outside dst.
func put(dst []float64, i int, v float64) {
	if i >= 0 && i < len(dst) {
		dst[i] = v
	}
}

func get(src []float64, i int) float64 {
	if i < 0 || i >= len(src) {
		return 0
	}
	return src[i]
}
