package slicer

// Rotate90Left rotates a width x height plane a quarter turn to the left.
// The result is height wide and width high:
//
//	out[i*height+j] = data[j*width+(width-i)]
//
// At i == 0 the read lands on the first element of the next row, and past
// the end of data on the last row, which reads as 0.
func Rotate90Left(data []float64, width, height int) []float64 {
	out := make([]float64, width*height)
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			out[i*height+j] = get(data, j*width+(width-i))
		}
	}
	return out
}

// Rotate90Right rotates a width x height plane a quarter turn to the right:
//
//	out[i*height+j] = data[(height-j)*width+i]
//
// At j == 0 the read is one row past the end of data and reads as 0.
func Rotate90Right(data []float64, width, height int) []float64 {
	out := make([]float64, width*height)
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			out[i*height+j] = get(data, (height-j)*width+i)
		}
	}
	return out
}
