// Package stats computes intensity statistics over voxel buffers and
// compares extracted slices.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mincslice/pkg/slicer"
)

// Range returns the smallest and largest value in buf. An empty buffer
// yields 0, 0.
func Range(buf slicer.Buffer) (min, max float64) {
	n := buf.Len()
	if n == 0 {
		return 0, 0
	}
	min = math.Inf(1)
	max = math.Inf(-1)
	for i := 0; i < n; i++ {
		v := buf.At(i)
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return min, max
}

// Values copies buf into a float64 slice.
func Values(buf slicer.Buffer) []float64 {
	out := make([]float64, buf.Len())
	for i := range out {
		out[i] = buf.At(i)
	}
	return out
}

// Summary describes the intensity distribution of a volume
type Summary struct {
	Count   int
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
	Entropy float64
}

// Summarize computes a Summary over every voxel in buf.
func Summarize(buf slicer.Buffer) Summary {
	data := Values(buf)
	if len(data) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		std = 0
	}
	return Summary{
		Count:   len(data),
		Min:     floats.Min(data),
		Max:     floats.Max(data),
		Mean:    mean,
		StdDev:  std,
		Entropy: Entropy(data),
	}
}

const histogramBins = 256

// Entropy is the Shannon entropy in bits of data binned into a 256 bin
// histogram spanning its range.
func Entropy(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	min, max := floats.Min(data), floats.Max(data)
	if max <= min {
		return 0
	}

	hist := make([]float64, histogramBins)
	binWidth := (max - min) / histogramBins
	for _, v := range data {
		bin := int((v - min) / binWidth)
		if bin >= histogramBins {
			bin = histogramBins - 1
		} else if bin < 0 {
			bin = 0
		}
		hist[bin]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// Similarity compares two equally sized slices of the same anatomy
type Similarity struct {
	RMSE              float64
	SSIM              float64
	MutualInformation float64
}

// Compare returns the similarity of a and b. Slices of different lengths
// compare as the zero Similarity.
func Compare(a, b []float64) Similarity {
	if len(a) != len(b) || len(a) == 0 {
		return Similarity{}
	}
	return Similarity{
		RMSE:              rmse(a, b),
		SSIM:              ssim(a, b),
		MutualInformation: mutualInformation(a, b),
	}
}

func rmse(a, b []float64) float64 {
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}

// ssim is the global structural similarity index with the dynamic range
// taken from both inputs.
func ssim(a, b []float64) float64 {
	const k1, k2 = 0.01, 0.03

	l := math.Max(floats.Max(a), floats.Max(b)) - math.Min(floats.Min(a), floats.Min(b))
	if l == 0 {
		l = 1
	}
	c1 := (k1 * l) * (k1 * l)
	c2 := (k2 * l) * (k2 * l)

	muA := stat.Mean(a, nil)
	muB := stat.Mean(b, nil)
	varA, varB, cov := 0.0, 0.0, 0.0
	if len(a) > 1 {
		varA = stat.Variance(a, nil)
		varB = stat.Variance(b, nil)
		cov = stat.Covariance(a, b, nil)
	}

	num := (2*muA*muB + c1) * (2*cov + c2)
	den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// mutualInformation uses the Gaussian approximation
// 0.5 * log(var(a) var(b) / (var(a) var(b) - cov(a,b)^2)).
func mutualInformation(a, b []float64) float64 {
	if len(a) < 2 {
		return 0
	}
	varA := stat.Variance(a, nil)
	varB := stat.Variance(b, nil)
	cov := stat.Covariance(a, b, nil)
	if varA > 0 && varB > 0 {
		if det := varA*varB - cov*cov; det > 0 {
			return 0.5 * math.Log(varA*varB/det)
		}
	}
	return 0
}
