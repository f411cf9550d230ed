package loader

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Geometry is the MINC description of a voxel-to-world transform, indexed
// x, y, z.
type Geometry struct {
	Step             [3]float64
	Start            [3]float64
	DirectionCosines [3][3]float64
}

// TransformToMinc decomposes a 3x4 voxel-to-world transform into MINC
// steps, starts and direction cosines. Columns 0-2 hold the x, y and z voxel
// axes and column 3 the origin.
func TransformToMinc(t [3][4]float64) Geometry {
	var g Geometry

	for i := 0; i < 3; i++ {
		mag := magnitude(t[i][:3])
		if t[i][i] < 0 {
			mag = -mag
		}
		g.Step[i] = mag
	}

	for axis := 0; axis < 3; axis++ {
		for i := 0; i < 3; i++ {
			g.DirectionCosines[axis][i] = t[i][axis] / g.Step[axis]
		}
	}

	// Solve cosines * start = origin by Cramer's rule.
	origin := [3]float64{t[0][3], t[1][3], t[2][3]}
	x, y, z := g.DirectionCosines[0], g.DirectionCosines[1], g.DirectionCosines[2]
	denom := det3(x, y, z)
	g.Start[0] = det3(origin, y, z) / denom
	g.Start[1] = det3(x, origin, z) / denom
	g.Start[2] = det3(x, y, origin) / denom

	return g
}

// magnitude is the Euclidean length of v, or 1 for a zero vector.
func magnitude(v []float64) float64 {
	dot := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
	if dot <= 0 {
		dot = 1
	}
	return math.Sqrt(dot)
}

// det3 is the determinant of the matrix with rows r0, r1, r2.
func det3(r0, r1, r2 [3]float64) float64 {
	m := mat.NewDense(3, 3, []float64{
		r0[0], r0[1], r0[2],
		r1[0], r1[1], r1[2],
		r2[0], r2[1], r2[2],
	})
	return mat.Det(m)
}
