package stellarium

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m *mat64.Dense, v []float64) (o []float64) {
	vVec := mat64.NewVector(len(v), v)
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

// PQW2Ecliptic converts a vector from the orbital plane frame (pericenter on
// the +X axis) to the parent's ecliptic/equatorial frame given the
// inclination, argument of pericenter and ascending node longitude.
func PQW2Ecliptic(i, ω, Ω float64, vI []float64) []float64 {
	var m mat64.Dense
	m.Mul(R3(-Ω), R1(-i))
	m.Mul(&m, R3(-ω))
	return MxV33(&m, vI)
}

// eclipticToParentEquator builds the rotation from the parent's ecliptic frame
// into the frame tilted by the parent's rotational obliquity and ascending
// node. The J2000 node longitude aligns the in-plane origin with the J2000
// node and is only non-zero when the parent body is itself orbiting.
func eclipticToParentEquator(obliquity, ascendingNode, j2000Longitude float64) *mat64.Dense {
	var m mat64.Dense
	m.Mul(R3(-ascendingNode), R1(-obliquity))
	if j2000Longitude != 0 {
		m.Mul(&m, R3(-j2000Longitude))
	}
	return &m
}
