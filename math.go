package stellarium

import (
	"math"

	"github.com/gonum/floats"
)

const (
	deg2rad = math.Pi / 180

	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// SpeedOfLight is the speed of light in km/s.
	SpeedOfLight = 299792.458
	// GaussianGravConst is the Gaussian gravitational constant k, in
	// AU^(3/2)/day for a heliocentric orbit.
	GaussianGravConst = 0.01720209895
	// J2000 is the Julian day of the J2000.0 epoch.
	J2000 = 2451545.0
)

// norm returns the norm of a given vector which is supposed to be 3x1.
func norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// unit returns the unit vector of a given vector.
func unit(a []float64) (b []float64) {
	n := norm(a)
	if floats.EqualWithinAbs(n, 0, 1e-12) {
		return []float64{0, 0, 0}
	}
	b = make([]float64, len(a))
	for i, val := range a {
		b[i] = val / n
	}
	return
}

// dot performs the inner product.
func dot(a, b []float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// add returns a+b.
func add(a, b []float64) []float64 {
	return []float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// sub returns a-b.
func sub(a, b []float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// scale returns f*a.
func scale(f float64, a []float64) []float64 {
	return []float64{f * a[0], f * a[1], f * a[2]}
}

// Spherical2Cartesian converts ecliptic longitude and latitude (radians) and a
// radius into a Cartesian vector.
func Spherical2Cartesian(lon, lat, r float64) []float64 {
	sLat, cLat := math.Sincos(lat)
	sLon, cLon := math.Sincos(lon)
	return []float64{r * cLat * cLon, r * cLat * sLon, r * sLat}
}

// Deg2rad converts degrees to radians, and enforces only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforces only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}
