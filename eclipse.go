package stellarium

import "math"

// EclipseFactor returns the fraction of sunlight reaching the observer
// position, in [0,1], accounting for shadowing by every body other than the
// star and the observer's own body. It reads the propagator's cached state
// and must be called only after a propagation pass for the same time.
func (s *System) EclipseFactor(observerPos, sunPos []float64, observerBody *Body) float64 {
	finalIllumination := 1.0
	if s.sun == nil {
		return finalIllumination
	}
	RS := s.sun.radius

	for _, b := range s.bodies {
		if b == s.sun || b == observerBody {
			continue
		}
		C := b.HeliocentricEclipticPos()

		v1 := sub(sunPos, observerPos)
		v2 := sub(C, observerPos)
		L := norm(v1)
		l := norm(v2)
		v1 = scale(1/L, v1)
		v2 = scale(1/l, v2)

		// Apparent angular radii of the solar disk and the shadowing body,
		// and the angular separation of their centers.
		R := RS / L
		r := b.radius / l
		d := norm(sub(v1, v2))

		var illumination float64
		switch {
		case d >= R+r: // distance too far
			illumination = 1.0
		case d <= r-R: // umbra
			illumination = 0.0
		case d <= R-r: // penumbra completely inside
			illumination = 1.0 - r*r/(R*R)
		default: // penumbra partially inside
			x := (R*R + d*d - r*r) / (2.0 * d)
			α := math.Acos(x / R)
			β := math.Acos((d - x) / r)
			AR := R * R * (α - 0.5*math.Sin(2.0*α))
			Ar := r * r * (β - 0.5*math.Sin(2.0*β))
			AS := R * R * math.Pi
			illumination = 1.0 - (AR+Ar)/AS
		}

		if illumination < finalIllumination {
			finalIllumination = illumination
		}
	}
	return finalIllumination
}

// EclipseFactorFor evaluates the eclipse factor for a body-bound observer
// using the retarded star position of the last propagation pass.
func (s *System) EclipseFactorFor(observer *Body) float64 {
	return s.EclipseFactor(observer.HeliocentricEclipticPos(), s.lightTimeSunPosition, observer)
}
