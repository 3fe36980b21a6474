package stellarium

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

const (
	// keplerε is the convergence tolerance of the anomaly solvers, in radians.
	keplerε = 1e-13
	// keplerMaxIter bounds the Newton iterations of the anomaly solvers.
	keplerMaxIter = 50
)

// Orbit produces the position of a body in its parent's reference frame, in
// AU, at a given Julian ephemeris day.
type Orbit interface {
	PositionAtTime(jde float64) []float64
}

// FrameRotation orients an orbital plane into the parent body's equatorial
// frame. All angles in radians. The zero value is the identity and is correct
// whenever the parent body is the central star.
type FrameRotation struct {
	Obliquity       float64
	AscendingNode   float64
	J2000Longitude  float64
	rotationToFrame *mat64.Dense
}

func (f *FrameRotation) matrix() *mat64.Dense {
	if f.rotationToFrame == nil {
		f.rotationToFrame = eclipticToParentEquator(f.Obliquity, f.AscendingNode, f.J2000Longitude)
	}
	return f.rotationToFrame
}

// apply rotates an in-plane position into the parent frame.
func (f *FrameRotation) apply(i, ω, Ω float64, v []float64) []float64 {
	return MxV33(f.matrix(), PQW2Ecliptic(i, ω, Ω, v))
}

// EllipticalOrbit is a closed orbit defined by its pericenter distance (AU),
// eccentricity, orientation angles (radians), mean anomaly at epoch (radians),
// period (days) and reference epoch (JDE).
type EllipticalOrbit struct {
	PericenterDistance float64
	Eccentricity       float64
	Inclination        float64
	AscendingNode      float64
	ArgOfPericenter    float64
	MeanAnomalyAtEpoch float64
	Period             float64
	Epoch              float64
	Frame              FrameRotation
}

// NewEllipticalOrbit creates an elliptical orbit from its elements.
// Angles must be in radians, distances in AU and the period in days.
func NewEllipticalOrbit(q, e, i, Ω, ω, M0, period, epoch float64, frame FrameRotation) *EllipticalOrbit {
	return &EllipticalOrbit{q, e, i, Ω, ω, M0, period, epoch, frame}
}

// SemiMajorAxis returns a, in AU. Undefined (zero) for the parabolic boundary.
func (o *EllipticalOrbit) SemiMajorAxis() float64 {
	if o.Eccentricity == 1.0 {
		return 0
	}
	return o.PericenterDistance / (1 - o.Eccentricity)
}

// MeanAnomaly returns the mean anomaly at the given date, in radians.
func (o *EllipticalOrbit) MeanAnomaly(jde float64) float64 {
	return math.Mod(o.MeanAnomalyAtEpoch+2*math.Pi*(jde-o.Epoch)/o.Period, 2*math.Pi)
}

// PositionAtTime returns the position in the parent frame at the given JDE.
func (o *EllipticalOrbit) PositionAtTime(jde float64) []float64 {
	M := o.MeanAnomaly(jde)
	E := solveKepler(M, o.Eccentricity)
	a := o.SemiMajorAxis()
	sinE, cosE := math.Sincos(E)
	x := a * (cosE - o.Eccentricity)
	y := a * math.Sqrt(1-o.Eccentricity*o.Eccentricity) * sinE
	return o.Frame.apply(o.Inclination, o.ArgOfPericenter, o.AscendingNode, []float64{x, y, 0})
}

// solveKepler solves Kepler's equation E - e*sin(E) = M by Newton iteration.
// M is normalized into [-π,π] first so that the high-eccentricity starting
// guess of ±π converges on both sides of pericenter.
func solveKepler(M, e float64) float64 {
	M = math.Mod(M, 2*math.Pi)
	if M > math.Pi {
		M -= 2 * math.Pi
	} else if M < -math.Pi {
		M += 2 * math.Pi
	}
	E := M
	if e > 0.8 {
		E = math.Copysign(math.Pi, M)
	}
	for iter := 0; iter < keplerMaxIter; iter++ {
		δ := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= δ
		if math.Abs(δ) < keplerε {
			break
		}
	}
	return E
}

// CometOrbit handles bound, parabolic and hyperbolic orbit families, selected
// by eccentricity. Distances in AU, angles in radians, mean motion in
// radians/day, times in JDE.
type CometOrbit struct {
	PericenterDistance float64
	Eccentricity       float64
	Inclination        float64
	AscendingNode      float64
	ArgOfPericenter    float64
	TimeAtPericenter   float64
	// ValidDays is the half-width of the validity window around pericenter
	// passage, in days. Zero or negative means always valid.
	ValidDays  float64
	MeanMotion float64
	Frame      FrameRotation
}

// NewCometOrbit creates an open or near-unbound orbit from its elements.
func NewCometOrbit(q, e, i, Ω, ω, tp, validDays, n float64, frame FrameRotation) *CometOrbit {
	return &CometOrbit{q, e, i, Ω, ω, tp, validDays, n, frame}
}

// Valid reports whether the given date is within the orbit's validity window.
func (o *CometOrbit) Valid(jde float64) bool {
	return o.ValidDays <= 0 || math.Abs(jde-o.TimeAtPericenter) <= o.ValidDays
}

// PositionAtTime returns the position in the parent frame at the given JDE.
// Eccentricity exactly 1.0 selects the parabolic branch.
func (o *CometOrbit) PositionAtTime(jde float64) []float64 {
	dt := jde - o.TimeAtPericenter
	var rCosν, rSinν float64
	switch {
	case o.Eccentricity < 1.0:
		rCosν, rSinν = o.planePositionEll(dt)
	case o.Eccentricity > 1.0:
		rCosν, rSinν = o.planePositionHyp(dt)
	default:
		rCosν, rSinν = o.planePositionPar(dt)
	}
	return o.Frame.apply(o.Inclination, o.ArgOfPericenter, o.AscendingNode, []float64{rCosν, rSinν, 0})
}

func (o *CometOrbit) planePositionEll(dt float64) (rCosν, rSinν float64) {
	e := o.Eccentricity
	a := o.PericenterDistance / (1 - e)
	M := math.Mod(o.MeanMotion*dt, 2*math.Pi)
	E := solveKepler(M, e)
	sinE, cosE := math.Sincos(E)
	rCosν = a * (cosE - e)
	rSinν = a * math.Sqrt(1-e*e) * sinE
	return
}

// planePositionPar solves Barker's equation in closed form, with
// tan(ν/2) = s - 1/s and s³ = z + sqrt(z²+1).
func (o *CometOrbit) planePositionPar(dt float64) (rCosν, rSinν float64) {
	q := o.PericenterDistance
	// MeanMotion for e=1 is 1.5*sqrt(GM/(2q³)), so W = (2/3)*n*dt is the
	// parabolic mean anomaly of Barker's equation D + D³/3 = W.
	z := o.MeanMotion * dt // 3W/2
	s := math.Cbrt(z + math.Sqrt(z*z+1))
	D := s - 1/s
	rCosν = q * (1 - D*D)
	rSinν = 2 * q * D
	return
}

func (o *CometOrbit) planePositionHyp(dt float64) (rCosν, rSinν float64) {
	e := o.Eccentricity
	a := o.PericenterDistance / (e - 1)
	M := o.MeanMotion * dt
	// Solve e*sinh(H) - H = M by Newton iteration.
	H := math.Asinh(M / e)
	for iter := 0; iter < keplerMaxIter; iter++ {
		δ := (e*math.Sinh(H) - H - M) / (e*math.Cosh(H) - 1)
		H -= δ
		if math.Abs(δ) < keplerε {
			break
		}
	}
	rCosν = a * (e - math.Cosh(H))
	rSinν = a * math.Sqrt(e*e-1) * math.Sinh(H)
	return
}
