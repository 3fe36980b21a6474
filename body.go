package stellarium

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// BodyKind discriminates the solar system body subtypes. Every kind from
// KindAsteroid onward is a minor body which may be replaced wholesale on
// reload.
type BodyKind uint8

// The supported body kinds.
const (
	KindStar BodyKind = iota
	KindPlanet
	KindMoon
	KindObserver
	KindArtificial
	KindAsteroid
	KindPlutino
	KindComet
	KindDwarfPlanet
	KindCubewano
	KindScatteredDisc
	KindOortCloud
	KindUndefined
)

var kindNames = map[BodyKind]string{
	KindStar:          "star",
	KindPlanet:        "planet",
	KindMoon:          "moon",
	KindObserver:      "observer",
	KindArtificial:    "artificial",
	KindAsteroid:      "asteroid",
	KindPlutino:       "plutino",
	KindComet:         "comet",
	KindDwarfPlanet:   "dwarf planet",
	KindCubewano:      "cubewano",
	KindScatteredDisc: "scattered disc object",
	KindOortCloud:     "Oort cloud object",
	KindUndefined:     "undefined",
}

// String implements the Stringer interface.
func (k BodyKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "undefined"
}

// ParseBodyKind maps a type string from a body-definition record to its kind.
// Unrecognized strings map to KindUndefined.
func ParseBodyKind(s string) BodyKind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUndefined
}

// Minor reports whether the kind belongs to the replaceable minor-body set.
func (k BodyKind) Minor() bool {
	return k >= KindAsteroid && k != KindUndefined
}

// RotationElements defines the rotational state of a body. Angles in radians,
// periods in days, the offset in degrees, epochs in JDE.
type RotationElements struct {
	Period         float64 // sidereal rotation period
	Offset         float64 // rotation angle at epoch, degrees
	Epoch          float64
	Obliquity      float64
	AscendingNode  float64
	PrecessionRate float64 // radians per day
	// SiderealPeriod is the orbit visualization period, kept for consumers.
	SiderealPeriod float64
}

// Rings describes a planetary ring system, sizes in AU.
type Rings struct {
	InnerRadius float64
	OuterRadius float64
	Texture     string
}

// Body is a single solar system object. The registry owns it; the parent
// pointer is a non-owning back-reference.
type Body struct {
	englishName string
	nativeName  string
	kind        BodyKind
	minor       bool
	hidden      bool

	radius            float64 // mean radius, AU
	oblateness        float64
	color             []float64
	albedo            float64
	roughness         float64
	absoluteMagnitude float64
	slopeParameter    float64
	atmosphere        bool
	halo              bool
	texMap            string
	normalsMap        string
	objModel          string
	rings             *Rings

	// Minor-planet extras.
	minorPlanetNumber      int
	provisionalDesignation string
	semiMajorAxis          float64

	// Comet extras.
	outgasIntensity      float64
	outgasFalloff        float64
	dustWidthFactor      float64
	dustLengthFactor     float64
	dustBrightnessFactor float64

	rot          RotationElements
	positionFunc PositionFunc
	orbit        Orbit // nil for special-function bodies
	closeOrbit   bool

	parent     *Body
	satellites []*Body

	// Per-frame cache, only valid for the simulation time last propagated.
	eclipticPos      []float64 // parent-frame position, AU
	rotLocalToParent *mat64.Dense
	axisRotation     float64 // degrees
	distance         float64 // to observer, AU
	sphereScale      float64
	lastJDE          float64
}

// EnglishName returns the canonical identifying name.
func (b *Body) EnglishName() string { return b.englishName }

// NativeName returns the sky-culture name, empty when none is set.
func (b *Body) NativeName() string { return b.nativeName }

// SetNativeName sets the display-only native name.
func (b *Body) SetNativeName(n string) { b.nativeName = n }

// Kind returns the body kind discriminator.
func (b *Body) Kind() BodyKind { return b.kind }

// Parent returns the parent body, nil for the root star.
func (b *Body) Parent() *Body { return b.parent }

// Satellites returns the child bodies, in registry order.
func (b *Body) Satellites() []*Body { return b.satellites }

// Radius returns the mean radius in AU.
func (b *Body) Radius() float64 { return b.radius }

// Hidden reports whether the body is excluded from display.
func (b *Body) Hidden() bool { return b.hidden }

// Rings returns the ring description, nil when the body has none.
func (b *Body) Rings() *Rings { return b.rings }

// MinorPlanetNumber returns the IAU number, zero when unnumbered.
func (b *Body) MinorPlanetNumber() int { return b.minorPlanetNumber }

// ProvisionalDesignation returns the provisional designation, if any.
func (b *Body) ProvisionalDesignation() string { return b.provisionalDesignation }

// SphereScale returns the display scale applied to the cached state.
func (b *Body) SphereScale() float64 { return b.sphereScale }

// SetSphereScale sets the display scale. The core stores it but does not
// interpret it visually.
func (b *Body) SetSphereScale(s float64) { b.sphereScale = s }

// OrbitValid reports whether the body's orbit is valid at the given date.
// Bodies without a validity window are always valid.
func (b *Body) OrbitValid(jde float64) bool {
	if c, ok := b.orbit.(*CometOrbit); ok {
		return c.Valid(jde)
	}
	return true
}

// ComputePosition computes the parent-frame position at the given JDE. The
// result is cached until the time changes.
func (b *Body) ComputePosition(jde float64) {
	if jde == b.lastJDE && b.eclipticPos != nil {
		return
	}
	b.eclipticPos = b.positionFunc(jde)
	b.lastJDE = jde
}

// EclipticPos returns the cached parent-frame position, AU.
func (b *Body) EclipticPos() []float64 {
	return b.eclipticPos
}

// HeliocentricEclipticPos composes the parent chain up to the root to produce
// the heliocentric position, AU. Parents must have been propagated first.
func (b *Body) HeliocentricEclipticPos() []float64 {
	pos := []float64{0, 0, 0}
	if b.eclipticPos != nil {
		pos = append([]float64(nil), b.eclipticPos...)
	}
	for p := b.parent; p != nil; p = p.parent {
		if p.eclipticPos != nil {
			pos = add(pos, p.eclipticPos)
		}
	}
	return pos
}

// SiderealTime returns the rotation angle of the body around its axis at the
// given date, in degrees. The universal time base is used for planets with a
// civil day convention, the dynamical base otherwise.
func (b *Body) SiderealTime(jd, jde float64) float64 {
	t := jde
	if b.englishName == "Earth" {
		t = jd
	}
	if b.rot.Period == 0 {
		return b.rot.Offset
	}
	rotations := (t - b.rot.Epoch) / b.rot.Period
	rotations -= math.Floor(rotations)
	return rotations*360 + b.rot.Offset
}

// ComputeTransMatrix computes the body's rotation transform for the given
// universal and dynamical dates. Orbital position and axis rotation run on
// slightly different time bases, hence the two arguments.
func (b *Body) ComputeTransMatrix(jd, jde float64) {
	b.axisRotation = b.SiderealTime(jd, jde)
	node := b.rot.AscendingNode - b.rot.PrecessionRate*(jde-b.rot.Epoch)
	b.rotLocalToParent = eclipticToParentEquator(b.rot.Obliquity, node, 0)
}

// RotLocalToParent returns the cached local-to-parent rotation matrix.
func (b *Body) RotLocalToParent() *mat64.Dense { return b.rotLocalToParent }

// AxisRotation returns the cached rotation angle around the axis, degrees.
func (b *Body) AxisRotation() float64 { return b.axisRotation }

// ComputeDistance computes and caches the distance to the observer, AU.
func (b *Body) ComputeDistance(obsHelioPos []float64) float64 {
	b.distance = norm(sub(b.HeliocentricEclipticPos(), obsHelioPos))
	return b.distance
}

// Distance returns the cached distance to the observer, AU.
func (b *Body) Distance() float64 { return b.distance }

// AngularRadius returns the apparent angular radius of the scaled spheroid as
// seen from the observer position, in radians.
func (b *Body) AngularRadius(obsHelioPos []float64) float64 {
	d := norm(sub(b.HeliocentricEclipticPos(), obsHelioPos))
	return math.Atan2(b.radius*b.sphereScale, d)
}

// PhaseAngle returns the sun-body-observer angle in radians.
func (b *Body) PhaseAngle(obsHelioPos []float64) float64 {
	helioPos := b.HeliocentricEclipticPos()
	observerRq := dot(obsHelioPos, obsHelioPos)
	bodyRq := dot(helioPos, helioPos)
	obsBody := sub(obsHelioPos, helioPos)
	observerBodyRq := dot(obsBody, obsBody)
	return math.Acos((observerBodyRq + bodyRq - observerRq) / (2 * math.Sqrt(observerBodyRq*bodyRq)))
}

// Elongation returns the angular distance from the star as seen by the
// observer, in radians.
func (b *Body) Elongation(obsHelioPos []float64) float64 {
	helioPos := b.HeliocentricEclipticPos()
	observerRq := dot(obsHelioPos, obsHelioPos)
	bodyRq := dot(helioPos, helioPos)
	obsBody := sub(obsHelioPos, helioPos)
	observerBodyRq := dot(obsBody, obsBody)
	return math.Acos((observerBodyRq + observerRq - bodyRq) / (2 * math.Sqrt(observerBodyRq*observerRq)))
}

// Phase returns the illuminated fraction of the disk, [0,1].
func (b *Body) Phase(obsHelioPos []float64) float64 {
	return 0.5 * (1 + math.Cos(b.PhaseAngle(obsHelioPos)))
}

// VMagnitude returns the apparent magnitude for the given observer position.
// Minor planets use the H-G photometric system, comets the g-k system, other
// bodies the plain inverse-square brightening of their absolute magnitude.
func (b *Body) VMagnitude(obsHelioPos []float64) float64 {
	if b.absoluteMagnitude <= -99 {
		return 99
	}
	helioPos := b.HeliocentricEclipticPos()
	r := norm(helioPos)                   // sun-body, AU
	Δ := norm(sub(helioPos, obsHelioPos)) // observer-body, AU
	switch b.kind {
	case KindComet:
		return b.absoluteMagnitude + 5*math.Log10(Δ) + 2.5*b.slopeParameter*math.Log10(r)
	default:
		if b.minor {
			β := b.PhaseAngle(obsHelioPos)
			tanβ2 := math.Tan(β / 2)
			φ1 := math.Exp(-3.33 * math.Pow(tanβ2, 0.63))
			φ2 := math.Exp(-1.87 * math.Pow(tanβ2, 1.22))
			G := b.slopeParameter
			return b.absoluteMagnitude + 5*math.Log10(r*Δ) - 2.5*math.Log10((1-G)*φ1+G*φ2)
		}
		return b.absoluteMagnitude + 5*math.Log10(r*Δ)
	}
}
