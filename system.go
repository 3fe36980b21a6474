package stellarium

import (
	"fmt"
	"math"
	"os"

	kitlog "github.com/go-kit/kit/log"
)

const (
	// cosSearchThreshold is the cosine-similarity floor for an angular
	// nearest-match hit, roughly cos(2.5 degrees).
	cosSearchThreshold = 0.999
	// lightTimeDaysPerAU is the light travel time over one AU, in days.
	lightTimeDaysPerAU = AU / (SpeedOfLight * 86400)
)

// Flags holds the caller-visible configuration the core applies to its cached
// state but does not interpret visually. It survives a reload.
type Flags struct {
	LightTravelTime bool

	MoonScaled      bool
	MoonScale       float64
	MinorBodyScaled bool
	MinorBodyScale  float64

	Hints, Labels, Orbits, Trails bool
	NativeNames, TranslatedNames  bool
}

// System is the registry of solar system bodies. It is exclusively owned by
// the simulation thread: propagation, queries and reloads must not be
// interleaved, and cross-thread readers must synchronize externally.
type System struct {
	bodies []*Body // in dependency order
	byName map[string]*Body

	sun, earth, moon *Body
	selected         *Body

	flags           Flags
	shadowBodyCount int
	vsop87Dir       string
	minorFailure    error

	// lightTimeSunPosition is the retarded star position offset, used only
	// for shadow geometry. It is zero when light-time correction is off.
	lightTimeSunPosition []float64

	// baseLogger is the caller-supplied logger before the component context
	// is attached, so a reload does not stack the context twice.
	baseLogger kitlog.Logger
	logger     kitlog.Logger
}

// NewSystem returns an empty registry. A nil logger is replaced by a logfmt
// logger on stdout.
func NewSystem(logger kitlog.Logger) *System {
	if logger == nil {
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	}
	return &System{
		byName:               make(map[string]*Body),
		flags:                Flags{MoonScale: 1, MinorBodyScale: 1},
		lightTimeSunPosition: []float64{0, 0, 0},
		baseLogger:           logger,
		logger:               kitlog.With(logger, "component", "solarsystem"),
	}
}

// SetVSOP87Dir sets the directory holding the VSOP87 series files used by the
// planetary special position functions.
func (s *System) SetVSOP87Dir(dir string) { s.vsop87Dir = dir }

// Flags returns the current configuration flags.
func (s *System) Flags() Flags { return s.flags }

// SetFlags replaces the configuration flags and re-applies the display
// scales to the cached per-body state.
func (s *System) SetFlags(f Flags) {
	s.flags = f
	s.updateSphereScales()
}

func (s *System) updateSphereScales() {
	for _, b := range s.bodies {
		sc := 1.0
		if s.flags.MoonScaled && b == s.moon {
			sc = s.flags.MoonScale
		}
		if s.flags.MinorBodyScaled && b.minor {
			sc = s.flags.MinorBodyScale
		}
		b.SetSphereScale(sc)
	}
}

// Sun returns the root star, nil before a successful load.
func (s *System) Sun() *Body { return s.sun }

// Earth returns the body loaded from the "earth" section, if any.
func (s *System) Earth() *Body { return s.earth }

// Moon returns the body loaded from the "moon" section, if any.
func (s *System) Moon() *Body { return s.moon }

// Bodies returns the registry in dependency order. The slice must be treated
// as read-only.
func (s *System) Bodies() []*Body { return s.bodies }

// ShadowBodyCount returns the number of bodies that can cast a shadow on
// another one.
func (s *System) ShadowBodyCount() int { return s.shadowBodyCount }

// MinorFailure returns the recoverable error of the last minor-body load
// phase, nil when the phase succeeded. A non-nil value flags the offending
// data source for operator remediation.
func (s *System) MinorFailure() error { return s.minorFailure }

// loadSet instantiates one record batch in dependency order, appending to the
// registry. Structural per-record errors are logged and skipped. An error is
// returned only when not a single record became a body.
func (s *System) loadSet(records []BodyRecord) (read, skipped int, err error) {
	ordered, dropped := computeLoadOrder(records, s.byName)
	for _, derr := range dropped {
		s.logger.Log("level", "warn", "msg", "skipping body", "err", derr)
		skipped++
	}
	for _, rec := range ordered {
		var parent *Body
		if pn := rec.ParentName(); pn != "none" && pn != "" {
			parent = s.byName[pn]
			if parent == nil {
				// Defensive recheck; ordering should have dropped these.
				s.logger.Log("level", "warn", "msg", "cannot find parent body", "body", rec.Name(), "parent", pn)
				skipped++
				continue
			}
		}
		b, berr := buildBody(rec, parent, s.vsop87Dir)
		if berr != nil {
			s.logger.Log("level", "warn", "msg", "skipping body", "err", berr)
			skipped++
			continue
		}
		if _, dup := s.byName[b.englishName]; dup {
			s.logger.Log("level", "warn", "msg", "duplicate body name", "body", b.englishName)
			skipped++
			continue
		}
		if parent != nil {
			parent.satellites = append(parent.satellites, b)
		}
		s.bodies = append(s.bodies, b)
		s.byName[b.englishName] = b
		switch rec.Section {
		case "sun":
			s.sun = b
		case "earth":
			s.earth = b
		case "moon":
			s.moon = b
		}
		read++
	}
	if read == 0 {
		return 0, skipped, fmt.Errorf("no solar system bodies loaded")
	}
	return read, skipped, nil
}

// rollbackMinorBodies removes every minor body, leaving the major set intact.
func (s *System) rollbackMinorBodies() {
	kept := s.bodies[:0]
	for _, b := range s.bodies {
		if b.minor {
			delete(s.byName, b.englishName)
			if b.parent != nil {
				sats := b.parent.satellites[:0]
				for _, sat := range b.parent.satellites {
					if sat != b {
						sats = append(sats, sat)
					}
				}
				b.parent.satellites = sats
			}
			continue
		}
		kept = append(kept, b)
	}
	s.bodies = kept
}

func (s *System) updateShadowCount() {
	s.shadowBodyCount = 0
	for _, b := range s.bodies {
		if (b.parent != nil && b.parent != s.sun) || len(b.satellites) > 0 {
			s.shadowBodyCount++
		}
	}
}

func (s *System) clear() {
	s.bodies = nil
	s.byName = make(map[string]*Body)
	s.sun, s.earth, s.moon, s.selected = nil, nil, nil, nil
	s.shadowBodyCount = 0
	s.minorFailure = nil
	s.lightTimeSunPosition = []float64{0, 0, 0}
}

// LoadFromRecords performs the two-phase load: the major-body batch must
// succeed, then minor-body candidate batches are tried in order until one
// yields at least one body. A failing minor candidate is fully rolled back
// and the failure is recoverable, retrievable through MinorFailure.
func (s *System) LoadFromRecords(major []BodyRecord, minorCandidates ...[]BodyRecord) error {
	s.clear()
	read, skipped, err := s.loadSet(major)
	if err != nil {
		return fmt.Errorf("loading major bodies: %s", err)
	}
	s.logger.Log("level", "info", "msg", "loaded major bodies", "read", read, "skipped", skipped)

	for _, candidate := range minorCandidates {
		read, skipped, err = s.loadSet(candidate)
		if err == nil {
			s.logger.Log("level", "info", "msg", "loaded minor bodies", "read", read, "skipped", skipped)
			s.minorFailure = nil
			break
		}
		s.rollbackMinorBodies()
		s.minorFailure = fmt.Errorf("loading minor bodies: %s", err)
		s.logger.Log("level", "warn", "msg", "removed minor bodies after failed load", "err", err)
	}
	s.updateShadowCount()
	s.updateSphereScales()
	return nil
}

// LoadFromFiles reads the major source (must be readable) and tries the minor
// candidate locations in order, first-successful-candidate-wins.
func (s *System) LoadFromFiles(majorPath string, minorPaths ...string) error {
	major, err := ReadBodyRecords(majorPath)
	if err != nil {
		return err
	}
	var minors [][]BodyRecord
	for _, p := range minorPaths {
		records, rerr := ReadBodyRecords(p)
		if rerr != nil {
			s.logger.Log("level", "warn", "msg", "unreadable minor-body source", "path", p, "err", rerr)
			continue
		}
		minors = append(minors, records)
	}
	return s.LoadFromRecords(major, minors...)
}

// Reload re-runs the two-phase load from scratch, preserving flags and the
// current selection by name. It is atomic from the caller's perspective: on a
// major-phase failure the previous registry is left untouched.
func (s *System) Reload(major []BodyRecord, minorCandidates ...[]BodyRecord) error {
	selectedName := ""
	if s.selected != nil {
		selectedName = s.selected.englishName
	}
	fresh := NewSystem(s.baseLogger)
	fresh.vsop87Dir = s.vsop87Dir
	fresh.flags = s.flags
	if err := fresh.LoadFromRecords(major, minorCandidates...); err != nil {
		return err
	}
	s.bodies = fresh.bodies
	s.byName = fresh.byName
	s.sun, s.earth, s.moon = fresh.sun, fresh.earth, fresh.moon
	s.shadowBodyCount = fresh.shadowBodyCount
	s.minorFailure = fresh.minorFailure
	s.lightTimeSunPosition = []float64{0, 0, 0}
	s.selected = nil
	s.updateSphereScales()
	if selectedName != "" {
		s.SetSelected(selectedName)
	}
	return nil
}

// RemoveBody removes a single minor body or comet from the registry. Major
// bodies are refused.
func (s *System) RemoveBody(name string) bool {
	b := s.SearchByEnglishName(name)
	if b == nil {
		s.logger.Log("level", "warn", "msg", "cannot remove body: not found", "body", name)
		return false
	}
	if !b.minor {
		s.logger.Log("level", "warn", "msg", "refusing to remove major body", "body", name)
		return false
	}
	if s.selected == b {
		s.selected = nil
	}
	if b.parent != nil {
		sats := b.parent.satellites[:0]
		for _, sat := range b.parent.satellites {
			if sat != b {
				sats = append(sats, sat)
			}
		}
		b.parent.satellites = sats
	}
	kept := s.bodies[:0]
	for _, o := range s.bodies {
		if o != b {
			kept = append(kept, o)
		}
	}
	s.bodies = kept
	delete(s.byName, name)
	b.orbit = nil
	b.positionFunc = nil
	s.updateShadowCount()
	return true
}

// ComputePositions computes the position of every body for the given date.
// Iteration in registry order guarantees a parent's parent-frame position is
// resolved before its children compose onto it.
func (s *System) ComputePositions(jde float64, observer *Body) {
	if s.flags.LightTravelTime {
		for _, b := range s.bodies {
			b.ComputePosition(jde)
		}
		// Retarded star position, used only for shadow geometry. The
		// observer must be reset afterwards so the retarded state does not
		// leak into its own cache.
		obsPos := observer.HeliocentricEclipticPos()
		obsDist := norm(obsPos)
		observer.ComputePosition(jde - obsDist*lightTimeDaysPerAU)
		obsPosBefore := observer.HeliocentricEclipticPos()
		s.lightTimeSunPosition = sub(obsPos, obsPosBefore)
		observer.ComputePosition(jde)

		for _, b := range s.bodies {
			delay := norm(sub(b.HeliocentricEclipticPos(), obsPos)) * lightTimeDaysPerAU
			b.ComputePosition(jde - delay)
		}
	} else {
		for _, b := range s.bodies {
			b.ComputePosition(jde)
		}
		s.lightTimeSunPosition = []float64{0, 0, 0}
	}
	s.computeTransMatrices(jde, observer.HeliocentricEclipticPos())
}

// computeTransMatrices computes every body's rotation transform. Axis
// rotation runs on the universal time base while orbital positions use the
// dynamical one.
func (s *System) computeTransMatrices(jde float64, observerPos []float64) {
	jd := jde - deltaTSeconds(jde)/86400
	if s.flags.LightTravelTime {
		for _, b := range s.bodies {
			delay := norm(sub(b.HeliocentricEclipticPos(), observerPos)) * lightTimeDaysPerAU
			b.ComputeTransMatrix(jd-delay, jde-delay)
		}
	} else {
		for _, b := range s.bodies {
			b.ComputeTransMatrix(jd, jde)
		}
	}
}

// deltaTSeconds approximates TT-UT in seconds with the Espenak & Meeus (2006)
// polynomial fitted for 2005-2050.
func deltaTSeconds(jde float64) float64 {
	t := (jde - J2000) / 365.25
	return 62.92 + 0.32217*t + 0.005589*t*t
}

// LightTimeSunPosition returns the retarded star position offset computed by
// the last propagation pass.
func (s *System) LightTimeSunPosition() []float64 { return s.lightTimeSunPosition }

// ComputeDistances caches every body's distance to the observer position.
func (s *System) ComputeDistances(observerPos []float64) {
	for _, b := range s.bodies {
		b.ComputeDistance(observerPos)
	}
}

// SearchByEnglishName returns the body with the given canonical name, nil
// when absent. The lookup is case-sensitive.
func (s *System) SearchByEnglishName(name string) *Body {
	return s.byName[name]
}

// SearchByNativeName returns the body with the given sky-culture name.
func (s *System) SearchByNativeName(name string) *Body {
	for _, b := range s.bodies {
		if b.nativeName == name {
			return b
		}
	}
	return nil
}

// Search returns the body whose apparent direction from the observer is
// closest to the given direction, or nil when no body passes the
// cosine-similarity threshold.
func (s *System) Search(dir []float64, observer *Body) *Body {
	v := unit(dir)
	obsPos := observer.HeliocentricEclipticPos()
	var closest *Body
	cosClosest := 0.0
	for _, b := range s.bodies {
		u := unit(sub(b.HeliocentricEclipticPos(), obsPos))
		if c := dot(u, v); c > cosClosest {
			closest = b
			cosClosest = c
		}
	}
	if cosClosest > cosSearchThreshold {
		return closest
	}
	return nil
}

// SearchAround returns every body within limitFov radians of the direction,
// widened per-body to its own apparent angular radius so that a large disk is
// hit even when the query cone is narrower than the disk. The observer's own
// body is excluded.
func (s *System) SearchAround(dir []float64, limitFov float64, observer *Body) []*Body {
	v := unit(dir)
	obsPos := observer.HeliocentricEclipticPos()
	cosLimFov := math.Cos(limitFov)
	var result []*Body
	for _, b := range s.bodies {
		if b == observer {
			continue
		}
		u := unit(sub(b.HeliocentricEclipticPos(), obsPos))
		cosAngularRadius := math.Cos(b.AngularRadius(obsPos))
		if dot(u, v) >= math.Min(cosLimFov, cosAngularRadius) {
			result = append(result, b)
		}
	}
	return result
}

// Selected returns the currently selected body, nil when none.
func (s *System) Selected() *Body { return s.selected }

// SetSelected selects a body by name. Selecting a name that does not resolve
// to a body clears the selection.
func (s *System) SetSelected(name string) *Body {
	s.selected = s.SearchByEnglishName(name)
	return s.selected
}

// BodyNames lists every body's English name in registry order.
func (s *System) BodyNames() []string {
	names := make([]string, len(s.bodies))
	for i, b := range s.bodies {
		names[i] = b.englishName
	}
	return names
}

// BodyNamesByKind lists the English names of every body of the given kind.
func (s *System) BodyNamesByKind(kind BodyKind) []string {
	var names []string
	for _, b := range s.bodies {
		if b.kind == kind {
			names = append(names, b.englishName)
		}
	}
	return names
}

// KindOf returns the type string of a named body, empty when absent.
func (s *System) KindOf(name string) string {
	if b := s.byName[name]; b != nil {
		return b.kind.String()
	}
	return ""
}

// ApplyNativeNames sets the sky-culture names of stars, planets and moons
// from the identifier-to-name table; bodies absent from the table have their
// native name cleared.
func (s *System) ApplyNativeNames(names map[string]string) {
	for _, b := range s.bodies {
		switch b.kind {
		case KindStar, KindPlanet, KindMoon:
			b.SetNativeName(names[b.englishName])
		}
	}
}

// NearEclipse reports whether the moon is close to the planet's shadow cone,
// i.e. a lunar eclipse may be imminent.
func (s *System) NearEclipse() bool {
	if s.earth == nil || s.moon == nil {
		return false
	}
	e := s.earth.HeliocentricEclipticPos()
	m := s.moon.EclipticPos() // relative to its planet
	mh := s.moon.HeliocentricEclipticPos()

	// Shadow apex location at planet + moon distance along the anti-solar
	// direction, with the penumbra radius in AU.
	shadow := scale(norm(e)+norm(m), unit(e))
	rPenumbra := norm(shadow)*702378.1/AU/norm(e) - 696000/AU

	return norm(sub(shadow, mh)) <= rPenumbra+2000/AU
}
