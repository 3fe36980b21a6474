package stellarium

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// obliquityJ2000 is the obliquity of the ecliptic at J2000.0, radians.
const obliquityJ2000 = 23.4392803055555555556 * deg2rad

// BodyRecord is one body-definition record: a section identifier plus
// string-keyed fields. Field keys are case-insensitive.
type BodyRecord struct {
	Section string
	fields  map[string]string
}

// NewBodyRecord builds a record from raw fields, normalizing keys.
func NewBodyRecord(section string, fields map[string]string) BodyRecord {
	norm := make(map[string]string, len(fields))
	for k, v := range fields {
		norm[strings.ToLower(k)] = v
	}
	return BodyRecord{Section: section, fields: norm}
}

// Str returns a string field and whether it was present and non-empty.
func (r BodyRecord) Str(key string) (string, bool) {
	v, ok := r.fields[strings.ToLower(key)]
	return v, ok && v != ""
}

// StrDefault returns a string field or the default.
func (r BodyRecord) StrDefault(key, def string) string {
	if v, ok := r.Str(key); ok {
		return v
	}
	return def
}

// Float returns a numeric field and whether it was present and parseable.
func (r BodyRecord) Float(key string) (float64, bool) {
	v, ok := r.Str(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FloatDefault returns a numeric field or the default.
func (r BodyRecord) FloatDefault(key string, def float64) float64 {
	if f, ok := r.Float(key); ok {
		return f
	}
	return def
}

// IntDefault returns an integer field or the default.
func (r BodyRecord) IntDefault(key string, def int) int {
	if f, ok := r.Float(key); ok {
		return int(f)
	}
	return def
}

// BoolDefault returns a boolean field or the default.
func (r BodyRecord) BoolDefault(key string, def bool) bool {
	v, ok := r.Str(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// Name returns the body's English name.
func (r BodyRecord) Name() string {
	return strings.TrimSpace(r.StrDefault("name", ""))
}

// ParentName returns the named parent. The default parent is the Sun, which
// keeps the data files simple; "none" marks the root.
func (r BodyRecord) ParentName() string {
	return strings.TrimSpace(r.StrDefault("parent", "Sun"))
}

// ReadBodyRecords parses an ini-format body-definition source into records,
// one per section.
func ReadBodyRecords(path string) ([]BodyRecord, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read body definitions from %s: %s", path, err)
	}
	all := v.AllSettings()
	sections := make([]string, 0, len(all))
	for sec := range all {
		sections = append(sections, sec)
	}
	sort.Strings(sections)
	records := make([]BodyRecord, 0, len(sections))
	for _, sec := range sections {
		sub, ok := all[sec].(map[string]interface{})
		if !ok {
			continue
		}
		fields := make(map[string]string, len(sub))
		for k, val := range sub {
			fields[k] = fmt.Sprintf("%v", val)
		}
		records = append(records, NewBodyRecord(sec, fields))
	}
	return records, nil
}

// computeLoadOrder sorts records ascending by dependency depth so that every
// body's parent is materialized before the body itself. Parents may resolve
// either within the batch or against already-registered bodies. Records with
// a cycle or a dangling parent are dropped and reported.
func computeLoadOrder(records []BodyRecord, registered map[string]*Body) (ordered []BodyRecord, dropped []error) {
	byName := make(map[string]int, len(records))
	parentOf := make(map[string]string, len(records))
	for idx, r := range records {
		name := r.Name()
		if name == "" {
			dropped = append(dropped, fmt.Errorf("section %q has no name", r.Section))
			continue
		}
		if _, seen := byName[name]; seen {
			dropped = append(dropped, fmt.Errorf("%s: duplicate body name in section %q", name, r.Section))
			continue
		}
		byName[name] = idx
		if p := r.ParentName(); p != "none" && p != "" {
			parentOf[name] = p
		}
	}

	type depthEntry struct {
		depth, idx int
	}
	var entries []depthEntry
	for idx, r := range records {
		name := r.Name()
		if name == "" || byName[name] != idx {
			continue // unnamed or duplicate, already reported
		}
		depth := 0
		ok := true
		for p, hops := parentOf[name], 0; p != ""; p, hops = parentOf[p], hops+1 {
			if hops > len(records) {
				dropped = append(dropped, fmt.Errorf("%s: parent cycle detected", name))
				ok = false
				break
			}
			if _, inBatch := byName[p]; !inBatch {
				if _, known := registered[p]; !known {
					dropped = append(dropped, fmt.Errorf("%s: unresolved parent %q", name, p))
					ok = false
				}
				break
			}
			depth++
		}
		if ok {
			entries = append(entries, depthEntry{depth, idx})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].depth < entries[j].depth })
	ordered = make([]BodyRecord, len(entries))
	for i, e := range entries {
		ordered[i] = records[e.idx]
	}
	return ordered, dropped
}

// buildOrbit constructs the orbit model named by the record's coord_func,
// returning the position source for the body. A missing or unknown
// coordinate function, or degenerate orbital elements, is a structural error.
func buildOrbit(r BodyRecord, parent *Body, vsop87Dir string) (PositionFunc, Orbit, bool, error) {
	funcName, ok := r.Str("coord_func")
	if !ok {
		return nil, nil, false, fmt.Errorf("%s: missing coord_func", r.Name())
	}
	closeOrbit := r.BoolDefault("closeorbit", true)
	switch funcName {
	case "ell_orbit":
		orb, err := buildEllipticalOrbit(r, parent)
		if err != nil {
			return nil, nil, false, err
		}
		if orb.Eccentricity >= 1 {
			closeOrbit = false
		}
		return orb.PositionAtTime, orb, closeOrbit, nil
	case "comet_orbit":
		orb, err := buildCometOrbit(r, parent)
		if err != nil {
			return nil, nil, false, err
		}
		if orb.Eccentricity >= 1 {
			closeOrbit = false
		}
		return orb.PositionAtTime, orb, closeOrbit, nil
	default:
		fn, err := ResolveSpecialFunc(funcName, vsop87Dir)
		if err != nil {
			return nil, nil, false, fmt.Errorf("%s: %s", r.Name(), err)
		}
		return fn, nil, closeOrbit, nil
	}
}

// pericenterAndAxis resolves the pericenter distance and semi-major axis from
// whichever of the two the record provides. unitKm selects the ell_orbit
// convention of kilometer distances; comet elements are given in AU directly.
func pericenterAndAxis(r BodyRecord, e float64, unitKm bool) (q, a float64, err error) {
	q, hasQ := r.Float("orbit_pericenterdistance")
	if !hasQ || q <= 0 {
		a, hasA := r.Float("orbit_semimajoraxis")
		if !hasA {
			return 0, 0, fmt.Errorf("%s: you must provide orbit_PericenterDistance or orbit_SemiMajorAxis", r.Name())
		}
		if e == 1.0 {
			return 0, 0, fmt.Errorf("%s: parabolic orbits have no semi-major axis", r.Name())
		}
		if unitKm {
			a /= AU
		}
		return a * (1.0 - e), a, nil
	}
	if unitKm {
		q /= AU
	}
	if e == 1.0 {
		return q, 0, nil
	}
	return q, q / (1.0 - e), nil
}

// parentFrame derives the rotation of the orbital frame into the parent's
// equatorial frame. When the parent is the star the ecliptic is used as-is.
func parentFrame(parent *Body) FrameRotation {
	if parent == nil || parent.parent == nil {
		return FrameRotation{}
	}
	obl := parent.rot.Obliquity
	node := parent.rot.AscendingNode
	return FrameRotation{
		Obliquity:      obl,
		AscendingNode:  node,
		J2000Longitude: rotJ2000Longitude(obl, node),
	}
}

// rotJ2000Longitude measures, within the parent's equatorial plane, the angle
// from the parent node to the J2000 pole's node origin.
func rotJ2000Longitude(obliquity, ascendingNode float64) float64 {
	sObl, cObl := math.Sincos(obliquity)
	sNod, cNod := math.Sincos(ascendingNode)
	orbitAxis0 := []float64{cNod, sNod, 0}
	orbitAxis1 := []float64{-sNod * cObl, cNod * cObl, sObl}
	orbitPole := []float64{sNod * sObl, -cNod * sObl, cObl}
	j2000Pole := []float64{0, math.Sin(obliquityJ2000), math.Cos(obliquityJ2000)}
	nodeOrigin := unit([]float64{
		j2000Pole[1]*orbitPole[2] - j2000Pole[2]*orbitPole[1],
		j2000Pole[2]*orbitPole[0] - j2000Pole[0]*orbitPole[2],
		j2000Pole[0]*orbitPole[1] - j2000Pole[1]*orbitPole[0],
	})
	return math.Atan2(dot(nodeOrigin, orbitAxis1), dot(nodeOrigin, orbitAxis0))
}

func buildEllipticalOrbit(r BodyRecord, parent *Body) (*EllipticalOrbit, error) {
	epoch := r.FloatDefault("orbit_epoch", J2000)
	e := r.FloatDefault("orbit_eccentricity", 0)
	q, a, err := pericenterAndAxis(r, e, true)
	if err != nil {
		return nil, err
	}
	var period float64
	if meanMotion, ok := r.Float("orbit_meanmotion"); ok {
		period = 2 * math.Pi / meanMotion
	} else if p, ok := r.Float("orbit_period"); ok {
		period = p
	} else {
		if parent != nil && parent.parent != nil {
			return nil, fmt.Errorf("%s: when the parent body is not the sun, you must provide either orbit_MeanMotion or orbit_Period", r.Name())
		}
		// Assume a heliocentric orbit and derive the mean motion from the
		// Gaussian gravitational constant.
		var n float64
		if e == 1.0 {
			n = GaussianGravConst * (1.5 / q) * math.Sqrt(0.5/q)
		} else {
			n = GaussianGravConst / (math.Abs(a) * math.Sqrt(math.Abs(a)))
		}
		period = 2 * math.Pi / n
	}
	inclination := r.FloatDefault("orbit_inclination", 0) * deg2rad
	ascendingNode := r.FloatDefault("orbit_ascendingnode", 0) * deg2rad
	argOfPericenter, hasArg := r.Float("orbit_argofpericenter")
	if !hasArg {
		argOfPericenter = r.FloatDefault("orbit_longofpericenter", 0)*deg2rad - ascendingNode
	} else {
		argOfPericenter *= deg2rad
	}
	meanAnomaly, hasM := r.Float("orbit_meananomaly")
	if !hasM {
		meanAnomaly = r.FloatDefault("orbit_meanlongitude", 0)*deg2rad - (argOfPericenter + ascendingNode)
	} else {
		meanAnomaly *= deg2rad
	}
	return NewEllipticalOrbit(q, e, inclination, ascendingNode, argOfPericenter,
		meanAnomaly, period, epoch, parentFrame(parent)), nil
}

func buildCometOrbit(r BodyRecord, parent *Body) (*CometOrbit, error) {
	e := r.FloatDefault("orbit_eccentricity", 0)
	q, a, err := pericenterAndAxis(r, e, false)
	if err != nil {
		return nil, err
	}
	meanMotion, hasN := r.Float("orbit_meanmotion")
	if !hasN {
		period, hasPeriod := r.Float("orbit_period")
		if !hasPeriod {
			if parent != nil && parent.parent != nil {
				return nil, fmt.Errorf("%s: when the parent body is not the sun, you must provide either orbit_MeanMotion or orbit_Period", r.Name())
			}
			// Heliocentric: Gaussian gravitational constant.
			if e == 1.0 {
				meanMotion = GaussianGravConst * (1.5 / q) * math.Sqrt(0.5/q)
			} else {
				meanMotion = GaussianGravConst / (math.Abs(a) * math.Sqrt(math.Abs(a)))
			}
		} else {
			meanMotion = 2 * math.Pi / period
		}
	} else {
		meanMotion *= deg2rad // given in degrees/day
	}
	timeAtPericenter, hasTp := r.Float("orbit_timeatpericenter")
	if !hasTp {
		epoch, hasEpoch := r.Float("orbit_epoch")
		meanAnomaly, hasM := r.Float("orbit_meananomaly")
		if !hasEpoch || !hasM {
			return nil, fmt.Errorf("%s: when you do not provide orbit_TimeAtPericenter, you must provide both orbit_Epoch and orbit_MeanAnomaly", r.Name())
		}
		timeAtPericenter = epoch - meanAnomaly*deg2rad/meanMotion
	}
	validDays := r.FloatDefault("orbit_good", 1000)
	inclination := r.FloatDefault("orbit_inclination", 0) * deg2rad
	argOfPericenter := r.FloatDefault("orbit_argofpericenter", 0) * deg2rad
	ascendingNode := r.FloatDefault("orbit_ascendingnode", 0) * deg2rad
	return NewCometOrbit(q, e, inclination, ascendingNode, argOfPericenter,
		timeAtPericenter, validDays, meanMotion, parentFrame(parent)), nil
}

// rotationElements reads the rotational state, preferring IAU J2000 north
// pole coordinates over direct obliquity/node values when given.
func rotationElements(r BodyRecord) RotationElements {
	obliquity := r.FloatDefault("rot_obliquity", 0) * deg2rad
	node := r.FloatDefault("rot_equator_ascending_node", 0) * deg2rad
	poleRA := r.FloatDefault("rot_pole_ra", 0) * deg2rad
	poleDE := r.FloatDefault("rot_pole_de", 0) * deg2rad
	if poleRA != 0 || poleDE != 0 {
		// Convert the equatorial J2000 pole into the ecliptic frame.
		pole := Spherical2Cartesian(poleRA, poleDE, 1)
		ecl := MxV33(R1(obliquityJ2000), pole)
		ra := math.Atan2(ecl[1], ecl[0])
		de := math.Asin(ecl[2])
		obliquity = math.Pi/2 - de
		node = ra + math.Pi/2
	}
	return RotationElements{
		Period:         r.FloatDefault("rot_periode", r.FloatDefault("orbit_period", 24)*24) / 24,
		Offset:         r.FloatDefault("rot_rotation_offset", 0),
		Epoch:          r.FloatDefault("rot_epoch", J2000),
		Obliquity:      obliquity,
		AscendingNode:  node,
		PrecessionRate: r.FloatDefault("rot_precession_rate", 0) * math.Pi / (180 * 36525),
		SiderealPeriod: r.FloatDefault("orbit_visualization_period", 0),
	}
}

func parseColor(s string) []float64 {
	c := []float64{1, 1, 1}
	parts := strings.Split(s, ",")
	for i := 0; i < len(parts) && i < 3; i++ {
		if f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64); err == nil {
			c[i] = f
		}
	}
	return c
}

// buildBody instantiates a Body from its record, its resolved parent and the
// VSOP87 data directory.
func buildBody(r BodyRecord, parent *Body, vsop87Dir string) (*Body, error) {
	name := r.Name()
	if name == "" {
		return nil, fmt.Errorf("section %q has no name", r.Section)
	}
	posFunc, orbit, closeOrbit, err := buildOrbit(r, parent, vsop87Dir)
	if err != nil {
		return nil, err
	}
	typeStr := r.StrDefault("type", "undefined")
	kind := ParseBodyKind(typeStr)
	minor := kind.Minor() && !strings.Contains(name, "Pluto")

	b := &Body{
		englishName:  name,
		kind:         kind,
		minor:        minor,
		hidden:       r.BoolDefault("hidden", false),
		radius:       r.FloatDefault("radius", 0) / AU,
		oblateness:   r.FloatDefault("oblateness", 0),
		color:        parseColor(r.StrDefault("color", "1.0,1.0,1.0")),
		albedo:       r.FloatDefault("albedo", 0.25),
		roughness:    r.FloatDefault("roughness", 0.9),
		atmosphere:   r.BoolDefault("atmosphere", false),
		halo:         r.BoolDefault("halo", true),
		texMap:       r.StrDefault("tex_map", "nomap.png"),
		normalsMap:   r.StrDefault("normals_map", ""),
		objModel:     r.StrDefault("model", ""),
		rot:          rotationElements(r),
		positionFunc: posFunc,
		orbit:        orbit,
		closeOrbit:   closeOrbit,
		parent:       parent,
		sphereScale:  1,
	}

	b.absoluteMagnitude = r.FloatDefault("absolute_magnitude", -99)
	switch {
	case kind == KindComet:
		b.slopeParameter = r.FloatDefault("slope_parameter", 4.0)
		if b.slopeParameter < 0 || b.slopeParameter > 20 {
			b.slopeParameter = 4.0
		}
		b.outgasIntensity = r.FloatDefault("outgas_intensity", 0.1)
		b.outgasFalloff = r.FloatDefault("outgas_falloff", 0.1)
		b.dustWidthFactor = r.FloatDefault("dust_widthfactor", 1.5)
		b.dustLengthFactor = r.FloatDefault("dust_lengthfactor", 0.4)
		b.dustBrightnessFactor = r.FloatDefault("dust_brightnessfactor", 1.5)
		if e := r.FloatDefault("orbit_eccentricity", 0); e < 1 {
			if q, ok := r.Float("orbit_pericenterdistance"); ok && q > 0 {
				b.semiMajorAxis = q / (1 - e)
			}
		}
	case minor:
		b.slopeParameter = r.FloatDefault("slope_parameter", 0.15)
		if b.slopeParameter < 0 || b.slopeParameter > 1 {
			b.slopeParameter = 0.15
		}
		b.minorPlanetNumber = r.IntDefault("minor_planet_number", 0)
		b.provisionalDesignation = r.StrDefault("provisional_designation", "")
		b.semiMajorAxis = r.FloatDefault("orbit_semimajoraxis", 0)
	}

	if r.BoolDefault("rings", false) {
		b.rings = &Rings{
			InnerRadius: r.FloatDefault("ring_inner_size", 0) / AU,
			OuterRadius: r.FloatDefault("ring_outer_size", 0) / AU,
			Texture:     r.StrDefault("tex_ring", ""),
		}
	}
	return b, nil
}
