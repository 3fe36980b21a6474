package stellarium

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gonum/floats"
)

func TestBodyRecordFields(t *testing.T) {
	r := NewBodyRecord("io", map[string]string{
		"name":                "Io",
		"parent":              "Jupiter",
		"Radius":              "1821.6",
		"atmosphere":          "yes",
		"minor_planet_number": "0",
	})
	if r.Name() != "Io" {
		t.Fatalf("name: got %q", r.Name())
	}
	if r.ParentName() != "Jupiter" {
		t.Fatalf("parent: got %q", r.ParentName())
	}
	// Field keys are case-insensitive.
	if f, ok := r.Float("RADIUS"); !ok || f != 1821.6 {
		t.Fatalf("radius: got %f, %v", f, ok)
	}
	if !r.BoolDefault("atmosphere", false) {
		t.Fatal("atmosphere: want true")
	}
	if r.BoolDefault("halo", true) != true {
		t.Fatal("halo default: want true")
	}
	if r.FloatDefault("albedo", 0.25) != 0.25 {
		t.Fatal("albedo default: want 0.25")
	}
	if r.ParentName() != "Jupiter" || NewBodyRecord("sun", map[string]string{"name": "Sun"}).ParentName() != "Sun" {
		t.Fatal("the default parent must be the Sun")
	}
}

func orderRecords() []BodyRecord {
	sun := NewBodyRecord("sun", map[string]string{"name": "Sun", "parent": "none"})
	earth := NewBodyRecord("earth", map[string]string{"name": "Earth", "parent": "Sun"})
	moon := NewBodyRecord("moon", map[string]string{"name": "Moon", "parent": "Earth"})
	jupiter := NewBodyRecord("jupiter", map[string]string{"name": "Jupiter", "parent": "Sun"})
	io := NewBodyRecord("io", map[string]string{"name": "Io", "parent": "Jupiter"})
	// Deliberately shuffled: children before parents.
	return []BodyRecord{moon, io, earth, jupiter, sun}
}

func TestComputeLoadOrder(t *testing.T) {
	ordered, dropped := computeLoadOrder(orderRecords(), map[string]*Body{})
	if len(dropped) != 0 {
		t.Fatalf("dropped: %v", dropped)
	}
	if len(ordered) != 5 {
		t.Fatalf("ordered: got %d records", len(ordered))
	}
	seen := map[string]bool{}
	for _, r := range ordered {
		if p := r.ParentName(); p != "none" && !seen[p] {
			t.Fatalf("%s ordered before its parent %s", r.Name(), p)
		}
		seen[r.Name()] = true
	}
}

func TestComputeLoadOrderAgainstRegistry(t *testing.T) {
	registered := map[string]*Body{"Sun": {englishName: "Sun"}}
	records := []BodyRecord{
		NewBodyRecord("earth", map[string]string{"name": "Earth", "parent": "Sun"}),
	}
	ordered, dropped := computeLoadOrder(records, registered)
	if len(dropped) != 0 || len(ordered) != 1 {
		t.Fatalf("got %d ordered, dropped %v", len(ordered), dropped)
	}
}

func TestComputeLoadOrderCycle(t *testing.T) {
	records := []BodyRecord{
		NewBodyRecord("sun", map[string]string{"name": "Sun", "parent": "none"}),
		NewBodyRecord("a", map[string]string{"name": "Alpha", "parent": "Beta"}),
		NewBodyRecord("b", map[string]string{"name": "Beta", "parent": "Alpha"}),
	}
	ordered, dropped := computeLoadOrder(records, map[string]*Body{})
	if len(ordered) != 1 || ordered[0].Name() != "Sun" {
		t.Fatalf("ordered: %v", ordered)
	}
	if len(dropped) != 2 {
		t.Fatalf("want both cycle members dropped, got %v", dropped)
	}
}

func TestComputeLoadOrderDanglingParent(t *testing.T) {
	records := []BodyRecord{
		NewBodyRecord("sun", map[string]string{"name": "Sun", "parent": "none"}),
		NewBodyRecord("x", map[string]string{"name": "Nibiru Moon", "parent": "Nibiru"}),
	}
	ordered, dropped := computeLoadOrder(records, map[string]*Body{})
	if len(ordered) != 1 || len(dropped) != 1 {
		t.Fatalf("got %d ordered, dropped %v", len(ordered), dropped)
	}
}

func TestComputeLoadOrderDuplicateAndUnnamed(t *testing.T) {
	records := []BodyRecord{
		NewBodyRecord("sun", map[string]string{"name": "Sun", "parent": "none"}),
		NewBodyRecord("sun2", map[string]string{"name": "Sun", "parent": "none"}),
		NewBodyRecord("anon", map[string]string{"parent": "Sun"}),
	}
	ordered, dropped := computeLoadOrder(records, map[string]*Body{})
	if len(ordered) != 1 || ordered[0].Section != "sun" {
		t.Fatalf("ordered: %v", ordered)
	}
	if len(dropped) != 2 {
		t.Fatalf("dropped: %v", dropped)
	}
}

func TestPericenterAndAxis(t *testing.T) {
	// ell_orbit distances are kilometers.
	r := NewBodyRecord("earth", map[string]string{
		"name": "Earth", "orbit_semimajoraxis": "149597870.7", "orbit_eccentricity": "0.1",
	})
	q, a, err := pericenterAndAxis(r, 0.1, true)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualWithinAbs(a, 1, 1e-12) || !floats.EqualWithinAbs(q, 0.9, 1e-12) {
		t.Fatalf("got q=%f a=%f", q, a)
	}
	// comet_orbit distances are AU.
	r = NewBodyRecord("c", map[string]string{"name": "C", "orbit_pericenterdistance": "0.5"})
	q, a, err = pericenterAndAxis(r, 0.5, false)
	if err != nil {
		t.Fatal(err)
	}
	if q != 0.5 || !floats.EqualWithinAbs(a, 1, 1e-12) {
		t.Fatalf("got q=%f a=%f", q, a)
	}
	// A parabolic orbit has no semi-major axis to derive from.
	r = NewBodyRecord("p", map[string]string{"name": "P", "orbit_semimajoraxis": "1"})
	if _, _, err = pericenterAndAxis(r, 1.0, false); err == nil {
		t.Fatal("want an error for a parabolic orbit without pericenter distance")
	}
	// Neither element given.
	r = NewBodyRecord("n", map[string]string{"name": "N"})
	if _, _, err = pericenterAndAxis(r, 0, false); err == nil {
		t.Fatal("want an error when neither element is given")
	}
}

func TestBuildEllipticalOrbitGaussianPeriod(t *testing.T) {
	// No period and a solar parent: the mean motion comes from the Gaussian
	// gravitational constant, so a 1 AU orbit lasts one Gaussian year.
	r := NewBodyRecord("earth", map[string]string{
		"name":                "Earth",
		"orbit_semimajoraxis": "149597870.7",
	})
	o, err := buildEllipticalOrbit(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := 2 * math.Pi / GaussianGravConst; !floats.EqualWithinAbs(o.Period, want, 1e-9) {
		t.Fatalf("period: got %f, want %f", o.Period, want)
	}
}

func TestBuildEllipticalOrbitRequiresPeriodForSatellites(t *testing.T) {
	sun := &Body{englishName: "Sun"}
	planet := &Body{englishName: "Jupiter", parent: sun}
	r := NewBodyRecord("io", map[string]string{
		"name":                "Io",
		"parent":              "Jupiter",
		"orbit_semimajoraxis": "421800",
	})
	if _, err := buildEllipticalOrbit(r, planet); err == nil {
		t.Fatal("want an error for a satellite without period or mean motion")
	}
	r = NewBodyRecord("io", map[string]string{
		"name":                "Io",
		"parent":              "Jupiter",
		"orbit_semimajoraxis": "421800",
		"orbit_period":        "1.769",
	})
	o, err := buildEllipticalOrbit(r, planet)
	if err != nil {
		t.Fatal(err)
	}
	if o.Period != 1.769 {
		t.Fatalf("period: got %f", o.Period)
	}
}

func TestBuildEllipticalOrbitDerivedAngles(t *testing.T) {
	// Longitude-style elements fall back onto argument and anomaly.
	r := NewBodyRecord("v", map[string]string{
		"name":                   "Venus",
		"orbit_semimajoraxis":    "108208000",
		"orbit_ascendingnode":    "76.68",
		"orbit_longofpericenter": "131.53",
		"orbit_meanlongitude":    "181.98",
	})
	o, err := buildEllipticalOrbit(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	wantArg := (131.53 - 76.68) * deg2rad
	wantM := 181.98*deg2rad - 131.53*deg2rad
	if !floats.EqualWithinAbs(o.ArgOfPericenter, wantArg, 1e-12) {
		t.Fatalf("arg of pericenter: got %f, want %f", o.ArgOfPericenter, wantArg)
	}
	if !floats.EqualWithinAbs(o.MeanAnomalyAtEpoch, wantM, 1e-12) {
		t.Fatalf("mean anomaly: got %f, want %f", o.MeanAnomalyAtEpoch, wantM)
	}
}

func TestBuildCometOrbitPericenterTime(t *testing.T) {
	// orbit_TimeAtPericenter derives from epoch and mean anomaly when absent.
	r := NewBodyRecord("c", map[string]string{
		"name":                     "1P/Halley",
		"type":                     "comet",
		"orbit_pericenterdistance": "0.5871",
		"orbit_eccentricity":       "0.9673",
		"orbit_meanmotion":         "0.0130",
		"orbit_epoch":              "2446470.5",
		"orbit_meananomaly":        "38.38",
	})
	o, err := buildCometOrbit(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := 0.0130 * deg2rad
	wantTp := 2446470.5 - 38.38*deg2rad/n
	if !floats.EqualWithinAbs(o.TimeAtPericenter, wantTp, 1e-6) {
		t.Fatalf("time at pericenter: got %f, want %f", o.TimeAtPericenter, wantTp)
	}
	if o.ValidDays != 1000 {
		t.Fatalf("validity default: got %f", o.ValidDays)
	}

	r = NewBodyRecord("c2", map[string]string{
		"name":                     "X",
		"orbit_pericenterdistance": "0.5",
		"orbit_meanmotion":         "0.01",
	})
	if _, err = buildCometOrbit(r, nil); err == nil {
		t.Fatal("want an error without pericenter time, epoch and anomaly")
	}
}

func TestBuildOrbitUnknownCoordFunc(t *testing.T) {
	r := NewBodyRecord("x", map[string]string{"name": "X", "coord_func": "vulcan_special"})
	if _, _, _, err := buildOrbit(r, nil, ""); err == nil {
		t.Fatal("want an error for an unknown coordinate function")
	}
	r = NewBodyRecord("x", map[string]string{"name": "X"})
	if _, _, _, err := buildOrbit(r, nil, ""); err == nil {
		t.Fatal("want an error for a missing coordinate function")
	}
}

func TestBuildOrbitOpenOrbitNeverCloses(t *testing.T) {
	r := NewBodyRecord("c", map[string]string{
		"name":                     "C/Test",
		"coord_func":               "comet_orbit",
		"orbit_pericenterdistance": "1.0",
		"orbit_eccentricity":       "1.05",
		"orbit_timeatpericenter":   "2451545.0",
	})
	_, _, closeOrbit, err := buildOrbit(r, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if closeOrbit {
		t.Fatal("a hyperbolic orbit must not be flagged as closed")
	}
}

func TestRotationElementsFromPole(t *testing.T) {
	// A north pole on the equatorial J2000 pole means the body's equator is
	// tilted by exactly the J2000 obliquity relative to the ecliptic.
	r := NewBodyRecord("x", map[string]string{
		"name":        "X",
		"rot_pole_ra": "0",
		"rot_pole_de": "90",
	})
	rot := rotationElements(r)
	if !floats.EqualWithinAbs(rot.Obliquity, obliquityJ2000, 1e-9) {
		t.Fatalf("obliquity: got %f, want %f", rot.Obliquity, obliquityJ2000)
	}
	if !floats.EqualWithinAbs(rot.AscendingNode, math.Pi, 1e-9) {
		t.Fatalf("node: got %f, want %f", rot.AscendingNode, math.Pi)
	}
}

func TestRotationElementsDefaults(t *testing.T) {
	r := NewBodyRecord("x", map[string]string{"name": "X", "orbit_period": "10"})
	rot := rotationElements(r)
	// Without rot_periode the body is tidally locked to its orbit period.
	if rot.Period != 10 {
		t.Fatalf("period: got %f", rot.Period)
	}
	if rot.Epoch != J2000 {
		t.Fatalf("epoch: got %f", rot.Epoch)
	}
}

func TestParseColor(t *testing.T) {
	c := parseColor("0.2, 0.5, 0.8")
	if !vectorsEqual(c, []float64{0.2, 0.5, 0.8}, 1e-12) {
		t.Fatalf("got %+v", c)
	}
	if c = parseColor("bogus"); !vectorsEqual(c, []float64{1, 1, 1}, 1e-12) {
		t.Fatalf("malformed color: got %+v", c)
	}
}

func TestBuildBodySlopeValidation(t *testing.T) {
	r := NewBodyRecord("a", map[string]string{
		"name":                     "Vesta",
		"type":                     "asteroid",
		"coord_func":               "comet_orbit",
		"orbit_pericenterdistance": "2.15",
		"orbit_eccentricity":       "0.089",
		"orbit_timeatpericenter":   "2451545.0",
		"slope_parameter":          "7.5", // outside [0,1]
	})
	b, err := buildBody(r, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if b.slopeParameter != 0.15 {
		t.Fatalf("out-of-range slope must reset to 0.15, got %f", b.slopeParameter)
	}
	if !b.minor {
		t.Fatal("an asteroid is a minor body")
	}
}

func TestReadBodyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssystem_major.ini")
	data := `[sun]
name = Sun
parent = none
type = star
coord_func = sun_special
radius = 696000

[earth]
name = Earth
parent = Sun
type = planet
coord_func = ell_orbit
orbit_semimajoraxis = 149597870.7
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := ReadBodyRecords(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	// Sections come back sorted by name.
	if records[0].Section != "earth" || records[1].Section != "sun" {
		t.Fatalf("sections: %s, %s", records[0].Section, records[1].Section)
	}
	if v, ok := records[0].Float("orbit_semimajoraxis"); !ok || v != 149597870.7 {
		t.Fatalf("field: got %f, %v", v, ok)
	}
	if _, err = ReadBodyRecords(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Fatal("want an error for a missing file")
	}
}
