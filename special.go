package stellarium

import (
	"fmt"
	"sync"

	"github.com/soniakeys/meeus/moonposition"
	"github.com/soniakeys/meeus/planetposition"
	"github.com/soniakeys/meeus/pluto"
)

// PositionFunc returns a body's position at a given JDE, in AU, in the parent
// body's frame. It is the single contract shared by the generic orbit models
// and the hard-coded series of the major bodies.
type PositionFunc func(jde float64) []float64

// specialBuilder resolves a coordinate-function tag into a PositionFunc. The
// builder may fail, e.g. when the VSOP87 data files cannot be read; that is a
// load-time structural error for the body carrying the tag.
type specialBuilder func(vsop87Dir string) (PositionFunc, error)

var (
	specialMu    sync.Mutex
	specialFuncs = map[string]specialBuilder{}
)

// RegisterSpecialFunc adds a named closed-form position source. Registering a
// nil builder is a programmer error.
func RegisterSpecialFunc(tag string, b specialBuilder) {
	if b == nil {
		panic(fmt.Errorf("nil builder for special function %q", tag))
	}
	specialMu.Lock()
	specialFuncs[tag] = b
	specialMu.Unlock()
}

// ResolveSpecialFunc returns the position function for a tag, or an error for
// unknown tags. Unknown tags are reported at load time so that the offending
// body can be skipped instead of corrupting downstream geometry.
func ResolveSpecialFunc(tag, vsop87Dir string) (PositionFunc, error) {
	specialMu.Lock()
	b, ok := specialFuncs[tag]
	specialMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown coordinate function %q", tag)
	}
	return b(vsop87Dir)
}

// vsop87Index maps the planetary tags to the VSOP87 file index used by
// planetposition, 1-based as in the VSOP87 distribution.
var vsop87Index = map[string]int{
	"mercury_special": 1,
	"venus_special":   2,
	"earth_special":   3,
	"mars_special":    4,
	"jupiter_special": 5,
	"saturn_special":  6,
	"uranus_special":  7,
	"neptune_special": 8,
}

func vsop87Builder(tag string) specialBuilder {
	var (
		once   sync.Once
		planet *planetposition.V87Planet
		lerr   error
	)
	return func(dir string) (PositionFunc, error) {
		// Load the whole file once and share it between bodies.
		once.Do(func() {
			planet, lerr = planetposition.LoadPlanetPath(vsop87Index[tag]-1, dir)
		})
		if lerr != nil {
			return nil, fmt.Errorf("could not load VSOP87 data for %q: %s", tag, lerr)
		}
		return func(jde float64) []float64 {
			l, b, r := planet.Position2000(jde)
			return Spherical2Cartesian(l.Rad(), b.Rad(), r)
		}, nil
	}
}

func init() {
	RegisterSpecialFunc("sun_special", func(string) (PositionFunc, error) {
		return func(float64) []float64 { return []float64{0, 0, 0} }, nil
	})
	for tag := range vsop87Index {
		RegisterSpecialFunc(tag, vsop87Builder(tag))
	}
	RegisterSpecialFunc("pluto_special", func(string) (PositionFunc, error) {
		return func(jde float64) []float64 {
			l, b, r := pluto.Heliocentric(jde)
			return Spherical2Cartesian(l.Rad(), b.Rad(), r)
		}, nil
	})
	// Parent-relative (geocentric) lunar series.
	RegisterSpecialFunc("lunar_special", func(string) (PositionFunc, error) {
		return func(jde float64) []float64 {
			λ, β, Δ := moonposition.Position(jde)
			return Spherical2Cartesian(λ.Rad(), β.Rad(), Δ/AU)
		}, nil
	})
}
