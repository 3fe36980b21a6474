package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	stellarium "github.com/dandaman828/stellarium"
	kitlog "github.com/go-kit/kit/log"
	"github.com/soniakeys/meeus/julian"
)

// This command only loads the configured solar system model, propagates it to
// the requested date and prints an ephemerides table.

const dateFormat = "2006-01-02 15:04:05"

var (
	date     string
	observer string
	culture  string
)

func init() {
	flag.StringVar(&date, "date", "", "date of the ephemerides (\""+dateFormat+"\" UTC), defaults to now")
	flag.StringVar(&observer, "observer", "Earth", "name of the observer body")
	flag.StringVar(&culture, "culture", "", "sky culture whose body names to apply, if any")
}

func main() {
	flag.Parse()
	dt := time.Now().UTC()
	if date != "" {
		var err error
		dt, err = time.Parse(dateFormat, date)
		if err != nil {
			log.Fatalf("cannot parse date %q: %s", date, err)
		}
	}
	jde := julian.TimeToJD(dt)

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	system := stellarium.NewSystem(logger)
	if err := system.LoadFromConfig(); err != nil {
		log.Fatalf("loading solar system: %s", err)
	}
	if err := system.MinorFailure(); err != nil {
		logger.Log("level", "warn", "msg", "minor bodies unavailable", "err", err)
	}
	if culture != "" {
		if err := system.ApplyNativeNamesFromConfig(culture); err != nil {
			log.Fatalf("loading sky culture %q: %s", culture, err)
		}
	}

	obs := system.SearchByEnglishName(observer)
	if obs == nil {
		log.Fatalf("unknown observer body %q", observer)
	}
	system.ComputePositions(jde, obs)
	obsPos := obs.HeliocentricEclipticPos()
	system.ComputeDistances(obsPos)

	fmt.Printf("Ephemerides for JDE %.5f (%s), observer %s\n", jde, dt.Format(dateFormat), observer)
	fmt.Printf("%-20s %-22s %12s %12s %12s %8s\n", "name", "kind", "x (AU)", "y (AU)", "z (AU)", "Vmag")
	for _, b := range system.Bodies() {
		if b.Hidden() {
			continue
		}
		pos := b.HeliocentricEclipticPos()
		fmt.Printf("%-20s %-22s %12.6f %12.6f %12.6f %8.2f\n",
			b.EnglishName(), b.Kind(), pos[0], pos[1], pos[2], b.VMagnitude(obsPos))
	}
	fmt.Printf("eclipse factor at observer: %.6f\n", system.EclipseFactorFor(obs))
}
