package stellarium

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	cfgLoaded = false
	config    = _config{}
)

// _config is a "hidden" struct, just use `coreConfig`.
type _config struct {
	MajorBodiesFile  string
	MinorBodiesFiles []string
	VSOP87Dir        string
	SkyCulturesDir   string
	LightTravelTime  bool
}

// coreConfig returns the process configuration, loaded once from the
// conf.toml found through the STELLARIUM_CONFIG environment variable.
func coreConfig() _config {
	if cfgLoaded {
		return config
	}
	confPath := os.Getenv("STELLARIUM_CONFIG")
	if confPath == "" {
		panic("environment variable `STELLARIUM_CONFIG` is missing or empty")
	}
	viper.SetConfigName("conf")
	viper.AddConfigPath(confPath)
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("%s/conf.toml not found", confPath))
	}

	config = _config{
		MajorBodiesFile:  viper.GetString("data.major_bodies"),
		MinorBodiesFiles: viper.GetStringSlice("data.minor_bodies"),
		VSOP87Dir:        viper.GetString("VSOP87.directory"),
		SkyCulturesDir:   viper.GetString("data.skycultures"),
		LightTravelTime:  viper.GetBool("astro.light_travel_time"),
	}
	if config.MajorBodiesFile == "" {
		panic("data.major_bodies is not set")
	}
	cfgLoaded = true
	return config
}

// LoadFromConfig loads the two body-definition sources named in the process
// configuration and applies the configured flags.
func (s *System) LoadFromConfig() error {
	cfg := coreConfig()
	s.vsop87Dir = cfg.VSOP87Dir
	flags := s.flags
	flags.LightTravelTime = cfg.LightTravelTime
	s.flags = flags
	return s.LoadFromFiles(cfg.MajorBodiesFile, cfg.MinorBodiesFiles...)
}

// ApplyNativeNamesFromConfig reads the named sky culture's body-name table
// from the configured sky-cultures directory and applies it to the registry.
func (s *System) ApplyNativeNamesFromConfig(culture string) error {
	cfg := coreConfig()
	names, err := ReadNativeNames(filepath.Join(cfg.SkyCulturesDir, culture, "planet_names.fab"), s.logger)
	if err != nil {
		return err
	}
	s.ApplyNativeNames(names)
	return nil
}
