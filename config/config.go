package config

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v3"

	"panostitch/bundle"
	"panostitch/photogrammetry"
)

// Config is the panostitch configuration file.
type Config struct {
	Ransac RansacConfig `yaml:"ransac"`
	Bundle BundleConfig `yaml:"bundle"`
	// Seed drives RANSAC sampling and the damping jitter. 0 seeds from the clock.
	Seed     uint64 `yaml:"seed"`
	CacheDir string `yaml:"cache_dir"` // empty disables the camera cache
	LogLevel string `yaml:"log_level"`
}

type RansacConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Threshold     float64 `yaml:"threshold"` // squared pixel distance
}

type BundleConfig struct {
	MaxIterations        int     `yaml:"max_iterations"`
	ImprovementTolerance float64 `yaml:"improvement_tolerance"`
	MaxStalls            int     `yaml:"max_stalls"`
	IntrinsicDamping     float64 `yaml:"intrinsic_damping"`
	RotationDamping      float64 `yaml:"rotation_damping"`
	JitterSigma          float64 `yaml:"jitter_sigma"`
}

func Default() *Config {
	return &Config{
		Ransac: RansacConfig{
			MaxIterations: photogrammetry.DefaultRansacIterations,
			Threshold:     photogrammetry.DefaultRansacThreshold,
		},
		Bundle: BundleConfig{
			MaxIterations:        50,
			ImprovementTolerance: 1e-3,
			MaxStalls:            5,
			IntrinsicDamping:     150,
			RotationDamping:      math.Pi / 16,
			JitterSigma:          0.1,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Keys missing from the file keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Level returns the configured logrus level.
func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

func (c *Config) source(offset uint64) rand.Source {
	if c.Seed == 0 {
		return nil
	}
	return rand.NewSource(c.Seed + offset)
}

// RansacOptions builds the RANSAC options. A zero seed leaves the generator to be
// seeded from the clock.
func (c *Config) RansacOptions(logger logrus.FieldLogger) photogrammetry.RansacOptions {
	opts := photogrammetry.RansacOptions{
		MaxIterations: c.Ransac.MaxIterations,
		Threshold:     c.Ransac.Threshold,
		Logger:        logger,
	}
	if src := c.source(0); src != nil {
		opts.Rand = rand.New(src)
	}
	return opts
}

// BundleOptions starts from bundle.DefaultOptions, so zero values read from the file
// are kept as given.
func (c *Config) BundleOptions(logger logrus.FieldLogger) bundle.Options {
	opts := bundle.DefaultOptions()
	opts.MaxIterations = c.Bundle.MaxIterations
	opts.ImprovementTolerance = c.Bundle.ImprovementTolerance
	opts.MaxStalls = c.Bundle.MaxStalls
	opts.IntrinsicDamping = c.Bundle.IntrinsicDamping
	opts.RotationDamping = c.Bundle.RotationDamping
	opts.JitterSigma = c.Bundle.JitterSigma
	opts.Source = c.source(1)
	opts.Logger = logger
	return opts
}
