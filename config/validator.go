package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.Ransac.MaxIterations <= 0 {
		return errors.New("ransac.max_iterations must be > 0")
	}
	if cfg.Ransac.Threshold <= 0 {
		return errors.New("ransac.threshold must be > 0")
	}

	if err := validateBundle(cfg.Bundle); err != nil {
		return errors.Wrap(err, "bundle")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Errorf("log_level %q is not a logrus level", cfg.LogLevel)
	}
	return nil
}

func validateBundle(b BundleConfig) error {
	switch {
	case b.MaxIterations <= 0:
		return errors.New("max_iterations must be > 0")
	case b.ImprovementTolerance < 0:
		return errors.New("improvement_tolerance must be >= 0")
	case b.MaxStalls < 0:
		return errors.New("max_stalls must be >= 0")
	case b.IntrinsicDamping <= 0:
		return errors.New("intrinsic_damping must be > 0")
	case b.RotationDamping <= 0:
		return errors.New("rotation_damping must be > 0")
	case b.JitterSigma < 0:
		return errors.New("jitter_sigma must be >= 0")
	}
	return nil
}
