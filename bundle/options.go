package bundle

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

type Options struct {
	// MaxIterations caps the number of damped steps tried.
	MaxIterations int
	// ImprovementTolerance is how much a step must lower the best RMS to be accepted.
	ImprovementTolerance float64
	// MaxStalls is how many consecutive rejected steps are tolerated.
	MaxStalls int
	// IntrinsicDamping is added to the focal/ppx/ppy diagonal of the normal matrix.
	IntrinsicDamping float64
	// RotationDamping is added to the rotation diagonal of the normal matrix.
	RotationDamping float64
	// JitterSigma is the deviation of the per-iteration damping factor drawn around 1.
	JitterSigma float64

	// Source feeds the damping jitter. Nil seeds from the clock.
	Source rand.Source
	Logger logrus.FieldLogger

	// tuned is set by DefaultOptions. Unless it is set, a zero tolerance, stall count
	// or sigma falls back to its default.
	tuned bool
}

func DefaultOptions() Options {
	return Options{
		MaxIterations:        50,
		ImprovementTolerance: 1e-3,
		MaxStalls:            5,
		IntrinsicDamping:     150,
		RotationDamping:      math.Pi / 16,
		JitterSigma:          0.1,
		tuned:                true,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.IntrinsicDamping <= 0 {
		o.IntrinsicDamping = def.IntrinsicDamping
	}
	if o.RotationDamping <= 0 {
		o.RotationDamping = def.RotationDamping
	}
	if !o.tuned {
		if o.ImprovementTolerance == 0 {
			o.ImprovementTolerance = def.ImprovementTolerance
		}
		if o.MaxStalls == 0 {
			o.MaxStalls = def.MaxStalls
		}
		if o.JitterSigma == 0 {
			o.JitterSigma = def.JitterSigma
		}
	}
	if o.Source == nil {
		o.Source = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}
