package estimator

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"panostitch/bundle"
	"panostitch/photogrammetry"
)

type Options struct {
	Bundle bundle.Options
	// Cache is optional; a hit skips bundle adjustment.
	Cache  *Cache
	Logger logrus.FieldLogger
}

// Estimate is the outcome of one pipeline run.
type Estimate struct {
	RunID string
	Key   string
	// Focal is the seeded focal length; zero on a cache hit.
	Focal float64
	// Cameras lists every camera of the match set, refined in place.
	Cameras []*photogrammetry.Camera
	Tree    *SpanTree
	Result  bundle.Result
	Cached  bool
}

// Run estimates and refines every camera of matches: focal seeding, span-tree
// registration, then bundle adjustment. Cameras are updated in place.
func Run(matches []*photogrammetry.Match, opts Options) (*Estimate, error) {
	if len(matches) == 0 {
		return nil, errors.Wrap(photogrammetry.ErrEmptyInput, "no matches")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	runID := uuid.New().String()
	log := opts.Logger.WithField("run", runID)

	key, err := Fingerprint(matches)
	if err != nil {
		return nil, err
	}
	estimate := &Estimate{RunID: runID, Key: key, Cameras: Cameras(matches)}
	log.WithFields(logrus.Fields{
		"matches": len(matches),
		"cameras": len(estimate.Cameras),
		"key":     key,
	}).Info("estimating cameras")

	if opts.Cache != nil {
		snapshot, ok, err := opts.Cache.Load(key)
		if err != nil {
			log.WithError(err).Warn("ignoring unreadable camera cache")
		} else if ok {
			if err := snapshot.Apply(estimate.Cameras); err != nil {
				return nil, errors.Wrap(err, "applying cached cameras")
			}
			estimate.Cached = true
			log.WithField("cached_run", snapshot.RunID).Info("loaded cameras from cache")
			return estimate, nil
		}
	}

	if estimate.Focal, err = SeedFocal(matches, log); err != nil {
		return nil, err
	}
	if estimate.Tree, err = BuildSpanTree(matches, log); err != nil {
		return nil, err
	}

	bundleOpts := opts.Bundle
	bundleOpts.Logger = log
	adj := bundle.New(bundleOpts)
	if err := estimate.Tree.Register(adj); err != nil {
		return nil, errors.Wrap(err, "registering matches")
	}
	if estimate.Result, err = adj.Run(); err != nil {
		return nil, errors.Wrap(err, "bundle adjustment")
	}

	for _, cam := range estimate.Cameras {
		coords := cam.LongLat()
		log.WithFields(logrus.Fields{
			"camera":    cam.ID,
			"focal":     cam.Focal,
			"longitude": coords.Longitude,
			"latitude":  coords.Latitude,
		}).Debug("refined camera")
	}

	if opts.Cache != nil {
		if err := opts.Cache.Store(NewSnapshot(key, runID, estimate.Cameras)); err != nil {
			log.WithError(err).Warn("could not store camera cache")
		}
	}
	return estimate, nil
}
