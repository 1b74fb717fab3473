package photogrammetry

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultRansacIterations = 1000
	// DefaultRansacThreshold is a squared pixel distance.
	DefaultRansacThreshold = 4.0
)

// RansacOptions configures EstimateHomographyRansac. Zero values select the defaults;
// a nil Rand is seeded from the clock.
type RansacOptions struct {
	MaxIterations int
	Threshold     float64
	Rand          *rand.Rand
	Logger        logrus.FieldLogger
}

func (o RansacOptions) withDefaults() RansacOptions {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultRansacIterations
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultRansacThreshold
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// sampleIndices draws k distinct indices in [0, n).
func sampleIndices(rng *rand.Rand, n, k int) []int {
	picked := make([]int, 0, k)
	for len(picked) < k {
		candidate := rng.Intn(n)
		duplicate := false
		for _, idx := range picked {
			if idx == candidate {
				duplicate = true
				break
			}
		}
		if !duplicate {
			picked = append(picked, candidate)
		}
	}
	return picked
}

// EstimateHomographyRansac fits to ~ H * from robustly. Every iteration fits a minimal
// sample by DLT and counts the correspondences whose transfer error is below the threshold.
// The hypothesis with the most inliers wins; on ties the first one found is kept.
func EstimateHomographyRansac(from, to []r2.Point, opts RansacOptions) (*mat.Dense, []Correspondence, error) {
	if len(from) != len(to) {
		return nil, nil, errors.Wrapf(ErrDegenerateGeometry, "point sets differ in length: %d and %d", len(from), len(to))
	}
	if len(from) < MinHomographyPoints {
		return nil, nil, tooFewPointsError{got: len(from)}
	}
	opts = opts.withDefaults()

	var best *mat.Dense
	var bestInliers []Correspondence
	sampleFrom := make([]r2.Point, MinHomographyPoints)
	sampleTo := make([]r2.Point, MinHomographyPoints)
	degenerate := 0

	for iter := 0; iter < opts.MaxIterations; iter++ {
		for i, idx := range sampleIndices(opts.Rand, len(from), MinHomographyPoints) {
			sampleFrom[i] = from[idx]
			sampleTo[i] = to[idx]
		}
		h, err := EstimateHomography(sampleFrom, sampleTo)
		if err != nil {
			degenerate++
			continue
		}

		var inliers []Correspondence
		for i := range from {
			if TransferError(h, from[i], to[i]) < opts.Threshold {
				inliers = append(inliers, Correspondence{From: from[i], To: to[i]})
			}
		}
		if len(inliers) > len(bestInliers) {
			best = h
			bestInliers = inliers
		}
	}

	opts.Logger.WithFields(logrus.Fields{
		"points":     len(from),
		"inliers":    len(bestInliers),
		"iterations": opts.MaxIterations,
		"degenerate": degenerate,
	}).Debug("ransac finished")

	if best == nil {
		return nil, nil, errors.Wrapf(ErrNoInliersFound, "%d iterations over %d correspondences", opts.MaxIterations, len(from))
	}
	return best, bestInliers, nil
}
