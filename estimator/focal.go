package estimator

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"panostitch/photogrammetry"
)

// Cameras lists the distinct endpoints of matches in order of first appearance.
func Cameras(matches []*photogrammetry.Match) []*photogrammetry.Camera {
	seen := map[*photogrammetry.Camera]bool{}
	var cameras []*photogrammetry.Camera
	for _, m := range matches {
		for _, cam := range m.Cameras() {
			if !seen[cam] {
				seen[cam] = true
				cameras = append(cameras, cam)
			}
		}
	}
	return cameras
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// SeedFocal sets the focal of every camera to the median of the usable per-match
// estimates. Matches whose homography gives no real positive estimate are skipped.
func SeedFocal(matches []*photogrammetry.Match, logger logrus.FieldLogger) (float64, error) {
	var estimates []float64
	for _, m := range matches {
		f, ok := m.EstimateFocal()
		entry := logger.WithFields(logrus.Fields{"from": m.From.ID, "to": m.To.ID})
		if !ok {
			entry.Debug("no focal estimate")
			continue
		}
		entry.WithField("focal", f).Debug("focal estimate")
		estimates = append(estimates, f)
	}
	if len(estimates) == 0 {
		return 0, errors.Wrapf(photogrammetry.ErrDegenerateGeometry, "none of %d matches gives a focal estimate", len(matches))
	}

	focal := median(estimates)
	for _, cam := range Cameras(matches) {
		cam.Focal = focal
	}
	logger.WithFields(logrus.Fields{"focal": focal, "estimates": len(estimates)}).Info("seeded focal length")
	return focal, nil
}
