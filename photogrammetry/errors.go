package photogrammetry

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds returned by the estimation pipeline. Callers match them with errors.Is.
var (
	ErrEmptyInput         = errors.New("empty input")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrDisconnectedGraph  = errors.New("disconnected match graph")
	ErrNoInliersFound     = errors.New("no inliers found")
	ErrSingularSystem     = errors.New("singular system")
)

// tooFewPointsError is both an empty input and a degenerate geometry: a homography
// cannot be fitted without four correspondences.
type tooFewPointsError struct {
	got int
}

func (e tooFewPointsError) Error() string {
	return fmt.Sprintf("homography needs at least %d correspondences, got %d", MinHomographyPoints, e.got)
}

func (e tooFewPointsError) Is(target error) bool {
	return target == ErrEmptyInput || target == ErrDegenerateGeometry
}
