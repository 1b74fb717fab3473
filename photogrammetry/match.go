package photogrammetry

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Match is a pairwise edge between two cameras: x_to ~ H * x_from for every inlier.
// The cameras are shared with other matches, not owned.
type Match struct {
	From    *Camera
	To      *Camera
	H       *mat.Dense
	Inliers []Correspondence
}

func NewMatch(from, to *Camera, h mat.Matrix, inliers []Correspondence) *Match {
	return &Match{From: from, To: to, H: mat.DenseCopyOf(h), Inliers: inliers}
}

func (m *Match) Cameras() []*Camera {
	return []*Camera{m.From, m.To}
}

// NormalizeH scales H in place so H[2][2] = 1.
func (m *Match) NormalizeH() error {
	scale := m.H.At(2, 2)
	if math.Abs(scale) < scaleTolerance*mat.Norm(m.H, 2) {
		return errors.Wrapf(ErrDegenerateGeometry, "match %s -> %s: homography cannot be normalised", m.From.ID, m.To.ID)
	}
	m.H.Scale(1/scale, m.H)
	m.H.Set(2, 2, 1)
	return nil
}

// Reverse returns the same edge seen from the other side: endpoints swapped,
// H inverted and every inlier pair swapped.
func (m *Match) Reverse() (*Match, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.H); err != nil {
		return nil, errors.Wrapf(ErrDegenerateGeometry, "match %s -> %s: %v", m.From.ID, m.To.ID, err)
	}
	inliers := make([]Correspondence, len(m.Inliers))
	for i, pair := range m.Inliers {
		inliers[i] = Correspondence{From: pair.To, To: pair.From}
	}
	return &Match{From: m.To, To: m.From, H: &inv, Inliers: inliers}, nil
}

// focalCandidate picks a squared focal from two algebraic estimates with denominators d1 and d2.
func focalCandidate(d1, d2, v1, v2 float64) (float64, bool) {
	if v1 < v2 {
		v1, v2 = v2, v1
	}
	switch {
	case v1 > 0 && v2 > 0:
		if math.Abs(d1) > math.Abs(d2) {
			return math.Sqrt(v1), true
		}
		return math.Sqrt(v2), true
	case v1 > 0:
		return math.Sqrt(v1), true
	default:
		return 0, false
	}
}

// EstimateFocal derives a focal length from H assuming both views share a centre of
// projection and a principal point at the origin. ok is false when either closed-form
// estimate is non-positive or not finite.
func (m *Match) EstimateFocal() (float64, bool) {
	h := m.H
	h00, h01, h02 := h.At(0, 0), h.At(0, 1), h.At(0, 2)
	h10, h11, h12 := h.At(1, 0), h.At(1, 1), h.At(1, 2)
	h20, h21 := h.At(2, 0), h.At(2, 1)

	d1 := h20 * h21
	d2 := (h21 - h20) * (h21 + h20)
	v1 := -(h00*h01 + h10*h11) / d1
	v2 := (h00*h00 + h10*h10 - h01*h01 - h11*h11) / d2
	f1, ok := focalCandidate(d1, d2, v1, v2)
	if !ok {
		return 0, false
	}

	d1 = h00*h10 + h01*h11
	d2 = h00*h00 + h01*h01 - h10*h10 - h11*h11
	v1 = -h02 * h12 / d1
	v2 = (h12*h12 - h02*h02) / d2
	f0, ok := focalCandidate(d1, d2, v1, v2)
	if !ok {
		return 0, false
	}

	f := math.Sqrt(f1 * f0)
	if math.IsInf(f, 0) || math.IsNaN(f) || f <= 0 {
		return 0, false
	}
	return f, true
}
