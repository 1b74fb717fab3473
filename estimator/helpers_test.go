package estimator

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/sirupsen/logrus"
	"go.viam.com/test"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"panostitch/bundle"
	"panostitch/photogrammetry"
)

const rigFocal = 800.0

var rigRotations = []r3.Vector{
	{},
	{X: 0.01, Y: 0.15, Z: 0},
	{X: -0.02, Y: 0.28, Z: 0.015},
}

type rig struct {
	truth   []*photogrammetry.Camera
	cameras []*photogrammetry.Camera
}

// newRig returns ground truth cameras sharing a centre and blank cameras with the same IDs.
func newRig() *rig {
	r := &rig{}
	for i, v := range rigRotations {
		id := string(rune('a' + i))
		r.truth = append(r.truth, &photogrammetry.Camera{ID: id, Focal: rigFocal, R: photogrammetry.RotvecToMatrix(v)})
		r.cameras = append(r.cameras, photogrammetry.NewCamera(id))
	}
	return r
}

func gridPoints(nx, ny int) []r2.Point {
	var points []r2.Point
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			points = append(points, r2.Point{X: -200 + float64(i)*400/float64(nx-1), Y: -150 + float64(j)*300/float64(ny-1)})
		}
	}
	return points
}

// homography is the true x_to ~ H * x_from between two rig cameras.
func (r *rig) homography(t *testing.T, from, to int) *mat.Dense {
	t.Helper()
	kInv, err := r.truth[from].KInv()
	test.That(t, err, test.ShouldBeNil)
	var h mat.Dense
	h.Product(r.truth[to].K(), r.truth[to].R, r.truth[from].R.T(), kInv)
	h.Scale(1/h.At(2, 2), &h)
	return &h
}

// match builds a noiseless match between the blank cameras from and to.
func (r *rig) match(t *testing.T, from, to int, points []r2.Point) *photogrammetry.Match {
	t.Helper()
	h := r.homography(t, from, to)
	inliers := make([]photogrammetry.Correspondence, len(points))
	for i, p := range points {
		inliers[i] = photogrammetry.Correspondence{From: p, To: photogrammetry.ApplyHomography(h, p)}
	}
	return photogrammetry.NewMatch(r.cameras[from], r.cameras[to], h, inliers)
}

// rotationError compares cam i against the truth expressed in the frame of reference camera ref.
func (r *rig) rotationError(i, ref int) float64 {
	var want, diff mat.Dense
	want.Mul(r.truth[i].R, r.truth[ref].R.T())
	diff.Sub(r.cameras[i].R, &want)
	return mat.Norm(&diff, math.Inf(1))
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func testOptions(seed uint64) Options {
	bundleOpts := bundle.DefaultOptions()
	bundleOpts.Source = rand.NewSource(seed)
	return Options{Bundle: bundleOpts, Logger: quietLogger()}
}
