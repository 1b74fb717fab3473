package bundle

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"panostitch/photogrammetry"
)

var rigRotations = []r3.Vector{
	{},
	{X: 0, Y: 0.12, Z: 0.01},
	{X: 0.03, Y: 0.25, Z: -0.02},
}

const rigFocal = 800.0

// rigCameras returns cameras sharing a centre of projection with the rig rotations.
func rigCameras() []*photogrammetry.Camera {
	cameras := make([]*photogrammetry.Camera, len(rigRotations))
	for i, v := range rigRotations {
		cameras[i] = &photogrammetry.Camera{
			ID:    string(rune('a' + i)),
			Focal: rigFocal,
			R:     photogrammetry.RotvecToMatrix(v),
		}
	}
	return cameras
}

func rigPoints() []r2.Point {
	var points []r2.Point
	for i := 0; i < 7; i++ {
		for j := 0; j < 6; j++ {
			points = append(points, r2.Point{X: -180 + float64(i)*60, Y: -150 + float64(j)*60})
		}
	}
	return points
}

// rigMatch builds a noiseless match from -> to with x_to ~ K_to R_to R_from^T K_from^-1 x_from.
func rigMatch(t *testing.T, from, to *photogrammetry.Camera, points []r2.Point) *photogrammetry.Match {
	t.Helper()
	kInv, err := from.KInv()
	test.That(t, err, test.ShouldBeNil)
	var h mat.Dense
	h.Product(to.K(), to.R, from.R.T(), kInv)

	inliers := make([]photogrammetry.Correspondence, len(points))
	for i, p := range points {
		inliers[i] = photogrammetry.Correspondence{From: p, To: photogrammetry.ApplyHomography(&h, p)}
	}
	return photogrammetry.NewMatch(from, to, &h, inliers)
}

// rigMatches connects a->b, b->c and a->c.
func rigMatches(t *testing.T, cameras []*photogrammetry.Camera) []*photogrammetry.Match {
	t.Helper()
	points := rigPoints()
	return []*photogrammetry.Match{
		rigMatch(t, cameras[0], cameras[1], points),
		rigMatch(t, cameras[1], cameras[2], points),
		rigMatch(t, cameras[0], cameras[2], points[:30]),
	}
}

func testOptions(seed uint64) Options {
	opts := DefaultOptions()
	opts.Source = rand.NewSource(seed)
	return opts
}

// relativeRotationError is the infinity norm of R_cam * R_ref^T - want.
func relativeRotationError(ref, cam *photogrammetry.Camera, want mat.Matrix) float64 {
	var rel, diff mat.Dense
	rel.Mul(cam.R, ref.R.T())
	diff.Sub(&rel, want)
	return mat.Norm(&diff, math.Inf(1))
}
