package photogrammetry

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

// rotationHomography is the homography x_to ~ H * x_from between two cameras sharing a centre.
func rotationHomography(t *testing.T, from, to *Camera) *mat.Dense {
	t.Helper()
	kInv, err := from.KInv()
	test.That(t, err, test.ShouldBeNil)
	var h mat.Dense
	h.Product(to.K(), to.R, from.R.T(), kInv)
	return &h
}

func TestMatchEstimateFocal(t *testing.T) {
	from := &Camera{ID: "a", Focal: 800, R: eye3()}
	to := &Camera{ID: "b", Focal: 800, R: RotvecToMatrix(r3.Vector{X: 0.02, Y: 0.1, Z: 0.01})}
	m := NewMatch(from, to, rotationHomography(t, from, to), nil)

	f, ok := m.EstimateFocal()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, f, test.ShouldAlmostEqual, 800.0, 1e-6)

	reversed, err := m.Reverse()
	test.That(t, err, test.ShouldBeNil)
	f, ok = reversed.EstimateFocal()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, f, test.ShouldAlmostEqual, 800.0, 1e-6)
}

func TestMatchEstimateFocalUnusable(t *testing.T) {
	m := NewMatch(NewCamera("a"), NewCamera("b"), eye3(), nil)
	f, ok := m.EstimateFocal()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, f, test.ShouldEqual, 0.0)

	// a pure translation has no perspective row and gives no estimate either
	m.H = mat.NewDense(3, 3, []float64{1, 0, 30, 0, 1, -4, 0, 0, 1})
	_, ok = m.EstimateFocal()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestMatchReverse(t *testing.T) {
	a, b := NewCamera("a"), NewCamera("b")
	h := knownHomography()
	inliers := []Correspondence{
		{From: r2.Point{X: 1, Y: 2}, To: ApplyHomography(h, r2.Point{X: 1, Y: 2})},
		{From: r2.Point{X: -40, Y: 9}, To: ApplyHomography(h, r2.Point{X: -40, Y: 9})},
	}
	m := NewMatch(a, b, h, inliers)

	reversed, err := m.Reverse()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reversed.From, test.ShouldEqual, b)
	test.That(t, reversed.To, test.ShouldEqual, a)
	test.That(t, reversed.Inliers, test.ShouldHaveLength, 2)
	for i, pair := range reversed.Inliers {
		test.That(t, pair.From, test.ShouldResemble, inliers[i].To)
		test.That(t, pair.To, test.ShouldResemble, inliers[i].From)
		test.That(t, TransferError(reversed.H, pair.From, pair.To), test.ShouldBeLessThan, 1e-16)
	}

	singular := NewMatch(a, b, mat.NewDense(3, 3, nil), nil)
	_, err = singular.Reverse()
	test.That(t, errors.Is(err, ErrDegenerateGeometry), test.ShouldBeTrue)
}

func TestMatchNormalizeH(t *testing.T) {
	h := knownHomography()
	h.Scale(-3.5, h)
	m := NewMatch(NewCamera("a"), NewCamera("b"), h, nil)
	test.That(t, m.NormalizeH(), test.ShouldBeNil)
	assertMatrixAlmostEqual(t, m.H, knownHomography(), 1e-12)

	// NewMatch copies the homography it is given
	test.That(t, h.At(2, 2), test.ShouldEqual, -3.5)

	m.H.Set(2, 2, 0)
	test.That(t, errors.Is(m.NormalizeH(), ErrDegenerateGeometry), test.ShouldBeTrue)
	test.That(t, m.Cameras(), test.ShouldHaveLength, 2)
}
