package photogrammetry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func assertMatrixAlmostEqual(t *testing.T, got, want mat.Matrix, tol float64) {
	t.Helper()
	rows, cols := want.Dims()
	gr, gc := got.Dims()
	test.That(t, gr, test.ShouldEqual, rows)
	test.That(t, gc, test.ShouldEqual, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			test.That(t, got.At(i, j), test.ShouldAlmostEqual, want.At(i, j), tol)
		}
	}
}

func TestRotationRoundTrip(t *testing.T) {
	for _, v := range []r3.Vector{
		{X: 0.1, Y: -0.2, Z: 0.3},
		{X: 1e-3, Y: 0, Z: 0},
		{X: 0, Y: 1.4, Z: 0},
		{X: -0.7, Y: 0.7, Z: 1.2},
		r3.Vector{X: 1, Y: 2, Z: -2}.Normalize().Mul(math.Pi - 1e-4),
	} {
		r := RotvecToMatrix(v)
		test.That(t, mat.Det(r), test.ShouldAlmostEqual, 1.0, 1e-12)

		back := AngleParameterisation(r)
		test.That(t, back.X, test.ShouldAlmostEqual, v.X, 1e-7)
		test.That(t, back.Y, test.ShouldAlmostEqual, v.Y, 1e-7)
		test.That(t, back.Z, test.ShouldAlmostEqual, v.Z, 1e-7)
		assertMatrixAlmostEqual(t, RotvecToMatrix(back), r, 1e-9)
	}
}

func TestRotationHalfTurn(t *testing.T) {
	v := r3.Vector{X: 0, Y: 0, Z: math.Pi}
	r := RotvecToMatrix(v)
	back := AngleParameterisation(r)
	test.That(t, back.Norm(), test.ShouldAlmostEqual, math.Pi, 1e-9)
	assertMatrixAlmostEqual(t, RotvecToMatrix(back), r, 1e-9)
}

func TestRotationZero(t *testing.T) {
	r := RotvecToMatrix(r3.Vector{})
	assertMatrixAlmostEqual(t, r, eye3(), 1e-15)
	test.That(t, AngleParameterisation(r), test.ShouldResemble, r3.Vector{})
}

func TestAngleParameterisationRemovesDrift(t *testing.T) {
	v := r3.Vector{X: 0.2, Y: 0.1, Z: -0.05}
	drifted := RotvecToMatrix(v)
	drifted.Set(0, 1, drifted.At(0, 1)+1e-6)
	drifted.Set(2, 0, drifted.At(2, 0)-1e-6)

	nearest := NearestRotation(drifted)
	test.That(t, mat.Det(nearest), test.ShouldAlmostEqual, 1.0, 1e-12)
	var rtr mat.Dense
	rtr.Mul(nearest.T(), nearest)
	assertMatrixAlmostEqual(t, &rtr, eye3(), 1e-12)

	back := AngleParameterisation(drifted)
	test.That(t, back.Sub(v).Norm(), test.ShouldBeLessThan, 1e-5)
}

func TestNearestRotationFlipsReflection(t *testing.T) {
	reflection := mat.NewDense(3, 3, []float64{-1, 0, 0, 0, -1, 0, 0, 0, -1})
	test.That(t, mat.Det(NearestRotation(reflection)), test.ShouldAlmostEqual, 1.0, 1e-12)
}

func TestRotationDerivatives(t *testing.T) {
	const step = 1e-6
	for _, v := range []r3.Vector{{X: 0.3, Y: -0.1, Z: 0.25}, {}} {
		derivatives := RotationDerivatives(v, RotvecToMatrix(v))
		for i := 0; i < 3; i++ {
			var dv r3.Vector
			switch i {
			case 0:
				dv.X = step
			case 1:
				dv.Y = step
			default:
				dv.Z = step
			}
			var numeric mat.Dense
			numeric.Sub(RotvecToMatrix(v.Add(dv)), RotvecToMatrix(v.Sub(dv)))
			numeric.Scale(1/(2*step), &numeric)
			assertMatrixAlmostEqual(t, derivatives[i], &numeric, 1e-6)
		}
	}
}

func TestSkewMatrix(t *testing.T) {
	a := r3.Vector{X: 1, Y: -2, Z: 0.5}
	b := r3.Vector{X: 0.3, Y: 4, Z: -1}
	var product mat.VecDense
	product.MulVec(SkewMatrix(a), mat.NewVecDense(3, []float64{b.X, b.Y, b.Z}))
	cross := a.Cross(b)
	test.That(t, product.AtVec(0), test.ShouldAlmostEqual, cross.X)
	test.That(t, product.AtVec(1), test.ShouldAlmostEqual, cross.Y)
	test.That(t, product.AtVec(2), test.ShouldAlmostEqual, cross.Z)
}
