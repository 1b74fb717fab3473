package bundle

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"panostitch/photogrammetry"
)

// Derivatives of K with respect to focal, ppx and ppy.
var intrinsicDerivatives = [3]*mat.Dense{
	mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 0}),
	mat.NewDense(3, 3, []float64{0, 0, 1, 0, 0, 0, 0, 0, 0}),
	mat.NewDense(3, 3, []float64{0, 0, 0, 0, 0, 1, 0, 0, 0}),
}

// modelHomography maps points of the `to` image onto the `from` image:
// G = K_from * R_from * R_to^T * K_to^-1.
func modelHomography(from, to cameraView) *mat.Dense {
	var g mat.Dense
	g.Product(from.k, from.r, to.r.T(), to.kInv)
	return &g
}

// matchModel is the model homography of one match and its derivatives with respect
// to the six parameters of each endpoint.
type matchModel struct {
	g     *mat.Dense
	dFrom [ParamsPerCamera]*mat.Dense
	dTo   [ParamsPerCamera]*mat.Dense
}

func newMatchModel(from, to cameraView) matchModel {
	model := matchModel{g: modelHomography(from, to)}

	var tail mat.Dense
	tail.Product(from.r, to.r.T(), to.kInv)
	for c, dK := range intrinsicDerivatives {
		var dFrom, dTo mat.Dense
		dFrom.Mul(dK, &tail)
		dTo.Product(model.g, dK, to.kInv)
		dTo.Scale(-1, &dTo)
		model.dFrom[c] = &dFrom
		model.dTo[c] = &dTo
	}

	dRFrom := photogrammetry.RotationDerivatives(from.rotvec, from.r)
	dRTo := photogrammetry.RotationDerivatives(to.rotvec, to.r)
	for i := 0; i < 3; i++ {
		var dFrom, dTo mat.Dense
		dFrom.Product(from.k, dRFrom[i], to.r.T(), to.kInv)
		dTo.Product(from.k, from.r, dRTo[i].T(), to.kInv)
		model.dFrom[paramRX+i] = &dFrom
		model.dTo[paramRX+i] = &dTo
	}
	return model
}

func mulHomogeneous(m mat.Matrix, x [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m.At(i, 0)*x[0] + m.At(i, 1)*x[1] + m.At(i, 2)*x[2]
	}
	return out
}

// residualDerivative is d(observed - p/p_z) given the derivative dp of the homogeneous projection p.
func residualDerivative(p, dp [3]float64) (float64, float64) {
	inv := 1 / p[2]
	inv2 := inv * inv
	return -(dp[0]*inv - p[0]*dp[2]*inv2), -(dp[1]*inv - p[1]*dp[2]*inv2)
}

func project(g mat.Matrix, p r2.Point) (r2.Point, [3]float64) {
	h := mulHomogeneous(g, [3]float64{p.X, p.Y, 1})
	return r2.Point{X: h[0] / h[2], Y: h[1] / h[2]}, h
}

// normalEquations holds the dense Jacobian of the residual vector and J^T * J.
type normalEquations struct {
	j   *mat.Dense
	jtj *mat.Dense
}

// buildNormalEquations fills J row pair by row pair and accumulates the from/from,
// to/to and from/to blocks of J^T * J in the same pass.
func (a *Adjuster) buildNormalEquations(state *State) normalEquations {
	cols := ParamsPerCamera * state.Len()
	j := mat.NewDense(2*a.residualPairs, cols, nil)
	jtj := mat.NewDense(cols, cols, nil)

	var rowFrom, rowTo [2][ParamsPerCamera]float64
	for m, entry := range a.matches {
		model := newMatchModel(state.views[entry.from], state.views[entry.to])
		colFrom := entry.from * ParamsPerCamera
		colTo := entry.to * ParamsPerCamera

		for k, pair := range entry.match.Inliers {
			row := 2 * (a.offsets[m] + k)
			x := [3]float64{pair.To.X, pair.To.Y, 1}
			p := mulHomogeneous(model.g, x)

			for c := 0; c < ParamsPerCamera; c++ {
				rowFrom[0][c], rowFrom[1][c] = residualDerivative(p, mulHomogeneous(model.dFrom[c], x))
				rowTo[0][c], rowTo[1][c] = residualDerivative(p, mulHomogeneous(model.dTo[c], x))
				j.Set(row, colFrom+c, rowFrom[0][c])
				j.Set(row+1, colFrom+c, rowFrom[1][c])
				j.Set(row, colTo+c, rowTo[0][c])
				j.Set(row+1, colTo+c, rowTo[1][c])
			}

			for c1 := 0; c1 < ParamsPerCamera; c1++ {
				for c2 := 0; c2 < ParamsPerCamera; c2++ {
					ff := rowFrom[0][c1]*rowFrom[0][c2] + rowFrom[1][c1]*rowFrom[1][c2]
					tt := rowTo[0][c1]*rowTo[0][c2] + rowTo[1][c1]*rowTo[1][c2]
					ft := rowFrom[0][c1]*rowTo[0][c2] + rowFrom[1][c1]*rowTo[1][c2]
					jtj.Set(colFrom+c1, colFrom+c2, jtj.At(colFrom+c1, colFrom+c2)+ff)
					jtj.Set(colTo+c1, colTo+c2, jtj.At(colTo+c1, colTo+c2)+tt)
					jtj.Set(colFrom+c1, colTo+c2, jtj.At(colFrom+c1, colTo+c2)+ft)
					jtj.Set(colTo+c2, colFrom+c1, jtj.At(colTo+c2, colFrom+c1)+ft)
				}
			}
		}
	}
	return normalEquations{j: j, jtj: jtj}
}
