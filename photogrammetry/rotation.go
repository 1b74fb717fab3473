package photogrammetry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

const (
	// skew parts below this norm are treated as no rotation (or a half turn).
	rotationEpsilon = 1e-7
	// rotation vectors below this norm use the generators of so(3) as derivatives.
	derivativeEpsilon = 1e-8
)

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// SkewMatrix returns the cross-product matrix [v]x, so that [v]x * w = v x w.
func SkewMatrix(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// NearestRotation projects m onto the closest proper rotation using its SVD (U*V^T).
func NearestRotation(m mat.Matrix) *mat.Dense {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return mat.DenseCopyOf(m)
	}
	var u, v, rot mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot.Mul(&u, v.T())
	if mat.Det(&rot) < 0 {
		rot.Scale(-1, &rot)
	}
	return &rot
}

// AngleParameterisation converts a rotation matrix to its rotation vector (axis * angle).
// The matrix is first projected onto the nearest rotation to cancel numerical drift.
func AngleParameterisation(rotation mat.Matrix) r3.Vector {
	r := NearestRotation(rotation)

	axis := r3.Vector{
		X: r.At(2, 1) - r.At(1, 2),
		Y: r.At(0, 2) - r.At(2, 0),
		Z: r.At(1, 0) - r.At(0, 1),
	}
	s := axis.Norm()

	cos := (mat.Trace(r) - 1) * 0.5
	cos = math.Max(-1, math.Min(1, cos))
	theta := math.Acos(cos)

	if s < rotationEpsilon {
		if cos > 0 {
			return r3.Vector{}
		}
		return halfTurn(r, axis).Mul(theta)
	}
	return axis.Mul(theta / s)
}

// halfTurn recovers the unit axis of a rotation by (nearly) pi, where the skew part vanishes.
// Near pi, (R + I) / 2 ~ n * n^T.
func halfTurn(r *mat.Dense, skew r3.Vector) r3.Vector {
	var outer mat.Dense
	outer.Add(r, eye3())
	outer.Scale(0.5, &outer)

	col := 0
	for i := 1; i < 3; i++ {
		if outer.At(i, i) > outer.At(col, col) {
			col = i
		}
	}
	pivot := math.Sqrt(math.Max(outer.At(col, col), 0))
	if pivot == 0 {
		return r3.Vector{X: 1}
	}
	n := r3.Vector{
		X: outer.At(0, col) / pivot,
		Y: outer.At(1, col) / pivot,
		Z: outer.At(2, col) / pivot,
	}.Normalize()
	if n.Dot(skew) < 0 {
		n = n.Mul(-1)
	}
	return n
}

// RotvecToMatrix builds the rotation matrix of an axis-angle vector (Rodrigues formula).
func RotvecToMatrix(v r3.Vector) *mat.Dense {
	theta := v.Norm()
	rot := eye3()
	if theta < 1e-12 {
		rot.Add(rot, SkewMatrix(v))
		return rot
	}

	k := SkewMatrix(v.Mul(1 / theta))
	var k2 mat.Dense
	k2.Mul(k, k)
	k.Scale(math.Sin(theta), k)
	k2.Scale(1-math.Cos(theta), &k2)

	rot.Add(rot, k)
	rot.Add(rot, &k2)
	return rot
}

// RotationDerivatives returns dR/dv_x, dR/dv_y and dR/dv_z for R = RotvecToMatrix(v):
//
//	dR/dv_i = (v_i [v]x + [v x (I - R) e_i]x) / |v|^2 * R
//
// At the identity the derivatives are the generators [e_i]x.
func RotationDerivatives(v r3.Vector, rotation mat.Matrix) [3]*mat.Dense {
	norm2 := v.Norm2()
	if math.Sqrt(norm2) < derivativeEpsilon {
		return [3]*mat.Dense{
			SkewMatrix(r3.Vector{X: 1}),
			SkewMatrix(r3.Vector{Y: 1}),
			SkewMatrix(r3.Vector{Z: 1}),
		}
	}

	var iMinusR mat.Dense
	iMinusR.Sub(eye3(), rotation)

	skew := SkewMatrix(v)
	components := [3]float64{v.X, v.Y, v.Z}

	var out [3]*mat.Dense
	for i := range components {
		col := r3.Vector{X: iMinusR.At(0, i), Y: iMinusR.At(1, i), Z: iMinusR.At(2, i)}

		var sum mat.Dense
		sum.Scale(components[i], skew)
		sum.Add(&sum, SkewMatrix(v.Cross(col)))
		sum.Scale(1/norm2, &sum)

		var d mat.Dense
		d.Mul(&sum, rotation)
		out[i] = &d
	}
	return out
}
