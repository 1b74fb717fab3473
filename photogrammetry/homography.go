package photogrammetry

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinHomographyPoints is the size of a minimal homography sample.
const MinHomographyPoints = 4

const (
	// singular values below this fraction of the largest mark a rank deficient design matrix.
	rankTolerance = 1e-10
	// a normalised homography whose bottom-right entry is smaller than this cannot be scaled to 1.
	scaleTolerance = 1e-12
)

func scaleHomogeneousPoint(point mat.Vector) mat.Vector {
	var vector mat.VecDense
	vector.ScaleVec(1/point.AtVec(point.Len()-1), point)
	return &vector
}

func homogeneous(p r2.Point) *mat.VecDense {
	return mat.NewVecDense(3, []float64{p.X, p.Y, 1})
}

// ApplyHomography maps p through h and divides by the homogeneous coordinate.
func ApplyHomography(h mat.Matrix, p r2.Point) r2.Point {
	var projected mat.VecDense
	projected.MulVec(h, homogeneous(p))
	scaled := scaleHomogeneousPoint(&projected)
	return r2.Point{X: scaled.AtVec(0), Y: scaled.AtVec(1)}
}

// TransferError is the squared pixel distance between h*from and to.
func TransferError(h mat.Matrix, from, to r2.Point) float64 {
	d := ApplyHomography(h, from).Sub(to)
	return d.Dot(d)
}

// normalizePoints translates the points to their centroid and scales them so their
// mean distance to the origin is sqrt(2). It returns the similarity used and its inverse.
func normalizePoints(points []r2.Point) ([]r2.Point, *mat.Dense, *mat.Dense, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	centroid := r2.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}

	dists := make([]float64, len(points))
	for i, p := range points {
		dists[i] = p.Sub(centroid).Norm()
	}
	meanDist := stat.Mean(dists, nil)
	if meanDist < scaleTolerance || math.IsNaN(meanDist) || math.IsInf(meanDist, 0) {
		return nil, nil, nil, errors.Wrap(ErrDegenerateGeometry, "points collapse onto their centroid")
	}
	scale := math.Sqrt2 / meanDist

	normalized := make([]r2.Point, len(points))
	for i, p := range points {
		normalized[i] = p.Sub(centroid).Mul(scale)
	}
	transform := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * centroid.X,
		0, scale, -scale * centroid.Y,
		0, 0, 1,
	})
	inverse := mat.NewDense(3, 3, []float64{
		1 / scale, 0, centroid.X,
		0, 1 / scale, centroid.Y,
		0, 0, 1,
	})
	return normalized, transform, inverse, nil
}

// EstimateHomography fits H with to ~ H * from by the normalised direct linear transform.
// The result is scaled so H[2][2] = 1.
func EstimateHomography(from, to []r2.Point) (*mat.Dense, error) {
	if len(from) != len(to) {
		return nil, errors.Wrapf(ErrDegenerateGeometry, "point sets differ in length: %d and %d", len(from), len(to))
	}
	if len(from) < MinHomographyPoints {
		return nil, tooFewPointsError{got: len(from)}
	}

	normFrom, tFrom, _, err := normalizePoints(from)
	if err != nil {
		return nil, errors.Wrap(err, "source points")
	}
	normTo, _, tToInv, err := normalizePoints(to)
	if err != nil {
		return nil, errors.Wrap(err, "destination points")
	}

	design := mat.NewDense(2*len(from), 9, nil)
	for i := range normFrom {
		x, y := normFrom[i].X, normFrom[i].Y
		u, v := normTo[i].X, normTo[i].Y
		design.SetRow(2*i, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
		design.SetRow(2*i+1, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDFull); !ok {
		return nil, errors.Wrap(ErrDegenerateGeometry, "design matrix factorisation failed")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7] <= rankTolerance*values[0] {
		return nil, errors.Wrap(ErrDegenerateGeometry, "collinear or duplicated points")
	}

	var v mat.Dense
	svd.VTo(&v)
	hNorm := mat.NewDense(3, 3, mat.Col(nil, 8, &v))

	var h mat.Dense
	h.Product(tToInv, hNorm, tFrom)

	scale := h.At(2, 2)
	if math.Abs(scale) < scaleTolerance*mat.Norm(&h, 2) {
		return nil, errors.Wrap(ErrDegenerateGeometry, "homography maps the origin to infinity")
	}
	h.Scale(1/scale, &h)
	h.Set(2, 2, 1)
	return &h, nil
}
