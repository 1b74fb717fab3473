package photogrammetry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func FormatMatrixPrint(matrix mat.Matrix) fmt.Formatter {
	return mat.Formatted(matrix, mat.Prefix("    "), mat.Squeeze())
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func Rad2Degrees(rad float64) float64 {
	res := rad * 180 / math.Pi
	return roundFloat(res, 10)
}

// GetLongLat returns the longitude and latitude (radians) of a direction vector
// centered at the origin. Latitude is measured from the x/y plane towards +z.
func GetLongLat(vector r3.Vector) (float64, float64) {
	v := vector.Normalize()
	latitude := math.Atan2(v.Z, math.Sqrt(math.Pow(v.X, 2)+math.Pow(v.Y, 2)))
	longitude := math.Atan2(v.Y, v.X)
	return longitude, latitude
}

// NewMatrixInfo flattens a matrix row-major.
func NewMatrixInfo(matrix mat.Matrix) MatrixInfo {
	rows, cols := matrix.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, matrix.At(i, j))
		}
	}
	return MatrixInfo{Shape: Shape{Row: rows, Col: cols}, Data: data}
}

// Dense rebuilds the matrix described by info.
func (info MatrixInfo) Dense() (*mat.Dense, error) {
	if info.Shape.Row <= 0 || info.Shape.Col <= 0 || len(info.Data) != info.Shape.Row*info.Shape.Col {
		return nil, errors.Errorf("matrix info: shape %dx%d does not match %d values", info.Shape.Row, info.Shape.Col, len(info.Data))
	}
	data := make([]float64, len(info.Data))
	copy(data, info.Data)
	return mat.NewDense(info.Shape.Row, info.Shape.Col, data), nil
}
