package photogrammetry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Camera is one view of a rotating (shared centre) camera rig.
// R maps reference-frame directions into the camera frame: x ~ K * R * X.
type Camera struct {
	ID    string
	Focal float64
	PPX   float64
	PPY   float64
	R     *mat.Dense
}

// NewCamera returns a camera with unit focal, zero principal point and identity rotation.
func NewCamera(id string) *Camera {
	return &Camera{ID: id, Focal: 1, R: eye3()}
}

// K is the intrinsic matrix [[f 0 ppx] [0 f ppy] [0 0 1]].
func (c *Camera) K() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		c.Focal, 0, c.PPX,
		0, c.Focal, c.PPY,
		0, 0, 1,
	})
}

// KInv is the closed-form inverse of K.
func (c *Camera) KInv() (*mat.Dense, error) {
	if c.Focal == 0 || math.IsNaN(c.Focal) || math.IsInf(c.Focal, 0) {
		return nil, errors.Wrapf(ErrDegenerateGeometry, "camera %q has focal %v", c.ID, c.Focal)
	}
	inv := 1 / c.Focal
	return mat.NewDense(3, 3, []float64{
		inv, 0, -c.PPX * inv,
		0, inv, -c.PPY * inv,
		0, 0, 1,
	}), nil
}

// Rotation returns R, or the identity for a camera that has not been posed.
func (c *Camera) Rotation() *mat.Dense {
	if c.R == nil {
		return eye3()
	}
	return c.R
}

// SetRotation stores a copy of r.
func (c *Camera) SetRotation(r mat.Matrix) {
	c.R = mat.DenseCopyOf(r)
}

// Clone returns an independent copy of the camera.
func (c *Camera) Clone() *Camera {
	clone := *c
	clone.R = mat.DenseCopyOf(c.Rotation())
	return &clone
}

// CopyFrom overwrites focal, principal point and rotation with other's values, keeping the ID.
func (c *Camera) CopyFrom(other *Camera) {
	c.Focal = other.Focal
	c.PPX = other.PPX
	c.PPY = other.PPY
	c.SetRotation(other.Rotation())
}

// ViewDirection is the optical axis expressed in the reference frame (R^T * e_z).
func (c *Camera) ViewDirection() r3.Vector {
	r := c.Rotation()
	return r3.Vector{X: r.At(2, 0), Y: r.At(2, 1), Z: r.At(2, 2)}
}

// LongLat places the optical axis on the viewing sphere, in degrees.
func (c *Camera) LongLat() Coordinates {
	long, lat := GetLongLat(c.ViewDirection())
	return Coordinates{Longitude: Rad2Degrees(long), Latitude: Rad2Degrees(lat)}
}

func (c *Camera) Intrinsics() Intrinsics {
	return Intrinsics{CameraMatrix: NewMatrixInfo(c.K())}
}

func (c *Camera) Extrinsics() Extrinsics {
	return Extrinsics{Matrix: NewMatrixInfo(c.Rotation())}
}
