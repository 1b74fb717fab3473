package bundle

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"panostitch/photogrammetry"
)

// ParamsPerCamera is the width of one camera block: focal, ppx, ppy, rx, ry, rz.
const ParamsPerCamera = 6

const (
	paramFocal = iota
	paramPPX
	paramPPY
	paramRX
	paramRY
	paramRZ
)

// cameraView caches the matrices of one camera block.
type cameraView struct {
	rotvec r3.Vector
	k      *mat.Dense
	kInv   *mat.Dense
	r      *mat.Dense
}

// State is an immutable flat parameter vector over a camera registry.
type State struct {
	ids    []string
	params []float64
	views  []cameraView
}

func newState(ids []string, params []float64) (*State, error) {
	s := &State{ids: ids, params: params, views: make([]cameraView, len(ids))}
	for i := range ids {
		cam := s.camera(i)
		kInv, err := cam.KInv()
		if err != nil {
			return nil, err
		}
		s.views[i] = cameraView{rotvec: s.rotvec(i), k: cam.K(), kInv: kInv, r: cam.R}
	}
	return s, nil
}

// FromCameras reads focal, principal point and rotation vector of every camera in order.
func FromCameras(cameras []*photogrammetry.Camera) (*State, error) {
	ids := make([]string, len(cameras))
	params := make([]float64, ParamsPerCamera*len(cameras))
	for i, cam := range cameras {
		ids[i] = cam.ID
		block := params[i*ParamsPerCamera : (i+1)*ParamsPerCamera]
		v := photogrammetry.AngleParameterisation(cam.Rotation())
		block[paramFocal] = cam.Focal
		block[paramPPX] = cam.PPX
		block[paramPPY] = cam.PPY
		block[paramRX], block[paramRY], block[paramRZ] = v.X, v.Y, v.Z
	}
	return newState(ids, params)
}

// Len is the number of cameras.
func (s *State) Len() int {
	return len(s.ids)
}

// Params returns a copy of the parameter vector.
func (s *State) Params() []float64 {
	out := make([]float64, len(s.params))
	copy(out, s.params)
	return out
}

func (s *State) rotvec(i int) r3.Vector {
	block := s.params[i*ParamsPerCamera:]
	return r3.Vector{X: block[paramRX], Y: block[paramRY], Z: block[paramRZ]}
}

func (s *State) camera(i int) *photogrammetry.Camera {
	block := s.params[i*ParamsPerCamera:]
	return &photogrammetry.Camera{
		ID:    s.ids[i],
		Focal: block[paramFocal],
		PPX:   block[paramPPX],
		PPY:   block[paramPPY],
		R:     photogrammetry.RotvecToMatrix(s.rotvec(i)),
	}
}

// Cameras rebuilds camera snapshots from the parameter vector.
func (s *State) Cameras() []*photogrammetry.Camera {
	cameras := make([]*photogrammetry.Camera, len(s.ids))
	for i := range s.ids {
		cameras[i] = s.camera(i)
	}
	return cameras
}

// WithUpdate returns params - delta. The reference camera's principal point
// (slot 0, ppx and ppy) is never changed.
func (s *State) WithUpdate(delta []float64) (*State, error) {
	if len(delta) != len(s.params) {
		return nil, errors.Errorf("update has %d values, state has %d", len(delta), len(s.params))
	}
	params := make([]float64, len(s.params))
	for i, p := range s.params {
		if i == paramPPX || i == paramPPY {
			params[i] = p
			continue
		}
		params[i] = p - delta[i]
		if math.IsNaN(params[i]) || math.IsInf(params[i], 0) {
			return nil, errors.Wrapf(photogrammetry.ErrSingularSystem, "parameter %d is not finite", i)
		}
	}
	return newState(s.ids, params)
}
