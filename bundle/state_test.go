package bundle

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"panostitch/photogrammetry"
)

func TestStateFromCameras(t *testing.T) {
	cameras := rigCameras()
	cameras[1].PPX = 3
	cameras[1].PPY = -2

	state, err := FromCameras(cameras)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Len(), test.ShouldEqual, 3)

	params := state.Params()
	test.That(t, params, test.ShouldHaveLength, 3*ParamsPerCamera)
	test.That(t, params[ParamsPerCamera+paramFocal], test.ShouldEqual, rigFocal)
	test.That(t, params[ParamsPerCamera+paramPPX], test.ShouldEqual, 3.0)
	test.That(t, params[ParamsPerCamera+paramPPY], test.ShouldEqual, -2.0)
	test.That(t, params[2*ParamsPerCamera+paramRY], test.ShouldAlmostEqual, rigRotations[2].Y, 1e-12)

	// Params hands out a copy
	params[0] = 1
	test.That(t, state.Params()[0], test.ShouldEqual, rigFocal)

	for i, cam := range state.Cameras() {
		test.That(t, cam.ID, test.ShouldEqual, cameras[i].ID)
		test.That(t, cam.Focal, test.ShouldEqual, cameras[i].Focal)
		test.That(t, relativeRotationError(photogrammetry.NewCamera("ref"), cam, cameras[i].R), test.ShouldBeLessThan, 1e-12)
	}
}

func TestStateRejectsZeroFocal(t *testing.T) {
	cameras := rigCameras()
	cameras[2].Focal = 0
	_, err := FromCameras(cameras)
	test.That(t, errors.Is(err, photogrammetry.ErrDegenerateGeometry), test.ShouldBeTrue)
}

func TestStateWithUpdateKeepsReferencePrincipalPoint(t *testing.T) {
	cameras := rigCameras()
	cameras[0].PPX = 0.25
	cameras[0].PPY = -1.5
	state, err := FromCameras(cameras)
	test.That(t, err, test.ShouldBeNil)

	delta := make([]float64, 3*ParamsPerCamera)
	for i := range delta {
		delta[i] = 0.01 * float64(i+1)
	}
	current := state
	for i := 0; i < 25; i++ {
		current, err = current.WithUpdate(delta)
		test.That(t, err, test.ShouldBeNil)
	}
	params := current.Params()
	test.That(t, params[paramPPX], test.ShouldEqual, 0.25)
	test.That(t, params[paramPPY], test.ShouldEqual, -1.5)
	test.That(t, params[paramFocal], test.ShouldAlmostEqual, rigFocal-25*0.01, 1e-9)
	test.That(t, params[ParamsPerCamera+paramPPX], test.ShouldAlmostEqual, -25*0.01*float64(ParamsPerCamera+paramPPX+1), 1e-9)

	// the receiver is untouched
	test.That(t, state.Params()[paramFocal], test.ShouldEqual, rigFocal)
}

func TestStateWithUpdateErrors(t *testing.T) {
	state, err := FromCameras(rigCameras())
	test.That(t, err, test.ShouldBeNil)

	_, err = state.WithUpdate([]float64{1, 2})
	test.That(t, err, test.ShouldNotBeNil)

	delta := make([]float64, 3*ParamsPerCamera)
	delta[ParamsPerCamera] = math.NaN()
	_, err = state.WithUpdate(delta)
	test.That(t, errors.Is(err, photogrammetry.ErrSingularSystem), test.ShouldBeTrue)
}

func TestRegistryOrder(t *testing.T) {
	reg := newRegistry()
	a, b, c := photogrammetry.NewCamera("a"), photogrammetry.NewCamera("b"), photogrammetry.NewCamera("c")
	test.That(t, reg.add(b), test.ShouldEqual, 0)
	test.That(t, reg.add(a), test.ShouldEqual, 1)
	test.That(t, reg.add(b), test.ShouldEqual, 0)
	test.That(t, reg.add(c), test.ShouldEqual, 2)
	test.That(t, reg.len(), test.ShouldEqual, 3)

	// identity, not value, decides membership
	twin := photogrammetry.NewCamera("a")
	_, ok := reg.slot(twin)
	test.That(t, ok, test.ShouldBeFalse)
	slot, ok := reg.slot(a)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, slot, test.ShouldEqual, 1)
}
