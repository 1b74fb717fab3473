package imports

import (
	"encoding/json"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"

	"panostitch/photogrammetry"
)

// CameraCSV is the flat export of a refined camera. The rotation is given as a
// rotation vector in radians.
type CameraCSV struct {
	ID        string  `csv:"id"`
	Focal     float64 `csv:"focal"`
	PPX       float64 `csv:"ppx"`
	PPY       float64 `csv:"ppy"`
	RX        float64 `csv:"rx"`
	RY        float64 `csv:"ry"`
	RZ        float64 `csv:"rz"`
	Longitude float64 `csv:"longitude"`
	Latitude  float64 `csv:"latitude"`
}

type CameraJSON struct {
	ID          string                     `json:"id"`
	Intrinsics  photogrammetry.Intrinsics  `json:"intrinsics"`
	Extrinsics  photogrammetry.Extrinsics  `json:"extrinsics"`
	Coordinates photogrammetry.Coordinates `json:"coordinates"`
}

type CamerasJSON struct {
	Reference string       `json:"reference"`
	Cameras   []CameraJSON `json:"cameras"`
}

func WriteCamerasCSV(w io.Writer, cameras []*photogrammetry.Camera) error {
	rows := make([]CameraCSV, len(cameras))
	for i, cam := range cameras {
		v := photogrammetry.AngleParameterisation(cam.Rotation())
		coords := cam.LongLat()
		rows[i] = CameraCSV{
			ID:        cam.ID,
			Focal:     cam.Focal,
			PPX:       cam.PPX,
			PPY:       cam.PPY,
			RX:        v.X,
			RY:        v.Y,
			RZ:        v.Z,
			Longitude: coords.Longitude,
			Latitude:  coords.Latitude,
		}
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "encoding cameras")
	}
	_, err = w.Write(b)
	return errors.Wrap(err, "writing cameras")
}

// WriteCamerasJSON exports K and R of every camera as row-major matrices.
func WriteCamerasJSON(w io.Writer, reference string, cameras []*photogrammetry.Camera) error {
	out := CamerasJSON{Reference: reference, Cameras: make([]CameraJSON, len(cameras))}
	for i, cam := range cameras {
		out.Cameras[i] = CameraJSON{
			ID:          cam.ID,
			Intrinsics:  cam.Intrinsics(),
			Extrinsics:  cam.Extrinsics(),
			Coordinates: cam.LongLat(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encoding cameras")
}
