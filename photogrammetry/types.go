package photogrammetry

import "github.com/golang/geo/r2"

type Shape struct {
	Row int `json:"row" msgpack:"row"`
	Col int `json:"col" msgpack:"col"`
}

type MatrixInfo struct {
	Shape Shape     `json:"shape" msgpack:"shape"`
	Data  []float64 `json:"data" msgpack:"data"`
}

type Extrinsics struct {
	Matrix MatrixInfo `json:"matrix" msgpack:"matrix"`
}

type Intrinsics struct {
	CameraMatrix MatrixInfo `json:"camera_matrix" msgpack:"camera_matrix"`
}

// Coordinates locates a camera's optical axis on the viewing sphere, in degrees.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Correspondence is one matched pixel pair: From lies in the source image, To in the destination.
type Correspondence struct {
	From r2.Point
	To   r2.Point
}
