package main

import (
	"panostitch/photogrammetry"
)

// HomographyReport describes one RANSAC fit between two point sets.
type HomographyReport struct {
	Points      int                       `json:"points"`
	Inliers     int                       `json:"inliers"`
	RMS         float64                   `json:"rms"`
	Homography  photogrammetry.MatrixInfo `json:"homography"`
	Focal       float64                   `json:"focal_estimate,omitempty"`
	FocalUsable bool                      `json:"focal_usable"`
}

type PairReport struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Points  int     `json:"points"`
	Inliers int     `json:"inliers"`
	RMS     float64 `json:"rms"`
}

type VirtualCameraImage struct {
	Name        string                     `json:"name"`
	Focal       float64                    `json:"focal"`
	Coordinates photogrammetry.Coordinates `json:"coordinates"`
}

// StitchReport summarises an estimate run.
type StitchReport struct {
	RunID      string               `json:"run_id"`
	Reference  string               `json:"reference,omitempty"`
	Cached     bool                 `json:"cached"`
	Focal      float64              `json:"focal_seed,omitempty"`
	InitialRMS float64              `json:"initial_rms"`
	FinalRMS   float64              `json:"final_rms"`
	Iterations int                  `json:"iterations"`
	Accepted   int                  `json:"accepted"`
	Pairs      []PairReport         `json:"pairs"`
	Images     []VirtualCameraImage `json:"images"`
}
