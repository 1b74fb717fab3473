package main

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"panostitch/config"
	"panostitch/estimator"
	"panostitch/imports"
	"panostitch/photogrammetry"
)

// App wires configuration, input files and the estimation pipeline.
type App struct {
	cfg    *config.Config
	logger logrus.FieldLogger
	ransac photogrammetry.RansacOptions
}

func NewApp(cfg *config.Config, logger logrus.FieldLogger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &App{cfg: cfg, logger: logger, ransac: cfg.RansacOptions(logger)}
}

func transferRMS(h mat.Matrix, pairs []photogrammetry.Correspondence) float64 {
	if len(pairs) == 0 {
		return 0
	}
	sum := 0.0
	for _, pair := range pairs {
		sum += photogrammetry.TransferError(h, pair.From, pair.To)
	}
	return math.Sqrt(sum / float64(len(pairs)))
}

// Homography fits a homography to one correspondence file.
func (a *App) Homography(pairsFile string) (*HomographyReport, error) {
	from, to, err := imports.ReadCorrespondences(pairsFile)
	if err != nil {
		return nil, err
	}
	h, inliers, err := photogrammetry.EstimateHomographyRansac(from, to, a.ransac)
	if err != nil {
		return nil, errors.Wrapf(err, "fitting %s", pairsFile)
	}
	a.logger.WithField("file", pairsFile).Debugf("homography\n%v", photogrammetry.FormatMatrixPrint(h))

	report := &HomographyReport{
		Points:     len(from),
		Inliers:    len(inliers),
		RMS:        transferRMS(h, inliers),
		Homography: photogrammetry.NewMatrixInfo(h),
	}
	m := photogrammetry.NewMatch(photogrammetry.NewCamera("from"), photogrammetry.NewCamera("to"), h, inliers)
	report.Focal, report.FocalUsable = m.EstimateFocal()
	return report, nil
}

// Matches reads every pair of the project and fits its homography. Cameras are
// created once per image ID and shared between matches.
func (a *App) Matches(project *imports.Project) ([]*photogrammetry.Match, []PairReport, error) {
	cameras := make(map[string]*photogrammetry.Camera)
	camera := func(id string) *photogrammetry.Camera {
		if cam, ok := cameras[id]; ok {
			return cam
		}
		cam := photogrammetry.NewCamera(id)
		cameras[id] = cam
		return cam
	}

	matches := make([]*photogrammetry.Match, 0, len(project.Pairs))
	reports := make([]PairReport, 0, len(project.Pairs))
	for _, pair := range project.Pairs {
		from, to, err := imports.ReadCorrespondences(pair.Correspondences)
		if err != nil {
			return nil, nil, err
		}
		h, inliers, err := photogrammetry.EstimateHomographyRansac(from, to, a.ransac)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "pair %s -> %s", pair.From, pair.To)
		}
		a.logger.WithFields(logrus.Fields{
			"from":    pair.From,
			"to":      pair.To,
			"points":  len(from),
			"inliers": len(inliers),
		}).Info("fitted pair")
		matches = append(matches, photogrammetry.NewMatch(camera(pair.From), camera(pair.To), h, inliers))
		reports = append(reports, PairReport{
			From:    pair.From,
			To:      pair.To,
			Points:  len(from),
			Inliers: len(inliers),
			RMS:     transferRMS(h, inliers),
		})
	}

	for _, id := range project.Images {
		if _, ok := cameras[id]; !ok {
			a.logger.WithField("image", id).Warn("image has no pair and will not be estimated")
		}
	}
	return matches, reports, nil
}

// Estimate runs the full pipeline on a project manifest.
func (a *App) Estimate(projectFile string) (*estimator.Estimate, *StitchReport, error) {
	project, err := imports.ReadProject(projectFile)
	if err != nil {
		return nil, nil, err
	}
	matches, pairs, err := a.Matches(project)
	if err != nil {
		return nil, nil, err
	}

	opts := estimator.Options{Bundle: a.cfg.BundleOptions(a.logger), Logger: a.logger}
	if a.cfg.CacheDir != "" {
		opts.Cache = estimator.NewCache(a.cfg.CacheDir)
	}
	estimate, err := estimator.Run(matches, opts)
	if err != nil {
		return nil, nil, err
	}

	report := &StitchReport{
		RunID:      estimate.RunID,
		Cached:     estimate.Cached,
		Focal:      estimate.Focal,
		InitialRMS: estimate.Result.InitialRMS,
		FinalRMS:   estimate.Result.FinalRMS,
		Iterations: estimate.Result.Iterations,
		Accepted:   estimate.Result.Accepted,
		Pairs:      pairs,
	}
	if estimate.Tree != nil {
		report.Reference = estimate.Tree.Reference.ID
	}
	for _, cam := range estimate.Cameras {
		report.Images = append(report.Images, VirtualCameraImage{Name: cam.ID, Focal: cam.Focal, Coordinates: cam.LongLat()})
	}
	return estimate, report, nil
}

// Export writes the refined cameras. Empty paths are skipped.
func (a *App) Export(estimate *estimator.Estimate, csvPath, jsonPath string) error {
	if csvPath != "" {
		if err := writeFile(csvPath, func(f *os.File) error {
			return imports.WriteCamerasCSV(f, estimate.Cameras)
		}); err != nil {
			return err
		}
	}
	if jsonPath != "" {
		reference := ""
		if estimate.Tree != nil {
			reference = estimate.Tree.Reference.ID
		}
		if err := writeFile(jsonPath, func(f *os.File) error {
			return imports.WriteCamerasJSON(f, reference, estimate.Cameras)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export")
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
