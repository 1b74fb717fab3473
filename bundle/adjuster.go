package bundle

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"panostitch/photogrammetry"
)

type matchEntry struct {
	match *photogrammetry.Match
	from  int
	to    int
}

// Adjuster refines focal, principal point and rotation of every registered camera by
// minimising the reprojection error of all registered matches.
type Adjuster struct {
	opts     Options
	registry *registry
	matches  []matchEntry
	// offsets[i] is the number of inlier pairs registered before match i.
	offsets       []int
	residualPairs int
}

// Result reports one Run.
type Result struct {
	InitialRMS float64
	FinalRMS   float64
	Iterations int
	Accepted   int
	// History is the best RMS after every iteration.
	History []float64
	State   *State
}

func New(opts Options) *Adjuster {
	return &Adjuster{opts: opts.withDefaults(), registry: newRegistry()}
}

// Add registers a match. New endpoints are appended to the camera registry; the first
// camera ever added becomes the reference camera.
func (a *Adjuster) Add(m *photogrammetry.Match) error {
	if m == nil || m.From == nil || m.To == nil {
		return errors.Wrap(photogrammetry.ErrDegenerateGeometry, "match without both cameras")
	}
	if m.From == m.To {
		return errors.Wrapf(photogrammetry.ErrDegenerateGeometry, "match connects camera %q to itself", m.From.ID)
	}
	entry := matchEntry{match: m, from: a.registry.add(m.From), to: a.registry.add(m.To)}
	a.offsets = append(a.offsets, a.residualPairs)
	a.residualPairs += len(m.Inliers)
	a.matches = append(a.matches, entry)

	a.opts.Logger.WithFields(logrus.Fields{
		"from":    m.From.ID,
		"to":      m.To.ID,
		"inliers": len(m.Inliers),
		"cameras": a.registry.len(),
	}).Debug("added match")
	return nil
}

// Contains reports whether cam is in the registry.
func (a *Adjuster) Contains(cam *photogrammetry.Camera) bool {
	_, ok := a.registry.slot(cam)
	return ok
}

// Cameras returns the registered cameras in slot order.
func (a *Adjuster) Cameras() []*photogrammetry.Camera {
	out := make([]*photogrammetry.Camera, a.registry.len())
	copy(out, a.registry.cameras)
	return out
}

func (a *Adjuster) Matches() []*photogrammetry.Match {
	out := make([]*photogrammetry.Match, len(a.matches))
	for i, entry := range a.matches {
		out[i] = entry.match
	}
	return out
}

// State reads the current values of the registered cameras.
func (a *Adjuster) State() (*State, error) {
	return FromCameras(a.registry.cameras)
}

func (a *Adjuster) checkState(state *State) error {
	if state.Len() != a.registry.len() {
		return errors.Errorf("state holds %d cameras, %d are registered", state.Len(), a.registry.len())
	}
	return nil
}

// ReprojectionError projects the `to` side of every inlier through the state's model
// homography and returns observed `from` minus projected, two rows per inlier pair.
func (a *Adjuster) ReprojectionError(state *State) (*mat.VecDense, error) {
	if err := a.checkState(state); err != nil {
		return nil, err
	}
	if a.residualPairs == 0 {
		return &mat.VecDense{}, nil
	}
	residuals := mat.NewVecDense(2*a.residualPairs, nil)
	for m, entry := range a.matches {
		g := modelHomography(state.views[entry.from], state.views[entry.to])
		for k, pair := range entry.match.Inliers {
			row := 2 * (a.offsets[m] + k)
			projected, _ := project(g, pair.To)
			d := pair.From.Sub(projected)
			residuals.SetVec(row, d.X)
			residuals.SetVec(row+1, d.Y)
		}
	}
	return residuals, nil
}

// MatchRMS is the reprojection RMS of each match under state, in registration order.
func (a *Adjuster) MatchRMS(state *State) ([]float64, error) {
	residuals, err := a.ReprojectionError(state)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a.matches))
	for m, entry := range a.matches {
		start := 2 * a.offsets[m]
		end := start + 2*len(entry.match.Inliers)
		out[m] = rms(residuals.RawVector().Data[start:end])
	}
	return out, nil
}

func rms(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(values, values) / float64(len(values)))
}

func (a *Adjuster) damping(i int) float64 {
	if i%ParamsPerCamera < paramRX {
		return a.opts.IntrinsicDamping
	}
	return a.opts.RotationDamping
}

// solveUpdate solves (J^T J + D) * delta = J^T * r where D is the class damping scaled by factor.
func (a *Adjuster) solveUpdate(eq normalEquations, residuals *mat.VecDense, factor float64) ([]float64, error) {
	n, _ := eq.jtj.Dims()
	damped := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			damped.SetSym(i, j, eq.jtj.At(i, j))
		}
		damped.SetSym(i, i, damped.At(i, i)+a.damping(i)*factor)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(damped); !ok {
		return nil, errors.Wrap(photogrammetry.ErrSingularSystem, "damped normal matrix is not positive definite")
	}
	var jtr, delta mat.VecDense
	jtr.MulVec(eq.j.T(), residuals)
	if err := chol.SolveVecTo(&delta, &jtr); err != nil {
		return nil, errors.Wrap(photogrammetry.ErrSingularSystem, err.Error())
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = delta.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, errors.Wrapf(photogrammetry.ErrSingularSystem, "update component %d is not finite", i)
		}
	}
	return out, nil
}

// Run refines the registered cameras and writes the best state back onto them.
// A step is accepted when it lowers the best RMS by more than ImprovementTolerance;
// the loop stops after MaxIterations or more than MaxStalls consecutive rejections.
func (a *Adjuster) Run() (Result, error) {
	if len(a.matches) == 0 {
		return Result{}, errors.Wrap(photogrammetry.ErrEmptyInput, "bundle adjustment needs at least one match")
	}
	if a.residualPairs == 0 {
		return Result{}, errors.Wrap(photogrammetry.ErrEmptyInput, "registered matches carry no inliers")
	}

	best, err := a.State()
	if err != nil {
		return Result{}, errors.Wrap(err, "initial state")
	}
	bestResiduals, err := a.ReprojectionError(best)
	if err != nil {
		return Result{}, err
	}
	bestRMS := rms(bestResiduals.RawVector().Data)

	log := a.opts.Logger.WithFields(logrus.Fields{
		"cameras": a.registry.len(),
		"matches": len(a.matches),
		"pairs":   a.residualPairs,
	})
	log.WithField("rms", bestRMS).Info("running bundle adjustment")

	result := Result{InitialRMS: bestRMS}
	jitter := distuv.Normal{Mu: 1, Sigma: a.opts.JitterSigma, Src: a.opts.Source}

	var eq normalEquations
	stale := true
	stalls := 0
	for iter := 0; iter < a.opts.MaxIterations; iter++ {
		if stale {
			eq = a.buildNormalEquations(best)
			stale = false
		}
		delta, err := a.solveUpdate(eq, bestResiduals, jitter.Rand())
		if err != nil {
			return result, errors.Wrapf(err, "iteration %d", iter)
		}
		result.Iterations++

		candidateRMS := math.Inf(1)
		candidate, err := best.WithUpdate(delta)
		var candidateResiduals *mat.VecDense
		switch {
		case errors.Is(err, photogrammetry.ErrSingularSystem):
			return result, errors.Wrapf(err, "iteration %d", iter)
		case err != nil:
			log.WithError(err).WithField("iteration", iter).Debug("rejected step")
		default:
			candidateResiduals, err = a.ReprojectionError(candidate)
			if err != nil {
				return result, err
			}
			candidateRMS = rms(candidateResiduals.RawVector().Data)
		}

		if candidateRMS < bestRMS-a.opts.ImprovementTolerance {
			best, bestResiduals, bestRMS = candidate, candidateResiduals, candidateRMS
			stale = true
			stalls = 0
			result.Accepted++
		} else {
			stalls++
		}
		result.History = append(result.History, bestRMS)
		log.WithFields(logrus.Fields{
			"iteration": iter,
			"candidate": candidateRMS,
			"best":      bestRMS,
			"stalls":    stalls,
		}).Debug("bundle adjustment step")

		if stalls > a.opts.MaxStalls {
			break
		}
	}

	for i, cam := range best.Cameras() {
		a.registry.cameras[i].CopyFrom(cam)
	}
	result.FinalRMS = bestRMS
	result.State = best
	log.WithFields(logrus.Fields{
		"initial":    result.InitialRMS,
		"final":      result.FinalRMS,
		"iterations": result.Iterations,
		"accepted":   result.Accepted,
	}).Info("bundle adjustment finished")
	return result, nil
}
