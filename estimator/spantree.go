package estimator

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"

	"panostitch/bundle"
	"panostitch/photogrammetry"
)

// SpanTree is the registration order over a match graph.
type SpanTree struct {
	// Reference is the source camera of the best match; it defines the global frame.
	Reference *photogrammetry.Camera
	// Order holds the tree edges, each oriented so its From camera is posed before it.
	Order []*photogrammetry.Match
	// Remaining holds the other matches, best first.
	Remaining []*photogrammetry.Match
}

// RankMatches sorts matches by descending inlier count. Equal counts keep their input order.
func RankMatches(matches []*photogrammetry.Match) []*photogrammetry.Match {
	ranked := slices.Clone(matches)
	slices.SortStableFunc(ranked, func(a, b *photogrammetry.Match) int {
		return len(b.Inliers) - len(a.Inliers)
	})
	return ranked
}

// BuildSpanTree starts from the best match and greedily attaches the best ranked match
// touching the connected set. A match reaching the set only through its destination is
// reversed. A graph that cannot be spanned yields ErrDisconnectedGraph.
func BuildSpanTree(matches []*photogrammetry.Match, logger logrus.FieldLogger) (*SpanTree, error) {
	if len(matches) == 0 {
		return nil, errors.Wrap(photogrammetry.ErrEmptyInput, "no matches to span")
	}
	ranked := RankMatches(matches)
	seed := ranked[0]
	total := len(Cameras(matches))

	connected := map[*photogrammetry.Camera]bool{seed.From: true, seed.To: true}
	tree := &SpanTree{Reference: seed.From, Order: []*photogrammetry.Match{seed}}
	remaining := ranked[1:]

	logger.WithFields(logrus.Fields{
		"from":    seed.From.ID,
		"to":      seed.To.ID,
		"inliers": len(seed.Inliers),
	}).Info("seed edge")

	for len(connected) < total {
		grown := false
		for i, m := range remaining {
			fromIn, toIn := connected[m.From], connected[m.To]
			if fromIn == toIn {
				continue
			}
			edge := m
			if toIn {
				reversed, err := m.Reverse()
				if err != nil {
					return nil, err
				}
				edge = reversed
			}
			remaining = slices.Delete(remaining, i, i+1)
			connected[edge.To] = true
			tree.Order = append(tree.Order, edge)
			grown = true

			logger.WithFields(logrus.Fields{
				"from":     edge.From.ID,
				"to":       edge.To.ID,
				"reversed": toIn,
			}).Debug("span tree edge")
			break
		}
		if !grown {
			return nil, errors.Wrapf(photogrammetry.ErrDisconnectedGraph, "reached %d of %d cameras from %q", len(connected), total, seed.From.ID)
		}
	}
	tree.Remaining = remaining
	return tree, nil
}

// poseDestination derives R_to = (R_from^T * K_from^-1 * G * K_to)^T where G = H^-1 maps the
// destination plane onto the source plane, and resets the destination principal point.
func poseDestination(edge *photogrammetry.Match) error {
	var g mat.Dense
	if err := g.Inverse(edge.H); err != nil {
		return errors.Wrapf(photogrammetry.ErrDegenerateGeometry, "match %s -> %s: %v", edge.From.ID, edge.To.ID, err)
	}
	kInv, err := edge.From.KInv()
	if err != nil {
		return err
	}

	to := edge.To
	to.PPX, to.PPY = 0, 0
	var rt mat.Dense
	rt.Product(edge.From.Rotation().T(), kInv, &g, to.K())
	to.SetRotation(photogrammetry.NearestRotation(rt.T()))
	return nil
}

// Register poses the cameras along the tree and adds its edges to adj. After each tree edge,
// every remaining match whose endpoints are both registered is added as well.
func (t *SpanTree) Register(adj *bundle.Adjuster) error {
	ref := t.Reference
	ref.SetRotation(mat.NewDiagDense(3, []float64{1, 1, 1}))
	ref.PPX, ref.PPY = 0, 0

	pending := slices.Clone(t.Remaining)
	for _, edge := range t.Order {
		if err := edge.NormalizeH(); err != nil {
			return err
		}
		if err := poseDestination(edge); err != nil {
			return err
		}
		if err := adj.Add(edge); err != nil {
			return err
		}

		kept := pending[:0]
		for _, other := range pending {
			if !adj.Contains(other.From) || !adj.Contains(other.To) {
				kept = append(kept, other)
				continue
			}
			if err := adj.Add(other); err != nil {
				return err
			}
		}
		pending = kept
	}
	return nil
}
