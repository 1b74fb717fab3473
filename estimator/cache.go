package estimator

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"panostitch/photogrammetry"
)

type fingerprintMatch struct {
	From    string    `msgpack:"from"`
	To      string    `msgpack:"to"`
	H       []float64 `msgpack:"h"`
	Inliers []float64 `msgpack:"inliers"`
}

// Fingerprint identifies a match set by content: camera IDs, homographies and inlier
// coordinates, in input order.
func Fingerprint(matches []*photogrammetry.Match) (string, error) {
	payload := make([]fingerprintMatch, len(matches))
	for i, m := range matches {
		inliers := make([]float64, 0, 4*len(m.Inliers))
		for _, pair := range m.Inliers {
			inliers = append(inliers, pair.From.X, pair.From.Y, pair.To.X, pair.To.Y)
		}
		payload[i] = fingerprintMatch{
			From:    m.From.ID,
			To:      m.To.ID,
			H:       photogrammetry.NewMatrixInfo(m.H).Data,
			Inliers: inliers,
		}
	}
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "encoding fingerprint payload")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// CameraRecord is the persisted form of a refined camera.
type CameraRecord struct {
	ID    string                    `msgpack:"id"`
	Focal float64                   `msgpack:"focal"`
	PPX   float64                   `msgpack:"ppx"`
	PPY   float64                   `msgpack:"ppy"`
	R     photogrammetry.MatrixInfo `msgpack:"r"`
}

// Snapshot is a refined camera set stored under the fingerprint of its input.
type Snapshot struct {
	Key     string         `msgpack:"key"`
	RunID   string         `msgpack:"run_id"`
	Created time.Time      `msgpack:"created"`
	Cameras []CameraRecord `msgpack:"cameras"`
}

func NewSnapshot(key, runID string, cameras []*photogrammetry.Camera) *Snapshot {
	records := make([]CameraRecord, len(cameras))
	for i, cam := range cameras {
		records[i] = CameraRecord{
			ID:    cam.ID,
			Focal: cam.Focal,
			PPX:   cam.PPX,
			PPY:   cam.PPY,
			R:     photogrammetry.NewMatrixInfo(cam.Rotation()),
		}
	}
	return &Snapshot{Key: key, RunID: runID, Created: time.Now().UTC(), Cameras: records}
}

// Apply copies the stored values onto the cameras with matching IDs.
// Every camera must be present in the snapshot; otherwise no camera is changed.
func (s *Snapshot) Apply(cameras []*photogrammetry.Camera) error {
	byID := make(map[string]CameraRecord, len(s.Cameras))
	for _, record := range s.Cameras {
		byID[record.ID] = record
	}
	rotations := make([]*mat.Dense, len(cameras))
	for i, cam := range cameras {
		record, ok := byID[cam.ID]
		if !ok {
			return errors.Errorf("snapshot %s has no camera %q", s.Key, cam.ID)
		}
		r, err := record.R.Dense()
		if err != nil {
			return errors.Wrapf(err, "camera %q", cam.ID)
		}
		rotations[i] = r
	}
	for i, cam := range cameras {
		record := byID[cam.ID]
		cam.Focal, cam.PPX, cam.PPY = record.Focal, record.PPX, record.PPY
		cam.SetRotation(rotations[i])
	}
	return nil
}

// Cache keeps snapshots as msgpack files named cameras-<fingerprint>.msgpack in Dir.
type Cache struct {
	Dir string
}

func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.Dir, "cameras-"+key+".msgpack")
}

// Load returns the snapshot stored under key; ok is false when there is none.
func (c *Cache) Load(key string) (*Snapshot, bool, error) {
	raw, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading camera cache")
	}
	var snapshot Snapshot
	if err := msgpack.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, errors.Wrapf(err, "decoding %s", c.path(key))
	}
	if snapshot.Key != key {
		return nil, false, errors.Errorf("%s holds snapshot %s", c.path(key), snapshot.Key)
	}
	return &snapshot, true, nil
}

func (c *Cache) Store(snapshot *Snapshot) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating camera cache directory")
	}
	raw, err := msgpack.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	return errors.Wrap(os.WriteFile(c.path(snapshot.Key), raw, 0o644), "writing camera cache")
}
