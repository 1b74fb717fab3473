package imports

import (
	"os"

	"github.com/golang/geo/r2"
	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"

	"panostitch/photogrammetry"
)

// CorrespondenceRow is one line of a correspondence CSV file.
type CorrespondenceRow struct {
	FromX float64 `csv:"from_x"`
	FromY float64 `csv:"from_y"`
	ToX   float64 `csv:"to_x"`
	ToY   float64 `csv:"to_y"`
}

// ReadCorrespondences reads a CSV file with a from_x,from_y,to_x,to_y header and
// returns the two point sequences aligned by row.
func ReadCorrespondences(file string) ([]r2.Point, []r2.Point, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading correspondences")
	}
	var rows []CorrespondenceRow
	if err := csvutil.Unmarshal(raw, &rows); err != nil {
		return nil, nil, errors.Wrapf(err, "decoding %s", file)
	}

	from := make([]r2.Point, len(rows))
	to := make([]r2.Point, len(rows))
	for i, row := range rows {
		from[i] = r2.Point{X: row.FromX, Y: row.FromY}
		to[i] = r2.Point{X: row.ToX, Y: row.ToY}
	}
	return from, to, nil
}

// WriteCorrespondences writes pairs in the format ReadCorrespondences accepts.
func WriteCorrespondences(file string, pairs []photogrammetry.Correspondence) error {
	rows := make([]CorrespondenceRow, len(pairs))
	for i, pair := range pairs {
		rows[i] = CorrespondenceRow{FromX: pair.From.X, FromY: pair.From.Y, ToX: pair.To.X, ToY: pair.To.Y}
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "encoding correspondences")
	}
	return errors.Wrap(os.WriteFile(file, b, 0o644), "writing correspondences")
}
