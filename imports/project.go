package imports

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Pair names a correspondence file between two images of the project.
type Pair struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Correspondences string `json:"correspondences"`
}

// Project is the JSON manifest of a stitching run. Relative paths are resolved
// against the manifest directory when it is read.
type Project struct {
	// Images lists the image IDs. When empty, ImageDir is scanned instead.
	Images   []string `json:"images"`
	ImageDir string   `json:"image_dir"`
	Pairs    []Pair   `json:"pairs"`
}

func ReadProject(projectFile string) (*Project, error) {
	byteValue, err := os.ReadFile(projectFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading project")
	}
	var project Project
	if err := json.Unmarshal(byteValue, &project); err != nil {
		return nil, errors.Wrapf(err, "decoding project %s", projectFile)
	}

	projectDir, err := filepath.Abs(filepath.Dir(projectFile))
	if err != nil {
		return nil, errors.Wrap(err, "resolving project directory")
	}
	if project.ImageDir != "" {
		project.ImageDir = resolve(projectDir, project.ImageDir)
	}
	if len(project.Images) == 0 && project.ImageDir != "" {
		if project.Images, _, err = ListImages(project.ImageDir); err != nil {
			return nil, err
		}
	}
	if len(project.Pairs) == 0 {
		return nil, errors.Errorf("project %s has no pairs", projectFile)
	}

	known := make(map[string]bool, len(project.Images))
	for _, id := range project.Images {
		known[id] = true
	}
	for i, pair := range project.Pairs {
		if pair.From == "" || pair.To == "" || pair.Correspondences == "" {
			return nil, errors.Errorf("pair %d is incomplete", i)
		}
		if len(known) > 0 && (!known[pair.From] || !known[pair.To]) {
			return nil, errors.Errorf("pair %d references an unknown image (%s, %s)", i, pair.From, pair.To)
		}
		path := resolve(projectDir, pair.Correspondences)
		ok, err := exists(path)
		if err != nil {
			return nil, errors.Wrapf(err, "pair %d", i)
		}
		if !ok {
			return nil, errors.Errorf("pair %d: %s does not exist", i, path)
		}
		project.Pairs[i].Correspondences = path
	}
	return &project, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
