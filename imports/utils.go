package imports

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var AcceptableImagesExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// ListImages maps image IDs (file names without extension) to file names for every
// image directly inside dir. IDs are returned sorted.
func ListImages(dir string) ([]string, map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listing images in %s", dir)
	}

	files := make(map[string]string)
	for _, v := range entries {
		if v.IsDir() {
			continue
		}
		ext := filepath.Ext(v.Name())
		if !AcceptableImagesExt[strings.ToLower(ext)] {
			continue
		}
		id := strings.TrimSuffix(v.Name(), ext)
		if other, ok := files[id]; ok {
			return nil, nil, errors.Errorf("images %s and %s share the ID %q", other, v.Name(), id)
		}
		files[id] = v.Name()
	}

	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, files, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
