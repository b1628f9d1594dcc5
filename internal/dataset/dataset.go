package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoTrainingFolder is returned when no directory matching the training prefix exists.
var ErrNoTrainingFolder = errors.New("training folder not found")

// errStopWalk ends a WalkDir early once a match is found.
var errStopWalk = errors.New("stop walk")

// FindTrainingFolder walks root in lexical order and returns the first
// directory whose name starts with prefix, together with the face label
// encoded in the rest of its name. A folder named exactly prefix gets
// defaultLabel.
func FindTrainingFolder(root, prefix, defaultLabel string) (folder, label string, err error) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), prefix) {
			folder = path
			return errStopWalk
		}
		return nil
	})

	if folder == "" {
		if walkErr != nil && !errors.Is(walkErr, errStopWalk) && !errors.Is(walkErr, fs.ErrNotExist) {
			return "", "", fmt.Errorf("scan %s for training folders: %w", root, walkErr)
		}
		return "", "", fmt.Errorf("%w: for training the face model recognition a folder starting with %s must exist in %s",
			ErrNoTrainingFolder, prefix, root)
	}

	label = strings.TrimSpace(strings.TrimPrefix(filepath.Base(folder), prefix))
	if label == "" {
		label = defaultLabel
	}
	return folder, label, nil
}

// ListImages returns the .jpg files directly inside folder, sorted by name.
func ListImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".jpg") {
			files = append(files, filepath.Join(folder, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
