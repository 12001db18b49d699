// Package trialio locates and decodes the per-trial acquisition files of
// a widefield imaging session: raw binary frame stacks, analog sidecar
// traces, the session metadata file, and preprocessed NumPy stacks.
package trialio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"wfield/internal/models"
)

var (
	// ErrMissingMetadata indicates the session metadata file is absent
	// or does not determine the image dimensions. The run aborts before
	// any trial is processed.
	ErrMissingMetadata = errors.New("missing session metadata")

	// ErrUnsupportedChannels indicates the per-frame illumination
	// channel could not be determined or more than two channels are
	// configured. This is fatal and aborts the run.
	ErrUnsupportedChannels = errors.New("unsupported channel configuration")

	// ErrNoTrials indicates no trial files matched the configured base
	// name and extension.
	ErrNoTrials = errors.New("no trial files found")
)

// analogSuffix marks the per-trial analog sidecar files so they are not
// mistaken for frame data during enumeration.
const analogSuffix = "_analog.dat"

// MetaPath returns the path of the session metadata sidecar for the
// given folder and base name.
func MetaPath(folder, baseName string) string {
	return filepath.Join(folder, baseName+"_meta.yaml")
}

// ReadSessionMeta reads and validates the session metadata sidecar.
func ReadSessionMeta(path string) (*models.SessionMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingMetadata, err)
	}

	meta := &models.SessionMeta{}
	if err := yaml.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrMissingMetadata, path, err)
	}

	if meta.Height <= 0 || meta.Width <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %dx%d", ErrMissingMetadata, meta.Width, meta.Height)
	}
	if meta.BitDepth != 8 && meta.BitDepth != 16 {
		return nil, fmt.Errorf("%w: bit depth %d (must be 8 or 16)", ErrMissingMetadata, meta.BitDepth)
	}

	return meta, nil
}

// Enumerate locates the per-trial data files in the session folder by
// name pattern and returns them in acquisition order. A trial file is
// any <baseName>*<ext> file that is not a sidecar; its numeric suffix
// determines the order. Each trial's analog sidecar path is filled in
// when the sidecar exists.
func Enumerate(folder, baseName, ext string) ([]models.TrialFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading data folder: %w", err)
	}

	var trials []models.TrialFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, baseName) {
			continue
		}
		if strings.HasSuffix(name, analogSuffix) || name == filepath.Base(MetaPath(folder, baseName)) {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}

		trials = append(trials, models.TrialFile{
			Path:   filepath.Join(folder, name),
			Number: extractNumber(name),
		})
	}

	if len(trials) == 0 {
		return nil, fmt.Errorf("%w: %s*%s in %s", ErrNoTrials, baseName, ext, folder)
	}

	// Sort by the numeric part of the filename to keep trials in
	// acquisition order regardless of directory listing order
	sort.Slice(trials, func(i, j int) bool {
		return trials[i].Number < trials[j].Number
	})

	for i := range trials {
		trials[i].Index = i

		analog := strings.TrimSuffix(trials[i].Path, filepath.Ext(trials[i].Path)) + analogSuffix
		if _, err := os.Stat(analog); err == nil {
			trials[i].AnalogPath = analog
		}
	}

	return trials, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
