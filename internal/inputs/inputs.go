// Package inputs resolves a command-line path into the list of images to process.
package inputs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// DefaultExtensions are the survey photo suffixes accepted when none are configured.
var DefaultExtensions = []string{".jpg", ".JPG", ".jpeg", ".JPEG"}

var (
	ErrNotFound    = errors.New("path not found")
	ErrExtension   = errors.New("extension not allowed")
	ErrNoMatch     = errors.New("no matching files")
	ErrUnsupported = errors.New("unsupported path type")
)

// Collect returns path itself when it is an allowed file, or the allowed
// direct children of path when it is a directory. Suffix matching is exact.
func Collect(path string, allowed []string) ([]string, error) {
	if len(allowed) == 0 {
		allowed = DefaultExtensions
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}

	switch {
	case info.Mode().IsRegular():
		if !hasAllowedSuffix(path, allowed) {
			return nil, fmt.Errorf("%w: %s (allowed: %s)", ErrExtension, path, strings.Join(allowed, ", "))
		}
		return []string{path}, nil
	case info.IsDir():
		return collectDir(path, allowed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

func collectDir(dir string, allowed []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !hasAllowedSuffix(e.Name(), allowed) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s with extensions %s", ErrNoMatch, dir, strings.Join(allowed, ", "))
	}
	sort.Strings(files)
	return files, nil
}

func hasAllowedSuffix(name string, allowed []string) bool {
	ext := filepath.Ext(name)
	return ext != "" && slices.Contains(allowed, ext)
}
