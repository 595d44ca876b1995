// Package scan enumerates candidate image files under a folder.
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtensions are the image extensions accepted when none are configured.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Images walks root recursively and returns the paths of regular files whose
// extension is in exts (case-insensitive). Paths come back in walk order,
// which afero keeps lexical within each directory. Hidden directories are skipped.
func Images(fsys afero.Fs, root string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	root = filepath.Clean(root)
	paths := make([]string, 0, 128)
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		if !IsImage(path, exts) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return paths, nil
}

// IsImage checks if a file extension belongs to one of exts.
func IsImage(path string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := filepath.Ext(path)
	for _, allowed := range exts {
		if strings.EqualFold(ext, NormalizeExtension(allowed)) {
			return true
		}
	}
	return false
}

// NormalizeExtension lowercases an extension and ensures it has a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
