// Package scanner discovers ingestible files under a root path.
package scanner

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	qerrors "github.com/quillsearch/quill/internal/errors"
	"github.com/quillsearch/quill/internal/reader"
)

// Scan returns the supported files under root in lexical order. A root that
// is itself a supported file yields a single-element result.
func Scan(root string) ([]string, error) {
	stat, err := os.Stat(root)
	if err != nil {
		return nil, qerrors.FileUnavailable(root, err)
	}
	if !stat.IsDir() {
		if reader.IsSupported(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("scan_skipped", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if reader.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, qerrors.FileUnavailable(root, walkErr)
	}
	return files, nil
}
