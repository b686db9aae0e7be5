package batch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lectern/internal/logging"
)

// mediaExtensions is the fixed set of source types the scanner accepts.
var mediaExtensions = map[string]struct{}{
	".mp3":  {},
	".mp4":  {},
	".m4a":  {},
	".wav":  {},
	".aac":  {},
	".flac": {},
	".ogg":  {},
	".wma":  {},
	".mov":  {},
	".mkv":  {},
	".avi":  {},
	".webm": {},
}

// IsMedia reports whether the file name carries a recognized extension.
func IsMedia(name string) bool {
	_, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan collects candidate media files under root in deterministic order.
// The walk is recursive unless noRecursive is set; unreadable subtrees are
// logged and skipped. A positive limit caps the result after sorting.
func Scan(root string, noRecursive bool, limit int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve input folder: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input folder %s is not a directory", absRoot)
	}

	var files []string
	if noRecursive {
		entries, err := os.ReadDir(absRoot)
		if err != nil {
			return nil, fmt.Errorf("read input folder: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsMedia(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(absRoot, entry.Name()))
		}
	} else {
		err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				logger.Warn("skipping unreadable path",
					logging.String("path", path),
					logging.Error(walkErr))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsMedia(d.Name()) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk input folder: %w", err)
		}
	}

	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
