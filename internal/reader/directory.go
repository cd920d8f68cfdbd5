package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".heic": true, ".heif": true,
}

// CollectFiles expands a path into the list of importable files. A plain
// file is returned as-is; a directory is scanned non-recursively for
// files matching the source kind (pdf or image extensions). The result
// is sorted so batch order is deterministic.
func CollectFiles(path string, wantPDF bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if wantPDF && ext == ".pdf" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
		if !wantPDF && imageExtensions[ext] {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
