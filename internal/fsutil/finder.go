// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindByExtension searches the given roots, in order, for files ending with
// the specified extension. Roots that do not exist are skipped. When the same
// file name appears under more than one root, the first root wins; this lets
// a debug directory shadow-extend a primary template directory without
// duplicating entries.
func FindByExtension(extension string, roots ...string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	seen := make(map[string]bool)
	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		var inRoot []string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), extension) {
				return nil
			}
			if seen[d.Name()] {
				return nil
			}
			seen[d.Name()] = true
			inRoot = append(inRoot, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(inRoot)
		files = append(files, inRoot...)
	}

	return files, nil
}
