package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calyxir/calyx-lsp/internal/imports"
)

// LibraryFile is one Calyx source discovered under a library root
type LibraryFile struct {
	Root string `json:"root"`
	Path string `json:"path"`
}

// LibraryFiles walks every configured library root and returns the Calyx
// sources found beneath them, sorted by path. Roots that do not exist are
// silently skipped, matching how import resolution treats them.
func (c *Config) LibraryFiles() []LibraryFile {
	seen := make(map[string]bool)
	var files []LibraryFile

	for _, root := range c.LibraryPaths {
		root = imports.ExpandTilde(root)
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil // Skip errors, continue walking
			}
			if !isCalyxFile(path) {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, LibraryFile{Root: root, Path: path})
			}
			return nil
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// isCalyxFile reports whether a path looks like a Calyx source file
func isCalyxFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".futil"
}
