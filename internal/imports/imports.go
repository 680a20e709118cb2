// Package imports resolves Calyx import strings against the importing
// file's directory and the configured library roots.
package imports

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolve maps raw import path strings to absolute paths that exist on
// disk. Each import is tried against the importing file's directory first,
// then against every library root in order. Candidates that do not resolve
// to an existing file are dropped, so a missing import simply contributes
// nothing.
func Resolve(fromDir string, libraryRoots []string, raw []string) []string {
	roots := make([]string, 0, len(libraryRoots)+1)
	roots = append(roots, fromDir)
	for _, root := range libraryRoots {
		roots = append(roots, ExpandTilde(root))
	}

	var resolved []string
	for _, imp := range raw {
		for _, root := range roots {
			candidate, err := canonicalize(filepath.Join(root, imp))
			if err != nil {
				continue
			}
			resolved = append(resolved, candidate)
		}
	}
	return resolved
}

// canonicalize makes path absolute and resolves symlinks. It fails when
// the path does not exist, which is what filters dead candidates out.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// ExpandTilde rewrites a leading ~ to the user's home directory. Paths
// without the prefix come back unchanged, as does everything when no home
// directory is known.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
