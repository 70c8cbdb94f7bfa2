package manifest

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultSuffix matches Pipfile and Pipfile-like names after lowercasing.
const DefaultSuffix = "pipfile"

// Matches reports whether name ends with suffix, ignoring ASCII case only.
// Non-ASCII letters must match exactly.
func Matches(name, suffix string) bool {
	return strings.HasSuffix(asciiLower(name), asciiLower(suffix))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// displayPath renders path the way it was reached from root as given: the
// root keeps any "./" prefix or trailing separator that Join would clean away.
func displayPath(root, path string) string {
	if path == root {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return root + rel
	}
	return root + string(filepath.Separator) + rel
}

// Locate walks root depth-first in lexical order and calls fn with the path
// of every entry whose name matches suffix, directories included. Paths are
// prefixed with root exactly as passed. Entries that cannot be read are
// skipped; the walk only stops early when fn returns an error. Symlinks are
// not followed.
func Locate(root, suffix string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable root or directory: drop it and keep walking.
			return nil
		}
		if !Matches(d.Name(), suffix) {
			return nil
		}
		return fn(displayPath(root, path))
	})
}

// Find collects every path Locate yields.
func Find(root, suffix string) ([]string, error) {
	var paths []string
	err := Locate(root, suffix, func(path string) error {
		paths = append(paths, path)
		return nil
	})
	return paths, err
}
