// Package security guards file paths derived from user supplied properties.
package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrInvalidPath   = errors.New("invalid file path")
)

// ConfinedPath joins name onto baseDir and fails if the result would leave
// baseDir, e.g. a cluster name of "../other".
func ConfinedPath(baseDir, name string) (string, error) {
	if strings.TrimSpace(baseDir) == "" || strings.TrimSpace(name) == "" {
		return "", ErrInvalidPath
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return "", ErrPathTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(absBase, name)
	rel, err := filepath.Rel(absBase, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == "." {
		return "", ErrPathTraversal
	}
	return path, nil
}
