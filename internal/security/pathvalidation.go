// Package security guards the paths gridfill writes to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrOverwritesInput is returned when a write target resolves to the input file.
var ErrOverwritesInput = errors.New("output would overwrite the input")

// CanonicalPath returns the absolute, symlink-resolved form of path. When
// path does not exist yet, the deepest existing parent is resolved and the
// remaining components are appended, so a symlinked directory cannot hide
// the real target.
func CanonicalPath(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	checkPath := absPath
	for {
		parentDir := filepath.Dir(checkPath)
		if parentDir == checkPath {
			// Reached root without finding an existing directory
			return absPath, nil
		}

		if resolved, err := filepath.EvalSymlinks(parentDir); err == nil {
			relToParent, _ := filepath.Rel(parentDir, absPath)
			return filepath.Join(resolved, relToParent), nil
		}

		checkPath = parentDir
	}
}

// ValidateOutputPath rejects an output path that resolves to the same file
// as input.
func ValidateOutputPath(input, output string) error {
	canonicalInput, err := CanonicalPath(input)
	if err != nil {
		return err
	}
	canonicalOutput, err := CanonicalPath(output)
	if err != nil {
		return err
	}
	if canonicalInput == canonicalOutput {
		return fmt.Errorf("%w: %s", ErrOverwritesInput, output)
	}
	return nil
}
