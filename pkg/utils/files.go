// Package utils holds small helpers shared by the command-line tools.
package utils

import "path/filepath"

// ResolvePath turns a possibly-relative path into a cleaned absolute one and
// also returns the directory holding it.
func ResolvePath(relPath string) (fullPath, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}
