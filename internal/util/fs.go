package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins only the base name of name onto root, dropping any
// directory components a client may have sent.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}

// FileExt returns the lower-cased extension of path, including the dot.
func FileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
