package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// WorkDir expands dotPath (which may start with ~), appends path and makes
// sure the resulting directory exists.
func WorkDir(dotPath string, path ...string) (string, error) {
	parts := append([]string{dotPath}, path...)
	workDir, err := homedir.Expand(filepath.Join(parts...))
	if err != nil {
		return "", fmt.Errorf("expand work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return workDir, nil
}
