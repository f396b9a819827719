// Package installer locates and reads the installer file served by the
// download endpoint.
package installer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"framehub/internal/domain"
)

// Reader returns the full installer payload.
type Reader interface {
	Read(ctx context.Context) ([]byte, error)
	Stat(ctx context.Context) (fs.FileInfo, error)
}

// Source reads the installer from a fixed path on the local filesystem.
// It holds no state besides the path, so concurrent use is safe.
type Source struct {
	path string
}

// NewSource resolves <workDir>/<publicDir>/<InstallerFileName>. An empty
// workDir means the process working directory; an empty publicDir means
// domain.DefaultPublicDir.
func NewSource(workDir, publicDir string) (*Source, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		workDir = wd
	}
	if publicDir == "" {
		publicDir = domain.DefaultPublicDir
	}
	return &Source{path: filepath.Join(workDir, publicDir, domain.InstallerFileName)}, nil
}

// Path returns the absolute or workdir-relative path that is read.
func (s *Source) Path() string { return s.path }

// Read loads the whole file into memory. Every failure is returned as-is
// (wrapped); callers do not distinguish missing files from I/O errors.
func (s *Source) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read installer %s: %w", s.path, err)
	}
	return data, nil
}

// Stat reports whether the installer is present, for readiness checks.
func (s *Source) Stat(ctx context.Context) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat installer %s: %w", s.path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("stat installer %s: is a directory", s.path)
	}
	return fi, nil
}
