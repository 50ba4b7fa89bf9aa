package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemArchive implements ReportArchive on the local filesystem
type FileSystemArchive struct {
	rootDir string
}

// NewFileSystemArchive creates a new filesystem-based archive
func NewFileSystemArchive(rootDir string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemArchive{rootDir: rootDir}, nil
}

func (a *FileSystemArchive) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.rootDir, clean), nil
}

// PutReport implements ReportArchive.PutReport. The snapshot is written to a
// temporary file and renamed into place so readers never see partial files.
func (a *FileSystemArchive) PutReport(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := a.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// GetReport implements ReportArchive.GetReport
func (a *FileSystemArchive) GetReport(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := a.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	return f, nil
}

// Exists implements ReportArchive.Exists
func (a *FileSystemArchive) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := a.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat report: %w", err)
	}
	return true, nil
}

// HealthCheck implements ReportArchive.HealthCheck
func (a *FileSystemArchive) HealthCheck(_ context.Context) error {
	info, err := os.Stat(a.rootDir)
	if err != nil {
		return fmt.Errorf("archive root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root %s is not a directory", a.rootDir)
	}
	return nil
}
