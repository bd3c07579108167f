// Package fsx is the typed filesystem facade (spec §6 C3). It models
// "an existing, validated file" and "a raw path" as two distinct Go
// types — ExistingFile vs. plain string — which is the idiomatic
// replacement for the source's nominal branding via hidden fields
// (spec §9 design note): the type system, not a runtime tag, prevents
// an unvalidated path from being used where a checked file is required.
package fsx

import (
	"io"
	"os"
	"path/filepath"
)

// ExistingFile is a path already confirmed to exist at construction
// time. Obtained only via Filesystem.OpenExisting.
type ExistingFile struct {
	path string
}

// Path returns the underlying filesystem path.
func (f ExistingFile) Path() string { return f.path }

// Filesystem groups the typed operations spec §6 names.
type Filesystem struct{}

// New returns the production Filesystem.
func New() Filesystem { return Filesystem{} }

// Exists reports whether path exists (file or directory).
func (Filesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenExisting validates that path exists and returns the branded type.
func (Filesystem) OpenExisting(path string) (ExistingFile, error) {
	if _, err := os.Stat(path); err != nil {
		return ExistingFile{}, err
	}
	return ExistingFile{path: path}, nil
}

// CreateFile creates an empty file at path, including parent directories.
func (Filesystem) CreateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// CreateDirectory creates path and any missing parents.
func (Filesystem) CreateDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// CreateTempDir creates a disposable directory under parent, used as a
// transaction work-tree (spec §4.4).
func (Filesystem) CreateTempDir(parent, pattern string) (string, error) {
	return os.MkdirTemp(parent, pattern)
}

// DeleteFile removes path, tolerating a missing file.
func (Filesystem) DeleteFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteDirectory removes path and its contents recursively, tolerating
// a missing directory.
func (Filesystem) DeleteDirectory(path string) error {
	return os.RemoveAll(path)
}

// ReadText reads an existing file's full contents as UTF-8 text.
func (Filesystem) ReadText(f ExistingFile) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText overwrites path with text, creating parent directories as
// needed.
func (Filesystem) WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// CopyFile copies an existing file to destPath.
func (Filesystem) CopyFile(f ExistingFile, destPath string) error {
	src, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
