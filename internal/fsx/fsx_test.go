package fsx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenExisting_MissingFileFails(t *testing.T) {
	fs := New()
	if _, err := fs.OpenExisting(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestWriteTextThenReadText_RoundTrips(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "nested", "file.txt")

	if err := fs.WriteText(path, "hello"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	f, err := fs.OpenExisting(path)
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	got, err := fs.ReadText(f)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != "hello" {
		t.Errorf("ReadText = %q, want %q", got, "hello")
	}
}

func TestCopyFile_DuplicatesContent(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "nested", "dest.txt")

	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f, err := fs.OpenExisting(src)
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	if err := fs.CopyFile(f, dest); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("copied content = %q, want %q", data, "payload")
	}
}

func TestDeleteFile_MissingFileIsNotAnError(t *testing.T) {
	fs := New()
	if err := fs.DeleteFile(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("DeleteFile on missing path = %v, want nil", err)
	}
}

func TestExists(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if fs.Exists(path) {
		t.Fatal("expected Exists to be false before creation")
	}
	if err := fs.CreateFile(path); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if !fs.Exists(path) {
		t.Error("expected Exists to be true after creation")
	}
}
