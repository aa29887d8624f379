package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileSystem(t *testing.T) (*LocalFileSystem, string) {
	t.Helper()

	parent := t.TempDir()
	root := filepath.Join(parent, "www")
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<html/>\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs, err := NewLocalFileSystem(root)
	if err != nil {
		t.Fatalf("NewLocalFileSystem failed: %v", err)
	}
	t.Cleanup(func() { fs.Close() })

	return fs, parent
}

func TestResolve(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	testCases := []struct {
		target   string
		expected string
	}{
		{"/index.html", "index.html"},
		{"index.html", "index.html"},
		{"/docs/a.txt", "docs/a.txt"},
		{"//docs//./a.txt", "docs/a.txt"},
		{"/docs/../index.html", "index.html"},
		{"/index.html?v=1", "index.html"},
		{"/index.html#top", "index.html"},
		{"/", "."},
		{"/docs/", "docs"},
	}

	for _, tc := range testCases {
		name, err := fs.Resolve(tc.target)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", tc.target, err)
			continue
		}
		if name != tc.expected {
			t.Errorf("Resolve(%q) = %q, expected %q", tc.target, name, tc.expected)
		}
	}
}

func TestResolve_Rejects(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	testCases := []struct {
		target string
		err    error
	}{
		{"/../secret.txt", ErrOutsideRoot},
		{"/docs/../../secret.txt", ErrOutsideRoot},
		{"..", ErrOutsideRoot},
		{"", ErrInvalidPath},
		{"?only=query", ErrInvalidPath},
		{"/index\x00.html", ErrInvalidPath},
	}

	for _, tc := range testCases {
		if _, err := fs.Resolve(tc.target); !errors.Is(err, tc.err) {
			t.Errorf("Resolve(%q): expected %v, got %v", tc.target, tc.err, err)
		}
	}
}

func TestReadFile(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	data, err := fs.ReadFile("index.html")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "<html/>\n" {
		t.Errorf("Expected %q, got %q", "<html/>\n", data)
	}

	info, err := fs.FileMetaData("index.html")
	if err != nil {
		t.Fatalf("FileMetaData failed: %v", err)
	}
	if info.Size() != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), info.Size())
	}
}

func TestReadFile_Errors(t *testing.T) {
	fs, parent := newTestFileSystem(t)

	if _, err := fs.ReadFile("missing.html"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file: expected ErrFileNotFound, got %v", err)
	}
	if _, err := fs.ReadFile("index.html/child"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("file as directory: expected ErrFileNotFound, got %v", err)
	}
	if _, err := fs.ReadFile("docs"); !errors.Is(err, ErrIsDirectory) {
		t.Errorf("directory: expected ErrIsDirectory, got %v", err)
	}
	if _, err := fs.ReadFile("."); !errors.Is(err, ErrIsDirectory) {
		t.Errorf("root: expected ErrIsDirectory, got %v", err)
	}
	if _, err := fs.ReadFile("../secret.txt"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("escape: expected ErrOutsideRoot, got %v", err)
	}

	link := filepath.Join(fs.Dir(), "link.txt")
	if err := os.Symlink(filepath.Join(parent, "secret.txt"), link); err == nil {
		if _, err := fs.ReadFile("link.txt"); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("symlink escape: expected ErrOutsideRoot, got %v", err)
		}
	}
}

func TestNewLocalFileSystem_Errors(t *testing.T) {
	if _, err := NewLocalFileSystem(""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := NewLocalFileSystem(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing document root")
	}
}
