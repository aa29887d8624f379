package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	ErrFileNotFound   = errors.New("filesystem: file not found")
	ErrIsDirectory    = errors.New("filesystem: path is a directory")
	ErrNotRegularFile = errors.New("filesystem: not a regular file")
	ErrOutsideRoot    = errors.New("filesystem: path escapes document root")
	ErrInvalidPath    = errors.New("filesystem: invalid path")
	ErrPermission     = errors.New("filesystem: permission denied")
)

// Filesystem serves files from below a single document root.
type Filesystem interface {
	// Resolve maps a request target to a slash separated name relative to the
	// document root.
	Resolve(target string) (string, error)
	// ReadFile reads a resolved name into memory in one piece.
	ReadFile(name string) ([]byte, error)
	FileMetaData(name string) (fs.FileInfo, error)
}

type LocalFileSystem struct {
	dir  string
	root *os.Root
}

// NewLocalFileSystem opens dir as document root. All lookups are confined to
// it, symlinks included.
func NewLocalFileSystem(dir string) (*LocalFileSystem, error) {
	if dir == "" {
		return nil, ErrInvalidPath
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("filesystem: opening document root %s: %w", abs, err)
	}

	return &LocalFileSystem{dir: abs, root: root}, nil
}

// Dir returns the absolute path of the document root.
func (filesystem *LocalFileSystem) Dir() string {
	return filesystem.dir
}

func (filesystem *LocalFileSystem) Close() error {
	return filesystem.root.Close()
}

// Resolve implements Filesystem. Query and fragment suffixes are dropped, empty
// and "." segments are skipped, and ".." may not climb above the root.
func (filesystem *LocalFileSystem) Resolve(target string) (string, error) {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" || strings.IndexByte(target, 0) >= 0 {
		return "", ErrInvalidPath
	}

	parts := make([]string, 0, strings.Count(target, "/")+1)
	for _, step := range strings.Split(target, "/") {
		switch step {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, step)
		}
	}

	if len(parts) == 0 {
		return ".", nil
	}
	return strings.Join(parts, "/"), nil
}

// FileMetaData implements Filesystem.
func (filesystem *LocalFileSystem) FileMetaData(name string) (fs.FileInfo, error) {
	info, err := filesystem.root.Stat(name)
	if err != nil {
		return nil, translate(name, err)
	}
	return info, nil
}

// ReadFile implements Filesystem. The buffer is sized to the length reported
// by stat, so the result always matches the size the caller announces.
func (filesystem *LocalFileSystem) ReadFile(name string) ([]byte, error) {
	info, err := filesystem.FileMetaData(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, name)
	}

	file, err := filesystem.root.Open(name)
	if err != nil {
		return nil, translate(name, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("closing file error", "file", name, "error", closeErr)
		}
	}()

	data := make([]byte, info.Size())
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, fmt.Errorf("filesystem: reading %s: %w", name, err)
	}

	return data, nil
}

func translate(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermission, name)
	case strings.Contains(err.Error(), "path escapes from parent"):
		// os.Root does not export its escape error.
		return fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	return fmt.Errorf("filesystem: %s: %w", name, err)
}
