// Package fsext wraps the afero file systems purple loads scripts and
// resources from.
package fsext

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Fs is a file system.
type Fs = afero.Fs

// FilePathSeparator is the separator of paths in an Fs.
const FilePathSeparator = afero.FilePathSeparator

// NewMemMapFs returns an empty in-memory Fs.
func NewMemMapFs() Fs {
	return afero.NewMemMapFs()
}

// NewOsFs returns the Fs of the operating system.
func NewOsFs() Fs {
	return afero.NewOsFs()
}

// NewReadOnlyFs returns fs with every write failing.
func NewReadOnlyFs(fs Fs) Fs {
	return afero.NewReadOnlyFs(fs)
}

// NewBasePathFs mounts path of fs as the root of the returned Fs. Nothing
// outside of path can be reached through it.
func NewBasePathFs(fs Fs, path string) Fs {
	return afero.NewBasePathFs(fs, path)
}

// NewCacheOnReadFs returns base with files copied into layer the first time
// they are read. They are read from base again once they are older than
// cacheTime; a zero cacheTime keeps them forever.
func NewCacheOnReadFs(base, layer Fs, cacheTime time.Duration) Fs {
	return afero.NewCacheOnReadFs(base, layer, cacheTime)
}

// ReadFile reads the whole named file.
func ReadFile(fs Fs, filename string) ([]byte, error) {
	return afero.ReadFile(fs, filename)
}

// WriteFile writes data to the named file, creating it if needed.
func WriteFile(fs Fs, filename string, data []byte, perm fs.FileMode) error {
	return afero.WriteFile(fs, filename, data, perm)
}

// Exists reports whether path exists.
func Exists(fs Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}

// IsDir reports whether path is a directory.
func IsDir(fs Fs, path string) (bool, error) {
	return afero.IsDir(fs, path)
}

// Abs returns path as a clean absolute path, relative to the directory root
// unless it already is absolute. Paths starting with a slash or a backslash
// are absolute on every platform.
func Abs(root, path string) string {
	if path == "" {
		path = "."
	}
	if path[0] != '/' && path[0] != '\\' && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if path[0:1] != FilePathSeparator && !filepath.IsAbs(path) {
		path = FilePathSeparator + path
	}
	return path
}
