package loader

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/purplejs/purplejs/lib/fsext"
)

// Application describes where a script application lives on the local disk.
type Application struct {
	// Dir is the absolute directory that is mounted as the application root.
	Dir string
	// Main is the URL of the main script inside the application root.
	Main *url.URL
}

// ReadApplication splits a script path given on the command line into the
// application root (the script's directory) and the URL of the main script
// inside of it. pwd is used to make relative paths absolute.
func ReadApplication(fs fsext.Fs, src, pwd string) (*Application, error) {
	if src == "" {
		return nil, errors.New("script path required")
	}
	srcLocalPath := fsext.Abs(pwd, src)

	isDir, err := fsext.IsDir(fs, srcLocalPath)
	if err != nil {
		return nil, fmt.Errorf("the script %q couldn't be found: %w", src, err)
	}
	if isDir {
		return nil, fmt.Errorf("the script %q is a directory", src)
	}

	return &Application{
		Dir:  filepath.Dir(srcLocalPath),
		Main: &url.URL{Scheme: "file", Path: "/" + filepath.Base(srcLocalPath)},
	}, nil
}
