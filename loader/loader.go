// Package loader resolves module specifiers to URLs and loads their sources
// from the scheme-keyed file systems of an engine.
package loader

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/lib/fsext"
)

// LibDir is the directory bare module specifiers are looked up in.
const LibDir = "/lib/"

// SourceData is the source of a module and the URL it was loaded from.
type SourceData struct {
	Data []byte
	URL  *url.URL
}

// RemoteClient is the client remote modules are fetched with.
//
//nolint:gochecknoglobals
var RemoteClient = &http.Client{Timeout: 30 * time.Second}

// shortcut maps specifiers like github.com/user/repo/file.js, which resolve
// to opaque URLs, to the URL their source is fetched from.
type shortcut struct {
	expr   *regexp.Regexp
	expand func(parts []string) string
}

//nolint:gochecknoglobals
var shortcuts = []shortcut{
	{
		expr: regexp.MustCompile(`^github.com/([^/]+)/([^/]+)/(.*)$`),
		expand: func(parts []string) string {
			return "https://raw.githubusercontent.com/" + parts[0] + "/" + parts[1] + "/master/" + parts[2]
		},
	},
}

func expandShortcut(specifier string) (string, bool) {
	for _, s := range shortcuts {
		if m := s.expr.FindStringSubmatch(specifier); m != nil {
			return s.expand(m[1:]), true
		}
	}
	return "", false
}

// Resolve returns the URL of the module specifier, relative to the directory
// pwd. Paths are resolved against pwd, URLs must be file or https ones, and
// bare specifiers are looked up in LibDir.
func Resolve(pwd *url.URL, specifier string) (*url.URL, error) {
	switch {
	case specifier == "":
		return nil, errors.New("local or remote path required")
	case specifier[0] == '.' || specifier[0] == '/' || filepath.IsAbs(specifier):
		return resolvePath(pwd, specifier)
	case strings.Contains(specifier, "://"):
		return resolveURL(pwd, specifier)
	}

	if _, ok := expandShortcut(specifier); ok {
		return &url.URL{Opaque: specifier}, nil
	}
	if pwd.Opaque != "" {
		return nil, fmt.Errorf("bare module specifier %q can't be resolved from %s", specifier, pwd)
	}
	lib := &url.URL{Scheme: pwd.Scheme, Host: pwd.Host, Path: LibDir}
	return lib.Parse(specifier)
}

func resolvePath(pwd *url.URL, specifier string) (*url.URL, error) {
	if pwd.Opaque != "" {
		host, dir, _ := strings.Cut(pwd.Opaque, "/")
		if specifier[0] == '/' {
			return &url.URL{Opaque: path.Join(host, specifier)}, nil
		}
		return &url.URL{Opaque: path.Join(host, dir, specifier)}, nil
	}

	// C:/app/a.js would otherwise parse with the scheme "c"
	if filepath.VolumeName(specifier) != "" {
		specifier = "/" + specifier
	}
	base := *pwd
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.Parse(specifier)
}

func resolveURL(pwd *url.URL, specifier string) (*url.URL, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return nil, err
	}
	switch {
	case u.Scheme != "file" && u.Scheme != "https":
		return nil, fmt.Errorf("only file and https modules can be loaded, %s has the scheme %q", specifier, u.Scheme)
	case u.Scheme == "file" && pwd.Scheme == "https":
		return nil, fmt.Errorf("the remote module %s can't load the local file %s", pwd, specifier)
	}
	return u, nil
}

// Dir returns the directory of the module at u.
func Dir(u *url.URL) *url.URL {
	if u.Opaque != "" {
		return &url.URL{Opaque: path.Dir(u.Opaque)}
	}
	return u.ResolveReference(&url.URL{Path: "./"})
}

// Exists reports whether the module at u is a file of the local file
// systems. Remote modules only exist once they were fetched.
func Exists(filesystems map[string]fsext.Fs, u *url.URL) bool {
	fs, name, err := locate(filesystems, u)
	if err != nil {
		return false
	}
	if ok, err := fsext.Exists(fs, name); err != nil || !ok {
		return false
	}
	isDir, err := fsext.IsDir(fs, name)
	return err == nil && !isDir
}

// locate returns the file system of the scheme of u and the name of its file
// there. Opaque and https URLs live in the https file system.
func locate(filesystems map[string]fsext.Fs, u *url.URL) (fsext.Fs, string, error) {
	scheme, name := u.Scheme, path.Clean("/"+u.Path)
	switch {
	case u.Opaque != "":
		scheme, name = "https", path.Join("/", u.Opaque)
	case scheme == "https":
		name = path.Clean("/" + u.Host + "/" + u.EscapedPath())
	}
	fs, ok := filesystems[scheme]
	if !ok {
		return nil, "", fmt.Errorf("no file system for the %q scheme of %s", scheme, u)
	}
	name, err := url.PathUnescape(name)
	return fs, filepath.FromSlash(name), err
}

// Load reads the source of the module at u, which was required as
// specifier. Remote modules missing from the https file system are fetched
// and written to it.
func Load(logger logrus.FieldLogger, filesystems map[string]fsext.Fs, u *url.URL, specifier string) (*SourceData, error) {
	logger.WithFields(logrus.Fields{"url": u, "specifier": specifier}).Debug("Loading module")

	fs, name, err := locate(filesystems, u)
	if err != nil {
		return nil, err
	}
	data, err := fsext.ReadFile(fs, name)
	switch {
	case err == nil:
		return &SourceData{URL: u, Data: data}, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	case u.Opaque == "" && u.Scheme != "https":
		return nil, fmt.Errorf("the module %q couldn't be found in the application root", specifier)
	}

	remote := u
	if u.Opaque != "" {
		expanded, ok := expandShortcut(u.Opaque)
		if !ok {
			return nil, fmt.Errorf("no shortcut matches the module %q", specifier)
		}
		if remote, err = url.Parse(expanded); err != nil {
			return nil, err
		}
	}
	if data, err = fetch(logger, remote); err != nil {
		return nil, fmt.Errorf("the module %q couldn't be fetched from %s: %w", specifier, remote, err)
	}
	if err := fsext.WriteFile(fs, name, data, 0o644); err != nil {
		logger.WithError(err).Debug("Couldn't cache a remote module")
	}
	return &SourceData{URL: u, Data: data}, nil
}

func fetch(logger logrus.FieldLogger, u *url.URL) ([]byte, error) {
	start := time.Now()
	res, err := RemoteClient.Get(u.String()) //nolint:noctx
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"url": u, "t": time.Since(start), "len": len(data)}).Debug("Fetched module")
	return data, nil
}
