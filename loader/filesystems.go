package loader

import (
	"time"

	"github.com/purplejs/purplejs/lib/fsext"
)

// CreateFilesystems creates the scheme-keyed file systems an engine loads its
// modules from. The application root is mounted read-only at "/" of the file
// scheme, with a memory cache that is filled on read. A zero cacheTime keeps
// cached files forever. Remote modules are cached in their own memory fs.
func CreateFilesystems(root fsext.Fs, cacheTime time.Duration) map[string]fsext.Fs {
	return map[string]fsext.Fs{
		"file":  fsext.NewCacheOnReadFs(fsext.NewReadOnlyFs(root), fsext.NewMemMapFs(), cacheTime),
		"https": fsext.NewMemMapFs(),
	}
}
