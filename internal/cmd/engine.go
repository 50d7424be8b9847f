package cmd

import (
	"time"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/lib/fsext"
	"github.com/purplejs/purplejs/loader"
)

// devCacheTime makes the dev run mode pick up edited scripts right away.
const devCacheTime = time.Millisecond

// newEngineBuilder returns a builder for engines running the application in
// app.Dir with the consolidated configuration.
func newEngineBuilder(gs *state.GlobalState, conf Config, app *loader.Application) *js.Builder {
	cacheTime := conf.CacheTime.TimeDuration()
	if cacheTime == 0 && conf.Mode() == js.RunModeDev {
		cacheTime = devCacheTime
	}
	root := fsext.NewBasePathFs(gs.FS, app.Dir)

	return js.NewBuilder().
		Logger(gs.Logger).
		Filesystems(loader.CreateFilesystems(root, cacheTime)).
		RunMode(conf.Mode()).
		Env(conf.Env)
}
