package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mailru/easyjson/jwriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/js/value"
	"github.com/purplejs/purplejs/loader"
)

// cmdRun handles the `purple run` sub-command
type cmdRun struct {
	gs       *state.GlobalState
	function string
	args     []string
}

func (c *cmdRun) run(cmd *cobra.Command, args []string) error {
	conf, err := getConsolidatedConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	cwd, err := c.gs.Getwd()
	if err != nil {
		return err
	}
	app, err := loader.ReadApplication(c.gs.FS, args[0], cwd)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	fnArgs := make([]interface{}, 0, len(c.args))
	for _, raw := range c.args {
		var arg interface{}
		if err := json.Unmarshal([]byte(raw), &arg); err != nil {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("the argument %q isn't valid JSON: %w", raw, err), exitcodes.InvalidConfig)
		}
		fnArgs = append(fnArgs, arg)
	}

	engine, err := newEngineBuilder(c.gs, conf, app).Build()
	if err != nil {
		return err
	}
	defer engine.Dispose()

	ctx, cancel := context.WithCancel(c.gs.Ctx)
	defer cancel()
	if timeout := conf.ScriptTimeout.TimeDuration(); timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stopSignalHandling := handleAbortSignals(c.gs, func(sig os.Signal) {
		c.gs.Logger.WithField("sig", sig).Debug("Interrupting the script...")
		cancel()
	})
	defer stopSignalHandling()

	start := time.Now()
	exports, err := engine.Require(app.Main.Path)
	if err != nil {
		return err
	}
	// the result is encoded while the timeout still interrupts its getters
	var (
		out       []byte
		formatErr error
	)
	err = exports.ExecuteMethodWith(ctx, c.function, func(result value.Value) {
		out, formatErr = formatRunResult(result, time.Since(start))
	}, fnArgs...)
	if err != nil {
		return err
	}
	if formatErr != nil {
		return formatErr
	}
	printToStdout(c.gs, string(out)+"\n")
	return nil
}

// formatRunResult renders {"result":...,"durationMs":...}.
func formatRunResult(result value.Value, duration time.Duration) ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`{"result":`)
	w.Raw(value.JSON(result), nil)
	w.RawString(`,"durationMs":`)
	w.Int64(duration.Milliseconds())
	w.RawByte('}')
	return w.BuildBytes()
}

func (c *cmdRun) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVarP(&c.function, "func", "f", "main", "name of the exported function to call")
	flags.StringArrayVar(&c.args, "arg", nil, "JSON argument passed to the function, can be repeated")
	flags.AddFlagSet(engineFlagSet())
	return flags
}

func getCmdRun(gs *state.GlobalState) *cobra.Command {
	c := &cmdRun{gs: gs}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Call a function exported by a script",
		Long: `Call a function exported by a script and print what it returns as JSON,
together with the time the call took.`,
		Example: `
  # Call the main function of a script.
  ` + gs.BinaryName + ` run script.js

  # Call another function with arguments.
  ` + gs.BinaryName + ` run -f add --arg 1 --arg 2 math.js`,
		Args: exactArgsWithMsg(1, "arg should be a path to a script"),
		RunE: c.run,
	}
	runCmd.Flags().SortFlags = false
	runCmd.Flags().AddFlagSet(c.flagSet())
	return runCmd
}
