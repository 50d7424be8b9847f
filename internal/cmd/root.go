// Package cmd implements the purple command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/lib/consts"
)

// ExecuteWithGlobalState runs purple with the arguments of gs and exits the
// process through gs.OSExit.
func ExecuteWithGlobalState(gs *state.GlobalState) {
	newRootCommand(gs).execute()
}

// rootCommand is the purple command the subcommands are attached to.
type rootCommand struct {
	globalState *state.GlobalState

	cmd           *cobra.Command
	stopLoggersCh chan struct{}
	loggersWg     sync.WaitGroup
	// logsToFile is set when the logs only go to a file hook, so fatal
	// errors are repeated on the fallback logger.
	logsToFile bool
}

func newRootCommand(gs *state.GlobalState) *rootCommand {
	c := &rootCommand{
		globalState:   gs,
		stopLoggersCh: make(chan struct{}),
	}
	rootCmd := &cobra.Command{
		Use:               gs.BinaryName,
		Short:             "serve HTTP applications written in JavaScript",
		Long:              "\n" + getBanner(gs.Flags.NoColor || !gs.Stdout.IsTTY),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
		Version:           consts.Version,
	}
	rootCmd.SetVersionTemplate(
		`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "v%s\n" .Version}}`,
	)

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.CmdArgs[1:])
	rootCmd.SetOut(gs.Stdout)
	rootCmd.SetErr(gs.Stderr)
	rootCmd.SetIn(gs.Stdin)

	subCommands := []func(*state.GlobalState) *cobra.Command{
		getCmdServe, getCmdRun, getCmdVersion,
	}
	for _, sc := range subCommands {
		rootCmd.AddCommand(sc(gs))
	}

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if err := c.setupLoggers(c.stopLoggersCh); err != nil {
		return err
	}
	c.globalState.Logger.Debugf("purple version: v%s", consts.FullVersion())
	return nil
}

func (c *rootCommand) execute() {
	ctx, cancel := context.WithCancel(c.globalState.Ctx)
	c.globalState.Ctx = ctx

	exitCode := -1
	defer func() {
		cancel()
		c.stopLoggers()
		c.globalState.OSExit(exitCode)
	}()
	defer func() {
		if r := recover(); r != nil {
			exitCode = int(exitcodes.GoPanic)
			c.logFatal(fmt.Errorf("unexpected purple panic: %s\n%s", r, debug.Stack()))
		}
	}()

	if err := c.cmd.Execute(); err != nil {
		exitCode = exitCodeOf(err)
		c.logFatal(err)
		return
	}
	exitCode = 0
}

// exitCodeOf returns the exit code err carries, or -1.
func exitCodeOf(err error) int {
	var ecerr errext.HasExitCode
	if errors.As(err, &ecerr) {
		return int(ecerr.ExitCode())
	}
	return -1
}

func (c *rootCommand) logFatal(err error) {
	msg, fields := errext.Format(err)
	c.globalState.Logger.WithFields(fields).Error(msg)
	if c.logsToFile {
		c.globalState.FallbackLogger.WithFields(fields).Error(msg)
	}
}

func rootCmdPersistentFlagSet(gs *state.GlobalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	// gs.Flags is both the destination and the value, since environment
	// variables may already have set it; DefValue keeps --help honest.
	flags.StringVar(&gs.Flags.LogOutput, "log-output", gs.Flags.LogOutput,
		"change the output for purple logs, possible values are: "+
			"'stderr', 'stdout', 'none', 'file=./path[,level=lvl][,format=text|json][,truncate=bool]'")
	flags.Lookup("log-output").DefValue = gs.DefaultFlags.LogOutput

	flags.StringVar(&gs.Flags.LogFormat, "log-format", gs.Flags.LogFormat, "log output format")
	flags.Lookup("log-format").DefValue = gs.DefaultFlags.LogFormat

	flags.StringVarP(&gs.Flags.ConfigFilePath, "config", "c", gs.Flags.ConfigFilePath, "YAML or JSON config file")
	flags.Lookup("config").DefValue = gs.DefaultFlags.ConfigFilePath
	must(cobra.MarkFlagFilename(flags, "config"))

	flags.BoolVar(&gs.Flags.NoColor, "no-color", gs.Flags.NoColor, "disable colored output")
	flags.Lookup("no-color").DefValue = strconv.FormatBool(gs.DefaultFlags.NoColor)

	flags.BoolVarP(&gs.Flags.Verbose, "verbose", "v", gs.Flags.Verbose, "enable verbose logging")
	flags.Lookup("verbose").DefValue = strconv.FormatBool(gs.DefaultFlags.Verbose)
	flags.BoolVarP(&gs.Flags.Quiet, "quiet", "q", gs.DefaultFlags.Quiet, "disable the banner and informational output")

	return flags
}
