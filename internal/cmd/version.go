package cmd

import (
	"github.com/spf13/cobra"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/lib/consts"
)

func getCmdVersion(gs *state.GlobalState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit.`,
		Run: func(_ *cobra.Command, _ []string) {
			printToStdout(gs, "purple v"+consts.FullVersion()+"\n")
		},
	}
}
