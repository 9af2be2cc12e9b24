package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/respd/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "respd",
	Short: "An in-memory key-value server that speaks RESP2",
	Long: `An in-memory key-value server that speaks RESP2

Configuration is read from the environment (RESPD_*) and from a
.env.local file in the working directory.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(CallCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
