package gen

import (
	"github.com/spf13/cobra"
)

// RootCmd groups generators for files shipped alongside the binary.
var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for respd",
	Long:  `Generate documentation, such as man pages, for respd`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
