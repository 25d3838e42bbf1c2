package cmd

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/common"
)

// Set at build time with -ldflags "-X github.com/mensylisir/xmadmin/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, %s %s/%s)\n",
				common.AppName, Version, GitCommit, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
		},
	}
}
