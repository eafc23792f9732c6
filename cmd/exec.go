package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/ops"
)

var execCmd = &cobra.Command{
	Use:   "exec -- <command>...",
	Short: "Execute commands on the remote host",
	Long: `Execute the commands one after another on the remote
host. A failing command does not stop the remaining
ones unless "abort-on-failure" is set in the config.`,
	Example: `  sshclient exec --host web-1 -- "uname -a" "df -h"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := ops.Exec(cmd.Context(), args, options(cmd)...)
		return printReport(cmd, report, err)
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
