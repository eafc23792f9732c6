package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/ops"
)

var runCmd = &cobra.Command{
	Use:   "run [config]",
	Short: "Run a playbook",
	Long: `Run a playbook against the remote host. The files
listed under "uploads" are uploaded first, then the
"commands" are executed and finally the files listed
under "downloads" are downloaded.

By default the command expects a "sshclient.yml" config
file in the current directory. You may override this
by passing a path to the configuration file as a CLI
argument. Without a config file the connection is
configured via environment variables and flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd)

		// Use manual override for config path if provided.
		if len(args) == 1 {
			opts = append(opts, ops.WithConfigPath(args[0]))
		}

		report, err := ops.Run(cmd.Context(), opts...)
		return printReport(cmd, report, err)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
