package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/ops"
)

var downloadCmd = &cobra.Command{
	Use:   "download <remote-file>...",
	Short: "Download files from the remote host",
	Long: `Download files into the local path. Relative paths
are resolved against the remote path.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := ops.Download(cmd.Context(), args, options(cmd)...)
		return printReport(cmd, report, err)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
