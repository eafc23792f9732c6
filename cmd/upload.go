package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/ops"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files to the remote host",
	Long: `Upload files and directories into the remote path.
Directories are uploaded recursively. A failing upload
does not stop the remaining ones.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := ops.Upload(cmd.Context(), args, options(cmd)...)
		return printReport(cmd, report, err)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
