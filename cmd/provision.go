package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/ops"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Authorize your SSH key on the remote host",
	Long: `Add the public key of your SSH key to the authorized
keys of the remote user. The key is only added once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := ops.Provision(cmd.Context(), options(cmd)...)
		if err != nil {
			return err
		}

		verb := "provisioned"
		if status.Skipped {
			verb = "skipped"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, keyName(status.Key), status.Key.Fingerprint())
		return nil
	},
}

// keyName names the key by its file, if it has one.
func keyName(key *keys.Key) string {
	if key.Path == "" {
		return "inline key"
	}
	return key.Path
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
