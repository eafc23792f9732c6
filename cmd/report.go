package cmd

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/engine"
)

// printReport prints one row per item of the report and returns an
// error if any item failed.
func printReport(cmd *cobra.Command, report *engine.Report, err error) error {
	if report == nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Step", "Status", "Item", "Result"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, upload := range report.Uploads {
		table.Append([]string{"upload", status(upload.Err), upload.LocalPath, upload.RemotePath})
	}
	for _, result := range report.Commands {
		table.Append([]string{"exec", status(result.Err), result.Command, "exit " + strconv.Itoa(result.ExitCode)})
	}
	for _, download := range report.Downloads {
		table.Append([]string{"download", status(download.Err), download.RemotePath, download.LocalPath})
	}

	if len(report.Uploads)+len(report.Commands)+len(report.Downloads) > 0 {
		table.Render()
	}

	if err != nil {
		return err
	}

	return report.Err()
}

func status(err error) string {
	if err != nil {
		return "FAIL"
	}
	return "OK"
}
