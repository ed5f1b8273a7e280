package cli

import (
	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/cli/internal/output"
)

// printResult outputs a command result.
//
// When --json is active only the JSON encoding of data is written to
// stdout. textFn is called only in text mode.
func printResult(cmd *cobra.Command, data any, textFn func()) error {
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), data)
	}
	textFn()
	return nil
}
