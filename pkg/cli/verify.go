package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/admin"
	"github.com/commerce-it/mockserver/pkg/registry"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every rule's call expectation on a running server",
	Long: `Check every rule's call expectation on a running server.

Exits non-zero and lists each violated rule when any expectation is not met.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	err := newAdminClient().Verify(cmd.Context())

	var verr *registry.VerificationError
	switch {
	case err == nil:
		return printResult(cmd, admin.VerifyResponse{OK: true}, func() {
			fmt.Fprintln(cmd.OutOrStdout(), "All expectations met")
		})
	case errors.As(err, &verr):
		_ = printResult(cmd, admin.VerifyResponse{Violations: verr.Violations}, func() {
			for _, v := range verr.Violations {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", v.Error())
			}
		})
		return fmt.Errorf("%d of the server's rules violated their expectations", len(verr.Violations))
	default:
		return err
	}
}
