package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/config"
)

// ValidateOutput is the JSON result of validate.
type ValidateOutput struct {
	Valid bool   `json:"valid"`
	Rules int    `json:"rules"`
	Error string `json:"error,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Validate a config file and compile its rules without starting a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rules, err := validateConfig(args[0])
	if err != nil {
		if jsonOutput {
			_ = printResult(cmd, ValidateOutput{Error: err.Error()}, nil)
		}
		return err
	}

	return printResult(cmd, ValidateOutput{Valid: true, Rules: rules}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d rules)\n", args[0], rules)
	})
}

func validateConfig(path string) (int, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return 0, err
	}
	rules, err := cfg.BuildRules()
	if err != nil {
		return 0, err
	}
	return len(rules), nil
}
