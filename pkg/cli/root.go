package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/admin"
)

// DefaultAdminURL is used when neither --admin-url nor MOCKSERVER_ADMIN_URL is set.
const DefaultAdminURL = "http://localhost:4290"

var (
	// Persistent flags available to all subcommands
	adminURL   string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mockserver",
	Short: "mockserver is a rule-based HTTP/HTTPS mock server",
	Long: `mockserver answers HTTP and HTTPS requests from an ordered list of rules.
The first rule whose request criteria match produces the response, and every
match is counted so call expectations can be verified afterwards.

Start a server with 'mockserver serve', then manage it with the rules,
verify and requests commands.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", envOr("MOCKSERVER_ADMIN_URL", DefaultAdminURL), "Admin API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

func newAdminClient() *admin.Client {
	return admin.NewClient(adminURL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
