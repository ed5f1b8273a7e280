package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/admin"
	"github.com/commerce-it/mockserver/pkg/config"
	"github.com/commerce-it/mockserver/pkg/logging"
	"github.com/commerce-it/mockserver/pkg/server"
)

// Default ports used when serve runs without a config file.
const (
	DefaultHTTPPort  = 4280
	DefaultAdminPort = 4290
)

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	configPath      string
	host            string
	httpPort        int
	httpsPort       int
	adminPort       int
	certFile        string
	keyFile         string
	certOut         string
	keyOut          string
	logLevel        string
	logFormat       string
	logFile         string
	shutdownTimeout time.Duration
	printURL        bool
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Start the mock server and serve rules until SIGINT or SIGTERM.

Rules come from the config file (inline rules and ruleFiles globs) and from
the admin API when --admin-port is enabled. Flags override the config file.
A negative port disables that listener.`,
	Example: `  # HTTP on 4280 with the admin API on 4290
  mockserver serve --admin-port 4290

  # Rules from a config file, HTTPS on a free port
  mockserver serve --config mockserver.yaml --https-port 0 --print-url

  # Write the generated certificate so other tools can trust it
  mockserver serve --https-port 8443 --cert-out ca.pem --key-out ca-key.pem`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := &serveFlagVals

	serveCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to server config file (YAML or JSON)")
	serveCmd.Flags().StringVar(&f.host, "host", server.DefaultHost, "Bind address")
	serveCmd.Flags().IntVarP(&f.httpPort, "port", "p", DefaultHTTPPort, "HTTP port (0 = auto-assign, -1 = disabled)")
	serveCmd.Flags().IntVar(&f.httpsPort, "https-port", -1, "HTTPS port (0 = auto-assign, -1 = disabled)")
	serveCmd.Flags().IntVar(&f.adminPort, "admin-port", -1, "Admin API port (0 = auto-assign, -1 = disabled)")
	serveCmd.Flags().StringVar(&f.certFile, "tls-cert", "", "PEM certificate for HTTPS (default: generated self-signed)")
	serveCmd.Flags().StringVar(&f.keyFile, "tls-key", "", "PEM private key for HTTPS")
	serveCmd.Flags().StringVar(&f.certOut, "cert-out", "", "Write the HTTPS certificate to this PEM file")
	serveCmd.Flags().StringVar(&f.keyOut, "key-out", "", "Write the HTTPS private key to this PEM file")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	serveCmd.Flags().StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
	serveCmd.Flags().DurationVar(&f.shutdownTimeout, "shutdown-timeout", server.DefaultShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().BoolVar(&f.printURL, "print-url", false, "Print listener URLs to stdout on startup")

	serveCmd.MarkFlagsRequiredTogether("tls-cert", "tls-key")
	serveCmd.MarkFlagsRequiredTogether("cert-out", "key-out")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	f := &serveFlagVals

	cfg, err := serveConfig(cmd, f)
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	b, err := cfg.ServerBuilder(log)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	srv, err := b.Build()
	if err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			log.Warn("server shutdown incomplete", "error", err)
		}
	}()

	if f.certOut != "" && srv.Certificate() != nil {
		if err := srv.Certificate().Save(f.certOut, f.keyOut); err != nil {
			return fmt.Errorf("failed to write certificate: %w", err)
		}
		log.Info("certificate written", "cert", f.certOut, "key", f.keyOut)
	}

	var api *admin.API
	if cfg.AdminPort != nil && *cfg.AdminPort >= 0 {
		api = admin.New(srv, admin.WithLogger(log))
		addr := net.JoinHostPort(adminHost(cfg.Host), strconv.Itoa(*cfg.AdminPort))
		if err := api.Start(addr); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			_ = api.Stop(ctx)
		}()
	}

	if f.printURL {
		out := cmd.OutOrStdout()
		for _, u := range []string{srv.URL(), srv.HTTPSURL()} {
			if u != "" {
				fmt.Fprintln(out, u)
			}
		}
		if api != nil {
			fmt.Fprintf(out, "http://%s\n", net.JoinHostPort(displayHost(adminHost(cfg.Host)), strconv.Itoa(api.Port())))
		}
	}

	log.Info("mock server started",
		"http", srv.URL(),
		"https", srv.HTTPSURL(),
		"rules", len(srv.Rules()),
		"config", f.configPath,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down mock server")
	return nil
}

// serveConfig loads the config file, if any, and applies flag overrides.
// Without a config file every flag applies, defaults included.
func serveConfig(cmd *cobra.Command, f *serveFlags) (*config.ServerConfig, error) {
	cfg := &config.ServerConfig{}
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	apply := func(name string) bool {
		return f.configPath == "" || cmd.Flags().Changed(name)
	}
	port := func(p int) *int {
		if p < 0 {
			return nil
		}
		return &p
	}

	if apply("host") {
		cfg.Host = f.host
	}
	if apply("port") {
		cfg.HTTPPort = port(f.httpPort)
	}
	if apply("https-port") {
		cfg.HTTPSPort = port(f.httpsPort)
	}
	if apply("admin-port") {
		cfg.AdminPort = port(f.adminPort)
	}
	if cmd.Flags().Changed("tls-cert") {
		cfg.TLS = config.TLSConfig{CertFile: f.certFile, KeyFile: f.keyFile}
	}
	if cfg.Log.Level == "" || cmd.Flags().Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if cfg.Log.Format == "" || cmd.Flags().Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = f.shutdownTimeout.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. The returned func closes the log file.
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	logCfg := logging.Config{
		Level:  logging.ParseLevel(cfg.Level),
		Format: logging.ParseFormat(cfg.Format),
		Output: os.Stderr,
	}
	closeFn := func() {}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg.Tee = []io.Writer{file}
		closeFn = func() { _ = file.Close() }
	}

	return logging.New(logCfg), closeFn, nil
}

func adminHost(host string) string {
	if host == "" {
		return server.DefaultHost
	}
	return host
}

func displayHost(host string) string {
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return "localhost"
	}
	return host
}
