// Package logging configures the structured loggers used by the mock server.
//
// It wraps log/slog. Components accept a *slog.Logger and fall back to
// Nop when none is given:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	srv, _ := server.NewBuilder().WithHTTP().WithLogger(logger).Build()
//
// Unmatched requests and their near misses are logged at debug level, so
// raise the level to debug when a test receives an unexpected 404.
package logging
