package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/commerce-it/mockserver/pkg/rule"
	"github.com/commerce-it/mockserver/pkg/server"
)

// Validate checks the configuration without building rules.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.HTTPPort == nil && c.HTTPSPort == nil {
		errs = append(errs, errors.New("at least one of httpPort or httpsPort must be set"))
	}
	for name, p := range map[string]*int{"httpPort": c.HTTPPort, "httpsPort": c.HTTPSPort, "adminPort": c.AdminPort} {
		if p != nil && (*p < 0 || *p > 65535) {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, *p))
		}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.certFile and tls.keyFile must be set together"))
	}
	if c.ShutdownTimeout != "" {
		if d, err := time.ParseDuration(c.ShutdownTimeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid shutdownTimeout %q", c.ShutdownTimeout))
		}
	}
	if c.DefaultResponse != nil && (c.DefaultResponse.Status < 100 || c.DefaultResponse.Status > 599) {
		errs = append(errs, fmt.Errorf("defaultResponse.status %d out of range", c.DefaultResponse.Status))
	}
	if c.RequestLogSize < 0 {
		errs = append(errs, fmt.Errorf("requestLogSize must not be negative, got %d", c.RequestLogSize))
	}

	seen := make(map[string]int)
	for i, def := range c.Rules {
		if def.ID == "" {
			continue
		}
		if prev, ok := seen[def.ID]; ok {
			errs = append(errs, fmt.Errorf("rules[%d]: duplicate id %q (also rules[%d])", i, def.ID, prev))
			continue
		}
		seen[def.ID] = i
	}

	return errors.Join(errs...)
}

// BuildRules compiles every rule definition, reporting all failures.
func (c *ServerConfig) BuildRules() ([]*rule.Rule, error) {
	var (
		rules []*rule.Rule
		errs  []error
	)
	for i, def := range c.Rules {
		r, err := rule.FromDefinition(def).Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %s: %w", i, ruleLabel(def), err))
			continue
		}
		rules = append(rules, r)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return rules, nil
}

// ServerBuilder maps the configuration onto a server.Builder.
func (c *ServerConfig) ServerBuilder(logger *slog.Logger) (*server.Builder, error) {
	rules, err := c.BuildRules()
	if err != nil {
		return nil, err
	}

	b := server.NewBuilder().WithLogger(logger).WithRules(rules...)
	if c.Host != "" {
		b.WithHost(c.Host)
	}
	if c.HTTPPort != nil {
		b.WithHTTPPort(*c.HTTPPort)
	}
	if c.HTTPSPort != nil {
		b.WithHTTPSPort(*c.HTTPSPort)
	}
	if c.TLS.CertFile != "" {
		b.WithCertFiles(c.TLS.CertFile, c.TLS.KeyFile)
	}
	if c.DefaultResponse != nil {
		b.WithDefaultResponse(c.DefaultResponse.Status, c.DefaultResponse.Body)
	}
	if c.ShutdownTimeout != "" {
		d, err := time.ParseDuration(c.ShutdownTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid shutdownTimeout: %w", err)
		}
		b.WithShutdownTimeout(d)
	}
	if c.RequestLogSize > 0 {
		b.WithRequestLog(c.RequestLogSize)
	}
	return b, nil
}

func ruleLabel(def rule.Definition) string {
	switch {
	case def.Name != "":
		return fmt.Sprintf("%q", def.Name)
	case def.ID != "":
		return fmt.Sprintf("(id %s)", def.ID)
	default:
		return fmt.Sprintf("%s %s", or(def.Request.Method, "*"), or(def.Request.Path, "*"))
	}
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
