package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/commerce-it/mockserver/pkg/logging"
	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/requestlog"
	"github.com/commerce-it/mockserver/pkg/rule"
	mocktls "github.com/commerce-it/mockserver/pkg/tls"
)

// Defaults.
const (
	DefaultHost            = "127.0.0.1"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultRequestLogSize  = 1000
)

// Builder configures a Server.
// Methods record the first error encountered; Build returns it.
type Builder struct {
	host            string
	httpPort        *int
	httpsPort       *int
	cert            *mocktls.Certificate
	certFile        string
	keyFile         string
	defaultStatus   int
	defaultBody     []byte
	rules           []*rule.Rule
	builders        []*rule.Builder
	logger          *slog.Logger
	shutdownTimeout time.Duration
	requestLogSize  int
	err             error
}

// NewBuilder returns a builder with no listeners configured.
func NewBuilder() *Builder {
	return &Builder{
		host:            DefaultHost,
		defaultStatus:   http.StatusNotFound,
		shutdownTimeout: DefaultShutdownTimeout,
		requestLogSize:  DefaultRequestLogSize,
	}
}

func (b *Builder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// WithHTTP enables the HTTP listener on an ephemeral port.
func (b *Builder) WithHTTP() *Builder {
	return b.WithHTTPPort(0)
}

// WithHTTPPort enables the HTTP listener on port. 0 picks a free port.
func (b *Builder) WithHTTPPort(port int) *Builder {
	b.httpPort = &port
	return b
}

// WithHTTPS enables the HTTPS listener on an ephemeral port.
func (b *Builder) WithHTTPS() *Builder {
	return b.WithHTTPSPort(0)
}

// WithHTTPSPort enables the HTTPS listener on port. 0 picks a free port.
func (b *Builder) WithHTTPSPort(port int) *Builder {
	b.httpsPort = &port
	return b
}

// WithHost sets the interface listeners bind to. Default is 127.0.0.1.
func (b *Builder) WithHost(host string) *Builder {
	b.host = host
	return b
}

// WithTLSCertificate serves cert on the HTTPS listener instead of a
// generated self-signed certificate.
func (b *Builder) WithTLSCertificate(cert *mocktls.Certificate) *Builder {
	b.cert = cert
	return b
}

// WithCertFiles loads the HTTPS certificate from PEM files at Build.
func (b *Builder) WithCertFiles(certFile, keyFile string) *Builder {
	b.certFile = certFile
	b.keyFile = keyFile
	return b
}

// WithDefaultResponse sets the response for requests no rule matches.
func (b *Builder) WithDefaultResponse(status int, body string) *Builder {
	if status < 100 || status > 599 {
		b.setError(fmt.Errorf("WithDefaultResponse: invalid status code %d", status))
		return b
	}
	b.defaultStatus = status
	b.defaultBody = []byte(body)
	return b
}

// WithRules registers initial rules.
func (b *Builder) WithRules(rules ...*rule.Rule) *Builder {
	b.rules = append(b.rules, rules...)
	return b
}

// WithRuleBuilders registers initial rules built at Build time, after any
// rules passed to WithRules.
func (b *Builder) WithRuleBuilders(builders ...*rule.Builder) *Builder {
	b.builders = append(b.builders, builders...)
	return b
}

// WithLogger sets the logger. Default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithShutdownTimeout bounds the graceful part of Stop.
func (b *Builder) WithShutdownTimeout(d time.Duration) *Builder {
	if d <= 0 {
		b.setError(fmt.Errorf("WithShutdownTimeout: must be positive, got %s", d))
		return b
	}
	b.shutdownTimeout = d
	return b
}

// WithRequestLog sets how many requests the journal keeps.
func (b *Builder) WithRequestLog(size int) *Builder {
	if size <= 0 {
		b.setError(fmt.Errorf("WithRequestLog: size must be positive, got %d", size))
		return b
	}
	b.requestLogSize = size
	return b
}

// Build validates the configuration and returns a Server in StateNew.
func (b *Builder) Build() (*Server, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.httpPort == nil && b.httpsPort == nil {
		return nil, ErrNoListeners
	}
	for _, p := range []*int{b.httpPort, b.httpsPort} {
		if p != nil && (*p < 0 || *p > 65535) {
			return nil, fmt.Errorf("server: invalid port %d", *p)
		}
	}
	if b.httpPort != nil && b.httpsPort != nil && *b.httpPort != 0 && *b.httpPort == *b.httpsPort {
		return nil, fmt.Errorf("server: HTTP and HTTPS cannot share port %d", *b.httpPort)
	}

	rules := append([]*rule.Rule(nil), b.rules...)
	for i, rb := range b.builders {
		r, err := rb.Build()
		if err != nil {
			return nil, fmt.Errorf("server: rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}

	cert, err := b.certificate()
	if err != nil {
		return nil, err
	}

	s := &Server{
		host:            b.host,
		httpPort:        b.httpPort,
		httpsPort:       b.httpsPort,
		cert:            cert,
		defaultStatus:   b.defaultStatus,
		defaultBody:     b.defaultBody,
		shutdownTimeout: b.shutdownTimeout,
		registry:        registry.New(),
		journal:         requestlog.NewInMemoryStore(b.requestLogSize),
		log:             logging.Component(b.logger, "server"),
	}
	s.registry.Add(rules...)
	s.client = s.newClient()
	return s, nil
}

// certificate resolves the HTTPS certificate. Nil when HTTPS is disabled.
func (b *Builder) certificate() (*mocktls.Certificate, error) {
	if b.httpsPort == nil {
		return nil, nil
	}
	if b.cert != nil {
		return b.cert, nil
	}
	if b.certFile != "" || b.keyFile != "" {
		cert, err := mocktls.LoadFiles(b.certFile, b.keyFile)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		return cert, nil
	}

	opts := mocktls.DefaultOptions()
	if b.host != "" && b.host != DefaultHost {
		opts.Hosts = append(opts.Hosts, b.host)
	}
	cert, err := mocktls.SelfSigned(opts)
	if err != nil {
		return nil, fmt.Errorf("server: generating certificate: %w", err)
	}
	return cert, nil
}

func (s *Server) newClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.cert != nil {
		transport.TLSClientConfig = s.cert.ClientConfig()
	} else {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &http.Client{Transport: transport, Timeout: 30 * time.Second}
}
