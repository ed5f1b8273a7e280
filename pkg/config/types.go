package config

import (
	"github.com/commerce-it/mockserver/pkg/rule"
)

// ServerConfig is the top-level configuration file.
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Nil disables the listener; 0 picks a free port.
	HTTPPort  *int `json:"httpPort,omitempty" yaml:"httpPort,omitempty"`
	HTTPSPort *int `json:"httpsPort,omitempty" yaml:"httpsPort,omitempty"`
	AdminPort *int `json:"adminPort,omitempty" yaml:"adminPort,omitempty"`

	TLS TLSConfig `json:"tls,omitzero" yaml:"tls,omitempty"`
	Log LogConfig `json:"log,omitzero" yaml:"log,omitempty"`

	// ShutdownTimeout is a Go duration such as "5s".
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	DefaultResponse *DefaultResponse `json:"defaultResponse,omitempty" yaml:"defaultResponse,omitempty"`
	RequestLogSize  int              `json:"requestLogSize,omitempty" yaml:"requestLogSize,omitempty"`

	Rules     []rule.Definition `json:"rules,omitempty" yaml:"rules,omitempty"`
	RuleFiles []string          `json:"ruleFiles,omitempty" yaml:"ruleFiles,omitempty"`

	// baseDir is the directory of the file the config was loaded from.
	baseDir string
}

// TLSConfig points at PEM files for the HTTPS listener. Empty means a
// generated self-signed certificate.
type TLSConfig struct {
	CertFile string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// DefaultResponse is served when no rule matches.
type DefaultResponse struct {
	Status int    `json:"status" yaml:"status"`
	Body   string `json:"body,omitempty" yaml:"body,omitempty"`
}

// BaseDir returns the directory relative paths resolve against.
func (c *ServerConfig) BaseDir() string {
	return c.baseDir
}
