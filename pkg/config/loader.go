package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
)

// Load reads a server configuration file, expands its rule files and
// validates the result.
func Load(path string) (*ServerConfig, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := decode(path, data, &cfg); err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)

	for i := range cfg.Rules {
		resolveRulePaths(&cfg.Rules[i], cfg.baseDir)
	}
	cfg.TLS.CertFile = resolvePath(cfg.baseDir, cfg.TLS.CertFile)
	cfg.TLS.KeyFile = resolvePath(cfg.baseDir, cfg.TLS.KeyFile)
	cfg.Log.File = resolvePath(cfg.baseDir, cfg.Log.File)

	if len(cfg.RuleFiles) > 0 {
		defs, err := LoadRuleFiles(cfg.RuleFiles, cfg.baseDir)
		if err != nil {
			return nil, err
		}
		cfg.Rules = append(cfg.Rules, defs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}

// readFile reads path, mapping common failures to sentinel errors.
func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return data, nil
}

// decode unmarshals data as YAML for .yaml/.yml paths and as JSON otherwise.
func decode(path string, data []byte, v any) error {
	if isYAML(path) {
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w in %s: %v", ErrInvalidYAML, path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w in %s: %v", ErrInvalidJSON, path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// resolvePath makes target absolute relative to baseDir. Empty stays empty.
func resolvePath(baseDir, target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	if strings.HasPrefix(target, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, target[2:])
		}
	}
	return filepath.Join(baseDir, target)
}
