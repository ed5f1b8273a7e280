package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/commerce-it/mockserver/pkg/rule"
)

// RuleFile is the content of a rule file: a single rule, a list of rules,
// or a mapping with a rules key.
type RuleFile struct {
	Rules []rule.Definition
}

// UnmarshalYAML accepts all three rule file layouts.
func (f *RuleFile) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}

	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&f.Rules)
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "rules" {
				return node.Content[i+1].Decode(&f.Rules)
			}
		}
		var def rule.Definition
		if err := node.Decode(&def); err != nil {
			return err
		}
		f.Rules = []rule.Definition{def}
		return nil
	default:
		return fmt.Errorf("line %d: expected a rule, a list of rules or a rules mapping", node.Line)
	}
}

// UnmarshalJSON accepts all three rule file layouts.
func (f *RuleFile) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &f.Rules)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return err
	}
	if raw, ok := probe["rules"]; ok {
		return json.Unmarshal(raw, &f.Rules)
	}

	var def rule.Definition
	if err := json.Unmarshal(trimmed, &def); err != nil {
		return err
	}
	f.Rules = []rule.Definition{def}
	return nil
}

// LoadRuleFile reads the rule definitions in path.
func LoadRuleFile(path string) ([]rule.Definition, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var f RuleFile
	if err := decode(path, data, &f); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i := range f.Rules {
		resolveRulePaths(&f.Rules[i], dir)
	}
	return f.Rules, nil
}

// LoadRuleFiles loads every file matched by patterns, resolved against
// baseDir. Patterns support ** for recursive matching. Matches of one
// pattern load in lexical order; a literal path that does not exist is an
// error, a glob with no matches is not.
func LoadRuleFiles(patterns []string, baseDir string) ([]rule.Definition, error) {
	var defs []rule.Definition
	for _, pattern := range patterns {
		resolved := resolvePath(baseDir, pattern)

		matches := []string{resolved}
		if isGlob(pattern) {
			var err error
			matches, err = doublestar.FilepathGlob(resolved, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
			}
			sort.Strings(matches)
		}

		for _, match := range matches {
			loaded, err := LoadRuleFile(match)
			if err != nil {
				rel, relErr := filepath.Rel(baseDir, match)
				if relErr != nil {
					rel = match
				}
				return nil, fmt.Errorf("loading %s: %w", rel, err)
			}
			defs = append(defs, loaded...)
		}
	}
	return defs, nil
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// resolveRulePaths anchors file references in def to dir.
func resolveRulePaths(def *rule.Definition, dir string) {
	def.Response.BodyFile = resolvePath(dir, def.Response.BodyFile)
}
