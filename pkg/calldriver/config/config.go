// Package config loads rules, taxonomy and preferences from YAML and the
// environment, and assembles them into pipeline components.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/calldriver/pkg/calldriver/cluster"
	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/rules"
	"github.com/cognicore/calldriver/pkg/calldriver/taxonomy"
)

// RulesFile is the on-disk rules document.
type RulesFile struct {
	Rules []rules.Rule `yaml:"rules"`
}

// TaxonomyFile is the on-disk taxonomy document.
type TaxonomyFile struct {
	Taxonomy []taxonomy.Entry `yaml:"taxonomy"`
}

// LoadRules reads an ordered rule list from a YAML file.
func LoadRules(path string) ([]rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(data)
}

// ParseRules decodes a `rules:` document. Keywords are lowercased and
// trimmed so they can match normalized ticket text; rule order is kept.
func ParseRules(data []byte) ([]rules.Rule, error) {
	var doc RulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	seen := make(map[string]bool, len(doc.Rules))
	out := make([]rules.Rule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		name := strings.TrimSpace(r.Name)
		if err := checkName(name); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("rule %q: %w", name, internalerr.ErrDuplicate)
		}
		seen[name] = true
		out = append(out, rules.Rule{Name: name, Keywords: lowerAll(r.Keywords)})
	}
	return out, nil
}

// LoadTaxonomy reads taxonomy entries from a YAML file.
func LoadTaxonomy(path string) ([]taxonomy.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a `taxonomy:` document. Synonyms are lowercased.
func ParseTaxonomy(data []byte) ([]taxonomy.Entry, error) {
	var doc TaxonomyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	out := make([]taxonomy.Entry, 0, len(doc.Taxonomy))
	for i, e := range doc.Taxonomy {
		name := strings.TrimSpace(e.Name)
		if err := checkName(name); err != nil {
			return nil, fmt.Errorf("taxonomy entry %d: %w", i, err)
		}
		out = append(out, taxonomy.Entry{Name: name, Synonyms: lowerAll(e.Synonyms)})
	}
	return out, nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", internalerr.ErrInvalidConfig)
	}
	if strings.EqualFold(name, rules.Other) || cluster.IsClusterDriver(strings.ToLower(name)) {
		return fmt.Errorf("%q: %w", name, internalerr.ErrReservedName)
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
