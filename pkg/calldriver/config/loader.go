package config

import (
	"fmt"

	"github.com/cognicore/calldriver/pkg/calldriver/rules"
	"github.com/cognicore/calldriver/pkg/calldriver/taxonomy"
)

// Loader loads all configuration files and constructs components.
type Loader struct {
	RulesPath    string
	TaxonomyPath string
	PrefsPath    string
	// EnvFiles are loaded before environment overrides are applied.
	EnvFiles []string
	// SkipEnv leaves prefs exactly as read from YAML.
	SkipEnv bool
}

// Components holds all loaded configuration components.
type Components struct {
	Rules    []rules.Rule
	Taxonomy *taxonomy.Matcher
	Prefs    Prefs
}

// Load reads all configuration files and returns initialized components.
// Rules are required; a missing taxonomy path yields an empty matcher.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.RulesPath == "" {
		return nil, fmt.Errorf("load rules: no path given")
	}
	rs, err := LoadRules(l.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	comp.Rules = rs

	var entries []taxonomy.Entry
	if l.TaxonomyPath != "" {
		entries, err = LoadTaxonomy(l.TaxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
	}
	comp.Taxonomy = taxonomy.NewMatcher(entries)

	prefs, err := LoadPrefs(l.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}
	if !l.SkipEnv {
		if err := LoadEnv(l.EnvFiles...); err != nil {
			return nil, err
		}
		prefs.ApplyEnv()
		if err := prefs.Validate(); err != nil {
			return nil, fmt.Errorf("prefs after environment: %w", err)
		}
	}
	comp.Prefs = prefs

	return comp, nil
}
