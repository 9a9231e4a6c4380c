package receipt

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule maps merchant keywords to a category
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Rules is an ordered keyword table with a fallback category
type Rules struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// LoadRules decodes a YAML rule table. Keywords are lowercased.
func LoadRules(r io.Reader) (Rules, error) {
	var rules Rules
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		return Rules{}, fmt.Errorf("decode category rules: %w", err)
	}
	if rules.Default == "" {
		rules.Default = "Other"
	}
	for i, rule := range rules.Rules {
		if strings.TrimSpace(rule.Category) == "" {
			return Rules{}, fmt.Errorf("category rule %d: empty category", i)
		}
		if len(rule.Keywords) == 0 {
			return Rules{}, fmt.Errorf("category rule %q: no keywords", rule.Category)
		}
		for j, k := range rule.Keywords {
			rules.Rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(k))
		}
	}
	return rules, nil
}

// DefaultRules returns the built-in rule table
func DefaultRules() Rules {
	rules, err := LoadRules(strings.NewReader(string(defaultRulesYAML)))
	if err != nil {
		panic(err)
	}
	return rules
}

// LoadRulesFile reads path, falling back to the built-in rules when path is
// empty or does not exist.
func LoadRulesFile(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRules(), nil
	}
	if err != nil {
		return Rules{}, fmt.Errorf("open category rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}

// Suggest returns the category for merchant
func (r Rules) Suggest(merchant string) string {
	m := strings.ToLower(merchant)
	if m != "" {
		for _, rule := range r.Rules {
			for _, k := range rule.Keywords {
				if k != "" && strings.Contains(m, k) {
					return rule.Category
				}
			}
		}
	}
	return r.Default
}
