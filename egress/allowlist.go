package egress

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

/* Policy is the static egress allowlist: a table mapping HTTP method to
 * permitted path patterns. Default is deny; there is no wildcard
 * fallback. Checked before any network call is made.
 */

// Rule permits one method/pattern pair
type Rule struct {
	Method  string
	Pattern string
}

// Validate checks if the rule is well formed
func (r Rule) Validate() error {
	if r.Method == "" {
		return fmt.Errorf("method cannot be empty")
	}
	switch strings.ToUpper(r.Method) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if r.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty for method %s", r.Method)
	}
	if !strings.HasPrefix(r.Pattern, "/") {
		return fmt.Errorf("pattern %q for method %s must start with /", r.Pattern, r.Method)
	}
	return nil
}

type Policy struct {
	rules    []Rule
	compiled map[string][]*regexp.Regexp
}

// NewPolicy compiles the rules into an allowlist. Patterns are anchored
// to the full path; a prefix or suffix match is not a match.
func NewPolicy(rules []Rule) (*Policy, error) {
	p := &Policy{
		rules:    make([]Rule, 0, len(rules)),
		compiled: make(map[string][]*regexp.Regexp),
	}

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("validating allowlist rule: %w", err)
		}

		re, err := regexp.Compile(`\A(?:` + rule.Pattern + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q for method %s: %w", rule.Pattern, rule.Method, err)
		}

		method := strings.ToUpper(rule.Method)
		p.rules = append(p.rules, Rule{Method: method, Pattern: rule.Pattern})
		p.compiled[method] = append(p.compiled[method], re)
	}

	return p, nil
}

// Allows reports whether the method/path pair is permitted
func (p *Policy) Allows(method, path string) bool {
	patterns, ok := p.compiled[strings.ToUpper(method)]
	if !ok {
		return false
	}

	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Rules returns the policy's rules sorted by method then pattern
func (p *Policy) Rules() []Rule {
	rules := append([]Rule{}, p.rules...)
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Method != rules[j].Method {
			return rules[i].Method < rules[j].Method
		}
		return rules[i].Pattern < rules[j].Pattern
	})
	return rules
}

// Len returns the number of rules in the policy
func (p *Policy) Len() int {
	return len(p.rules)
}

/* YAML loading for allowlist.yaml */

// Config represents the structure of allowlist.yaml
type Config struct {
	Allow []RuleConfig `yaml:"allow"`
}

// RuleConfig represents a single method entry in the YAML file
type RuleConfig struct {
	Method   string   `yaml:"method"`
	Patterns []string `yaml:"patterns"`
}

// LoadPolicy reads and compiles the allowlist file
func LoadPolicy(filePath string) (*Policy, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading allowlist file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing allowlist YAML: %w", err)
	}

	var rules []Rule
	for _, rc := range config.Allow {
		for _, pattern := range rc.Patterns {
			rules = append(rules, Rule{Method: rc.Method, Pattern: pattern})
		}
	}

	policy, err := NewPolicy(rules)
	if err != nil {
		return nil, fmt.Errorf("building allowlist policy: %w", err)
	}

	return policy, nil
}
