package domain

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule is one hostname rewrite: a compiled pattern and its replacement,
// using $1/${name} capture references. A rule is reapplied until its output
// stabilizes, so rules should be written to converge ("strip one label"
// style rather than mutually-expanding pairs).
type Rule struct {
	Name    string
	re      *regexp.Regexp
	replace string
}

// maxRuleIterations caps the per-rule fixpoint loop.
const maxRuleIterations = 16

// NewRule compiles pattern into a named rewrite rule.
func NewRule(name, pattern, replace string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: invalid pattern: %w", name, err)
	}
	return Rule{Name: name, re: re, replace: replace}, nil
}

func mustRule(name, pattern, replace string) Rule {
	r, err := NewRule(name, pattern, replace)
	if err != nil {
		panic(err)
	}
	return r
}

// The built-in pipeline:
//   - strip-local:     shop.local → shop
//   - strip-env-label: app.stage.example.com → app.example.com
var builtinRules = []Rule{
	mustRule("strip-local", `^(.+)\.local$`, `$1`),
	mustRule("strip-env-label", `^([^.]+)\.(?:local|dev|qa|stage)\.(.+)$`, `${1}.${2}`),
}

func (r Rule) apply(host string) string {
	for i := 0; i < maxRuleIterations; i++ {
		out := r.re.ReplaceAllString(host, r.replace)
		if out == host {
			return out
		}
		host = out
	}
	return host
}

type ruleSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

// LoadRules reads operator rewrite rules from a YAML file. Each entry needs
// a pattern and a replacement; the name is optional and only used in error
// messages and logs. The file is read once at startup and an invalid rule
// fails the whole load rather than being skipped.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var specs []ruleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse rules yaml: %w", err)
	}

	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i+1)
		}
		if spec.Pattern == "" {
			return nil, fmt.Errorf("rule %q: empty pattern", name)
		}
		rule, err := NewRule(name, spec.Pattern, spec.Replace)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
