// Package policy loads and validates declarative branch/tag protection
// policies. A policy is a YAML document with ordered `branches` and `tags`
// rule lists; every rule is validated before any GitLab call is made.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Errors the CLI maps to dedicated exit codes.
var (
	ErrNotFound = errors.New("policy file not found")
	ErrParse    = errors.New("policy parse error")
)

// Rule protects one branch or tag name, which may be a glob pattern.
// Patterns use `*` to match any run of characters (including `/`), are
// case-sensitive, and always match the full name. GitLab stores wildcard
// protections verbatim, so a pattern is itself a valid protection target.
type Rule struct {
	Name             string      `yaml:"name"`
	MergeAccessLevel AccessLevel `yaml:"merge_access_level"`
	PushAccessLevel  AccessLevel `yaml:"push_access_level"`

	pattern glob.Glob
}

// EnsureCompiled compiles the rule's name pattern once.
func (r *Rule) EnsureCompiled() error {
	if r.pattern != nil {
		return nil
	}
	g, err := glob.Compile(r.Name)
	if err != nil {
		return fmt.Errorf("invalid name pattern %q: %w", r.Name, err)
	}
	r.pattern = g
	return nil
}

// Matches reports whether the rule's name pattern matches name.
func (r *Rule) Matches(name string) bool {
	if err := r.EnsureCompiled(); err != nil {
		return false
	}
	return r.pattern.Match(name)
}

// Document is a parsed protection policy: ordered branch rules and ordered
// tag rules. Constructed once by Load, immutable thereafter.
//
// Tag rules carry both levels for schema uniformity, but GitLab protected
// tags accept a create access level only, so just the push level is sent.
type Document struct {
	Branches []Rule `yaml:"branches"`
	Tags     []Rule `yaml:"tags"`
}

// Load reads and validates a policy file. Validation is exhaustive and
// front-loaded: the whole document is rejected before any network call is
// attempted, so a half-valid policy is never partially applied.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if len(d.Branches) == 0 && len(d.Tags) == 0 {
		return fmt.Errorf("%w: policy defines no branch or tag rules", ErrParse)
	}
	if err := validateRules("branches", d.Branches); err != nil {
		return err
	}
	return validateRules("tags", d.Tags)
}

func validateRules(section string, rules []Rule) error {
	for i := range rules {
		r := &rules[i]
		if r.Name == "" {
			return fmt.Errorf("%w: %s[%d]: missing name", ErrParse, section, i)
		}
		if r.MergeAccessLevel == "" {
			return fmt.Errorf("%w: %s[%d] %q: missing merge_access_level", ErrParse, section, i, r.Name)
		}
		if r.PushAccessLevel == "" {
			return fmt.Errorf("%w: %s[%d] %q: missing push_access_level", ErrParse, section, i, r.Name)
		}
		if _, err := Resolve(string(r.MergeAccessLevel)); err != nil {
			return fmt.Errorf("%w: %s[%d] %q: merge_access_level: %w", ErrParse, section, i, r.Name, err)
		}
		if _, err := Resolve(string(r.PushAccessLevel)); err != nil {
			return fmt.Errorf("%w: %s[%d] %q: push_access_level: %w", ErrParse, section, i, r.Name, err)
		}
		if err := r.EnsureCompiled(); err != nil {
			return fmt.Errorf("%w: %s[%d]: %v", ErrParse, section, i, err)
		}
	}
	return nil
}

// SampleYAML returns a commented starter policy for the init command.
func SampleYAML() string {
	return `# glprotect protection policy
# Generated by: glprotect init
#
# Rule names are literal or glob patterns. A "*" matches any run of
# characters; matching is case-sensitive and covers the whole name.
# GitLab stores wildcard protections verbatim, so each rule name below
# becomes exactly one protection entry per project.
#
# Access levels (lowest to highest):
#   no_access, minimal_access, guest, reporter, developer,
#   maintainer, owner, admin

branches:
  - name: main
    merge_access_level: maintainer
    push_access_level: no_access
  - name: "release/*"
    merge_access_level: maintainer
    push_access_level: maintainer

# Protected tags take a single create access level; glprotect sends the
# push_access_level as the create level. merge_access_level is still
# required for schema uniformity.
tags:
  - name: "v*"
    merge_access_level: maintainer
    push_access_level: maintainer
`
}
