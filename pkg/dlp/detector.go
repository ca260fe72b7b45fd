// Package dlp masks personal data in the free-text notes of imported rows.
package dlp

import (
	"regexp"
	"sort"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Finding is one matched span of text.
type Finding struct {
	Type  string
	Start int
	End   int
}

type Detector struct {
	rules []compiledRule
}

func NewDetector(cfg RulesConfig) (*Detector, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Detector{rules: compiled}, nil
}

// Detect lists every rule match in text ordered by position.
func (d *Detector) Detect(text string) []Finding {
	if d == nil || text == "" {
		return nil
	}
	var findings []Finding
	for _, rule := range d.rules {
		for _, match := range rule.re.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{Type: rule.rule.Type, Start: match[0], End: match[1]})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })
	return findings
}

// Sanitize applies every rule's mask in order. A nil detector returns text
// unchanged.
func (d *Detector) Sanitize(text string) string {
	if d == nil {
		return text
	}
	masked := text
	for _, rule := range d.rules {
		masked = rule.re.ReplaceAllLiteralString(masked, rule.rule.Mask)
	}
	return masked
}
