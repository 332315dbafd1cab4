// Package resolve maps raw buyer-entity strings to canonical departments
// using a tiered pattern-matching strategy with confidence scoring.
package resolve

import (
	"regexp"
	"strings"
	"sync"

	"github.com/sells-group/tendersync/internal/model"
)

// Strategy evaluates one match type. The resolver runs strategies in a
// fixed priority order and returns the first rule that matches.
type Strategy interface {
	Type() model.MatchType
	Match(raw string, rule model.DepartmentMapping) bool
}

// ExactStrategy matches when the rule's pattern equals the raw string,
// case-sensitive as stored.
type ExactStrategy struct{}

func (ExactStrategy) Type() model.MatchType { return model.MatchExact }

func (ExactStrategy) Match(raw string, rule model.DepartmentMapping) bool {
	return raw == rule.SourcePattern
}

// ContainsStrategy matches when the case-folded raw string contains the
// case-folded pattern.
type ContainsStrategy struct{}

func (ContainsStrategy) Type() model.MatchType { return model.MatchContains }

func (ContainsStrategy) Match(raw string, rule model.DepartmentMapping) bool {
	pattern := strings.ToLower(strings.TrimSpace(rule.SourcePattern))
	if pattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(raw), pattern)
}

// RegexStrategy matches the raw string against the rule's pattern compiled
// as a regular expression. Invalid patterns never match. Not part of the
// default chain; rule authors opt in via resolver options.
type RegexStrategy struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

func (*RegexStrategy) Type() model.MatchType { return model.MatchRegex }

func (s *RegexStrategy) Match(raw string, rule model.DepartmentMapping) bool {
	re := s.compile(rule.SourcePattern)
	if re == nil {
		return false
	}
	return re.MatchString(raw)
}

func (s *RegexStrategy) compile(pattern string) *regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		s.cache = make(map[string]*regexp.Regexp)
	}
	if re, ok := s.cache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	s.cache[pattern] = re
	return re
}

// fuzzyThreshold mirrors the pg_trgm similarity cutoff used for entity
// cross-referencing.
const fuzzyThreshold = 0.6

// FuzzyStrategy matches on trigram-set similarity between the normalized
// raw string and the normalized pattern. Not part of the default chain.
type FuzzyStrategy struct{}

func (FuzzyStrategy) Type() model.MatchType { return model.MatchFuzzy }

func (FuzzyStrategy) Match(raw string, rule model.DepartmentMapping) bool {
	return Similarity(raw, rule.SourcePattern) >= fuzzyThreshold
}
