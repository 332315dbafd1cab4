package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/tendersync/internal/model"
)

func rule(mt model.MatchType, pattern string) model.DepartmentMapping {
	return model.DepartmentMapping{MatchType: mt, SourcePattern: pattern}
}

func TestExactStrategy(t *testing.T) {
	s := ExactStrategy{}
	assert.True(t, s.Match("Ministry of Defence", rule(model.MatchExact, "Ministry of Defence")))
	assert.False(t, s.Match("ministry of defence", rule(model.MatchExact, "Ministry of Defence")))
	assert.False(t, s.Match("Ministry of Defence UK", rule(model.MatchExact, "Ministry of Defence")))
}

func TestContainsStrategy(t *testing.T) {
	s := ContainsStrategy{}
	assert.True(t, s.Match("The Ministry of Defence (Procurement)", rule(model.MatchContains, "ministry of defence")))
	assert.True(t, s.Match("MINISTRY OF DEFENCE", rule(model.MatchContains, "Defence")))
	assert.False(t, s.Match("Home Office", rule(model.MatchContains, "Defence")))
	assert.False(t, s.Match("anything", rule(model.MatchContains, "   ")))
}

func TestRegexStrategy(t *testing.T) {
	s := &RegexStrategy{}
	assert.True(t, s.Match("NHS Trust North", rule(model.MatchRegex, `^NHS\s+Trust`)))
	assert.False(t, s.Match("Not NHS Trust", rule(model.MatchRegex, `^NHS\s+Trust`)))

	// Invalid patterns never match, and never match on the cached retry.
	bad := rule(model.MatchRegex, `([`)
	assert.False(t, s.Match("anything", bad))
	assert.False(t, s.Match("anything", bad))
}

func TestFuzzyStrategy(t *testing.T) {
	s := FuzzyStrategy{}
	assert.True(t, s.Match("Departmnt of Transport", rule(model.MatchFuzzy, "Department of Transport")))
	assert.False(t, s.Match("Home Office", rule(model.MatchFuzzy, "Department of Transport")))
}
