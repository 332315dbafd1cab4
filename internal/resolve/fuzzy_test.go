package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdentical(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Ministry of Defence", "Ministry of Defence"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("Ministry of Defence", "ministry OF defence"), 1e-9)
}

func TestSimilarityDisjoint(t *testing.T) {
	assert.Zero(t, Similarity("abc", "xyz"))
	assert.Zero(t, Similarity("", "anything"))
	assert.Zero(t, Similarity("anything", ""))
}

func TestSimilarityNearMatch(t *testing.T) {
	// Word order does not matter for trigram sets.
	s := Similarity("Defence Ministry", "Ministry Defence")
	assert.InDelta(t, 1.0, s, 1e-9)

	// A typo keeps most trigrams shared.
	s = Similarity("Department of Transport", "Departmnt of Transport")
	assert.Greater(t, s, 0.6)
	assert.Less(t, s, 1.0)
}

func TestSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"NHS England", "NHS Englnd"},
		{"City Council", "County Council"},
		{"a", "ab"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
