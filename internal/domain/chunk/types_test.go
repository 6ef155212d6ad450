package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, "12-fact-3", Chunk{CaseID: 12, Type: TypeFact, Sequence: 3}.ID())
	assert.Equal(t, "12-full", Chunk{CaseID: 12, Type: TypeFull, Sequence: 9}.ID())
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"fact": TypeFact, " LAW ": TypeLaw, "compensation": TypeCompensation,
		"injuries": TypeInjury, "injury": TypeInjury, "full": TypeFull,
	} {
		got, ok := ParseType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseType("other")
	assert.False(t, ok)
}

func TestCaseIDs_DistinctInRankOrder(t *testing.T) {
	hits := []SearchHit{{CaseID: 4}, {CaseID: 2}, {CaseID: 4}, {CaseID: 7}}
	assert.Equal(t, []int64{4, 2, 7}, CaseIDs(hits))
	assert.Empty(t, CaseIDs(nil))
}
