package casefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParties(t *testing.T) {
	info := "原告:王小明、李大華\n被告:陳○○\n被告是否為未成年人:否\n被告是否為受僱人:是\n車禍是否由動物造成:否\n"
	p := ParseParties(info)

	assert.Equal(t, []string{"王小明", "李大華"}, p.Plaintiffs)
	assert.Equal(t, []string{"陳○○"}, p.Defendants)
	assert.False(t, p.MinorDefendant)
	assert.True(t, p.EmployeeDefendant)
	assert.False(t, p.AnimalCaused)
	assert.Equal(t, TypeMultiplePlaintiffs+SuffixEmployeeDefendant, p.CaseType())
}

func TestParseParties_FullWidthColonAndSpaces(t *testing.T) {
	p := ParseParties("原告：甲,乙,丙\n被告：丁、戊\n被告是否為未成年人: 是\n")
	assert.Equal(t, []string{"甲", "乙", "丙"}, p.Plaintiffs)
	assert.Equal(t, []string{"丁", "戊"}, p.Defendants)
	assert.True(t, p.MinorDefendant)
}

func TestParseParties_MissingLines(t *testing.T) {
	p := ParseParties("無法判斷")
	assert.Empty(t, p.Plaintiffs)
	assert.Empty(t, p.Defendants)
	assert.Equal(t, TypeSingleParties, p.CaseType())
}

func TestAnsweredYes_OnlyOwnLine(t *testing.T) {
	info := "被告是否為未成年人:\n被告是否為受僱人:是"
	assert.False(t, answeredYes(info, labelMinor))
	assert.True(t, answeredYes(info, labelEmployee))
}

func TestPartiesCaseType(t *testing.T) {
	one, two := []string{"a"}, []string{"a", "b"}
	cases := []struct {
		name string
		p    Parties
		want string
	}{
		{"single", Parties{Plaintiffs: one, Defendants: one}, TypeSingleParties},
		{"plaintiffs", Parties{Plaintiffs: two, Defendants: one}, TypeMultiplePlaintiffs},
		{"defendants", Parties{Plaintiffs: one, Defendants: two}, TypeMultipleDefendants},
		{"both", Parties{Plaintiffs: two, Defendants: two}, TypeMultipleBothParties},
		{"minor wins", Parties{Plaintiffs: one, Defendants: one, MinorDefendant: true, EmployeeDefendant: true, AnimalCaused: true}, TypeSingleParties + SuffixMinorDefendant},
		{"employee before animal", Parties{Defendants: two, EmployeeDefendant: true, AnimalCaused: true}, TypeMultipleDefendants + SuffixEmployeeDefendant},
		{"animal", Parties{AnimalCaused: true}, TypeSingleParties + SuffixAnimalCaused},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.p.CaseType())
		})
	}
}

func TestPlaintiffsLine(t *testing.T) {
	assert.Equal(t, "原告:甲,乙", PlaintiffsLine("說明\n 原告:甲,乙\n被告:丙"))
	assert.Equal(t, "", PlaintiffsLine("被告:丙"))
}

func TestNextCaseID(t *testing.T) {
	assert.Equal(t, int64(0), NextCaseID(0, false))
	assert.Equal(t, int64(0), NextCaseID(-1, true))
	assert.Equal(t, int64(42), NextCaseID(41, true))
}
