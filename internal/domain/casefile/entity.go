// Package casefile holds accident case records and the case-type
// classification derived from the parties of a case.
package casefile

import (
	"regexp"
	"strings"
	"time"
)

// Base case types by party count.
const (
	TypeSingleParties       = "單純原被告各一"
	TypeMultiplePlaintiffs  = "數名原告"
	TypeMultipleDefendants  = "數名被告"
	TypeMultipleBothParties = "原被告皆數名"
)

// Liability suffixes appended to the base type. Only the first applicable
// one is used, in this order.
const (
	SuffixMinorDefendant    = "+§187未成年案型"
	SuffixEmployeeDefendant = "+§188僱用人案型"
	SuffixAnimalCaused      = "+§190動物案型"
)

// SourceIndictment marks case nodes created from a reference indictment.
const SourceIndictment = "indictment"

// CaseRecord is one stored accident case.
type CaseRecord struct {
	CaseID    int64     `json:"case_id"`
	RawText   string    `json:"case_text"`
	CaseType  string    `json:"case_type"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NextCaseID returns the id following max. ok is false for an empty store,
// in which case the first id is 0.
func NextCaseID(max int64, ok bool) int64 {
	if !ok {
		return 0
	}
	return max + 1
}

// Parties is what the extraction prompts report about an accident.
type Parties struct {
	Plaintiffs        []string `json:"plaintiffs"`
	Defendants        []string `json:"defendants"`
	MinorDefendant    bool     `json:"minor_defendant"`
	EmployeeDefendant bool     `json:"employee_defendant"`
	AnimalCaused      bool     `json:"animal_caused"`
}

// CaseType combines the party-count type with the first applicable
// liability suffix.
func (p Parties) CaseType() string {
	var base string
	np, nd := len(p.Plaintiffs), len(p.Defendants)
	switch {
	case np <= 1 && nd <= 1:
		base = TypeSingleParties
	case np > 1 && nd <= 1:
		base = TypeMultiplePlaintiffs
	case np <= 1 && nd > 1:
		base = TypeMultipleDefendants
	default:
		base = TypeMultipleBothParties
	}

	switch {
	case p.MinorDefendant:
		return base + SuffixMinorDefendant
	case p.EmployeeDefendant:
		return base + SuffixEmployeeDefendant
	case p.AnimalCaused:
		return base + SuffixAnimalCaused
	}
	return base
}

// Labels written by the extraction prompts.
const (
	labelPlaintiffs = "原告:"
	labelMinor      = "被告是否為未成年人"
	labelEmployee   = "被告是否為受僱人"
	labelAnimal     = "車禍是否由動物造成"
)

var (
	plaintiffsRe = regexp.MustCompile(`原告[:：]([\p{Han}A-Za-z0-9○·．,、]+)`)
	defendantsRe = regexp.MustCompile(`被告[:：]([\p{Han}A-Za-z0-9○·．,、]+)`)
	nameSepRe    = regexp.MustCompile(`[,、]`)
)

// ParseParties reads the combined replies of the extraction prompts:
//
//	原告:甲,乙
//	被告:丙
//	被告是否為未成年人:否
//	被告是否為受僱人:是
//	車禍是否由動物造成:否
func ParseParties(info string) Parties {
	return Parties{
		Plaintiffs:        splitNames(plaintiffsRe, info),
		Defendants:        splitNames(defendantsRe, info),
		MinorDefendant:    answeredYes(info, labelMinor),
		EmployeeDefendant: answeredYes(info, labelEmployee),
		AnimalCaused:      answeredYes(info, labelAnimal),
	}
}

func splitNames(re *regexp.Regexp, info string) []string {
	m := re.FindStringSubmatch(info)
	if m == nil {
		return nil
	}
	var names []string
	for _, n := range nameSepRe.Split(m[1], -1) {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// answeredYes reports whether the first 是/否 after label on its line is 是.
func answeredYes(info, label string) bool {
	i := strings.Index(info, label)
	if i < 0 {
		return false
	}
	rest := info[i+len(label):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	for _, r := range rest {
		switch r {
		case '是':
			return true
		case '否':
			return false
		}
	}
	return false
}

// PlaintiffsLine returns the "原告:..." line of the extraction reply, or "".
func PlaintiffsLine(info string) string {
	for _, line := range strings.Split(info, "\n") {
		if line = strings.TrimSpace(line); strings.HasPrefix(line, labelPlaintiffs) {
			return line
		}
	}
	return ""
}
