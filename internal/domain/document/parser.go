// Package document validates and splits sectioned legal texts: the four-part
// indictment and the three-part accident description submitted by users.
package document

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultIndictmentLeadTolerance = 3
	DefaultUserInputLeadTolerance  = 10
)

// markerMatch is where a marker was found. gap is the byte offset of the
// whitespace preceding it, or start when the marker needs none.
type markerMatch struct {
	label string
	start int
	gap   int
}

type marker struct {
	// label names the marker in messages before it is located.
	label   string
	missing string
	find    func(text string) (markerMatch, bool)
}

// plainMarker finds the first literal occurrence, trying alternatives in
// preference order.
func plainMarker(missing string, literals ...string) marker {
	return marker{
		label:   strings.Join(literals, "或"),
		missing: missing,
		find: func(text string) (markerMatch, bool) {
			for _, lit := range literals {
				if i := strings.Index(text, lit); i >= 0 {
					return markerMatch{label: lit, start: i, gap: i}, true
				}
			}
			return markerMatch{}, false
		},
	}
}

// spacedMarker finds the first occurrence of pattern immediately preceded by
// whitespace. Full-width spaces count as whitespace.
func spacedMarker(label, missing, pattern string) marker {
	re := regexp.MustCompile(`([\s\p{Zs}])(` + pattern + `)`)
	return marker{
		label:   label,
		missing: missing,
		find: func(text string) (markerMatch, bool) {
			loc := re.FindStringSubmatchIndex(text)
			if loc == nil {
				return markerMatch{}, false
			}
			return markerMatch{label: text[loc[4]:loc[5]], start: loc[4], gap: loc[2]}, true
		},
	}
}

// Layout describes one sectioned document shape.
type Layout struct {
	Name          string
	LeadTolerance int
	markers       []marker
}

// IndictmentLayout is 一、 / 二、 / （一） / 綜上所陳.
func IndictmentLayout(leadTolerance int) Layout {
	return Layout{
		Name:          "indictment",
		LeadTolerance: leadTolerance,
		markers: []marker{
			plainMarker("缺少「一、」標記", "一、"),
			spacedMarker("二、", "缺少「二、」標記或其前面沒有空格或換行", `二、`),
			spacedMarker("（一）", "缺少「（一）」或「(一)」標記或其前面沒有空格或換行", `[（(]一[）)]`),
			plainMarker("缺少「綜上所陳」或「綜上所述」標記", "綜上所陳", "綜上所述"),
		},
	}
}

// UserInputLayout is 一、 / 二、 / 三、.
func UserInputLayout(leadTolerance int) Layout {
	return Layout{
		Name:          "user_input",
		LeadTolerance: leadTolerance,
		markers: []marker{
			plainMarker("缺少「一、」標記", "一、"),
			spacedMarker("二、", "缺少「二、」標記或其前面沒有空格或換行", `二、`),
			spacedMarker("三、", "缺少「三、」標記或其前面沒有空格或換行", `三、`),
		},
	}
}

// Sections are the validated, trimmed parts of a document in marker order.
type Sections struct {
	Layout string
	Parts  []string
}

// Join concatenates the parts with sep.
func (s Sections) Join(sep string) string { return strings.Join(s.Parts, sep) }

// Indictment is the four-part layout.
type Indictment struct {
	Fact         string
	Law          string
	Compensation string
	Conclusion   string
}

// UserInput is the three-part layout.
type UserInput struct {
	AccidentFacts     string
	Injuries          string
	CompensationFacts string
}

// Parser validates and splits one Layout.
type Parser struct {
	layout Layout
}

func NewParser(layout Layout) *Parser { return &Parser{layout: layout} }

func NewIndictmentParser(leadTolerance int) *Parser {
	return NewParser(IndictmentLayout(leadTolerance))
}

func NewUserInputParser(leadTolerance int) *Parser {
	return NewParser(UserInputLayout(leadTolerance))
}

var partOrdinals = []string{"一", "二", "三", "四", "五"}

// Parse validates text and returns its sections. Checks run in a fixed
// order: empty text, missing markers, marker order, lead position, then
// empty sections. A section is empty when nothing but its marker remains
// after trimming. The first failure is returned as a *FormatError.
func (p *Parser) Parse(text string) (Sections, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Sections{}, &FormatError{Violation: ViolationEmptyText, Position: -1, Message: "空文本"}
	}

	found := make([]markerMatch, len(p.layout.markers))
	for i, m := range p.layout.markers {
		mm, ok := m.find(text)
		if !ok {
			return Sections{}, &FormatError{Marker: m.label, Violation: ViolationMissing, Position: -1, Message: m.missing}
		}
		found[i] = mm
	}

	for i := 1; i < len(found); i++ {
		if found[i].start <= found[i-1].start {
			return Sections{}, &FormatError{
				Marker:    found[i].label,
				Violation: ViolationOrder,
				Position:  runeOffset(text, found[i].start),
				Message:   "標記順序錯誤：" + describePositions(text, found),
			}
		}
	}

	if lead := runeOffset(text, found[0].start); lead > p.layout.LeadTolerance {
		return Sections{}, &FormatError{
			Marker:    found[0].label,
			Violation: ViolationPosition,
			Position:  lead,
			Message:   fmt.Sprintf("「%s」不在開頭附近，位置在 %d", found[0].label, lead),
		}
	}

	parts := make([]string, len(found))
	for i, m := range found {
		end := len(text)
		if i+1 < len(found) {
			end = found[i+1].gap
		}
		parts[i] = strings.TrimSpace(text[m.start:end])
		if strings.TrimSpace(parts[i][len(m.label):]) == "" {
			return Sections{}, &FormatError{
				Marker:    m.label,
				Violation: ViolationEmptySection,
				Position:  runeOffset(text, m.start),
				Message:   fmt.Sprintf("第%s部分（%s）內容為空", partOrdinals[i], m.label),
			}
		}
	}
	return Sections{Layout: p.layout.Name, Parts: parts}, nil
}

// ParseIndictment parses with the indictment layout.
func (p *Parser) ParseIndictment(text string) (Indictment, error) {
	s, err := p.Parse(text)
	if err != nil {
		return Indictment{}, err
	}
	if len(s.Parts) != 4 {
		return Indictment{}, fmt.Errorf("document: layout %q yields %d parts, want 4", s.Layout, len(s.Parts))
	}
	return Indictment{Fact: s.Parts[0], Law: s.Parts[1], Compensation: s.Parts[2], Conclusion: s.Parts[3]}, nil
}

// ParseUserInput parses with the user-input layout.
func (p *Parser) ParseUserInput(text string) (UserInput, error) {
	s, err := p.Parse(text)
	if err != nil {
		return UserInput{}, err
	}
	if len(s.Parts) != 3 {
		return UserInput{}, fmt.Errorf("document: layout %q yields %d parts, want 3", s.Layout, len(s.Parts))
	}
	return UserInput{AccidentFacts: s.Parts[0], Injuries: s.Parts[1], CompensationFacts: s.Parts[2]}, nil
}

func runeOffset(text string, byteOffset int) int {
	return utf8.RuneCountInString(text[:byteOffset])
}

func describePositions(text string, found []markerMatch) string {
	parts := make([]string, len(found))
	for i, m := range found {
		parts[i] = fmt.Sprintf("%s(%d)", m.label, runeOffset(text, m.start))
	}
	return strings.Join(parts, " ")
}

var (
	conclusionMarkers = []string{"綜上所陳", "綜上所述"}
	thirdSectionRe    = regexp.MustCompile(`[\s\p{Zs}]三、`)
	whitespaceRe      = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// ConclusionSection returns text from the first conclusion marker on,
// preferring 綜上所陳, or "" when neither marker is present.
func ConclusionSection(text string) string {
	for _, m := range conclusionMarkers {
		if i := strings.Index(text, m); i >= 0 {
			return text[i:]
		}
	}
	return ""
}

// TruncateBeforeClaims drops the compensation-facts part of a user input
// (whitespace followed by 三、) and removes all remaining whitespace.
func TruncateBeforeClaims(text string) string {
	if loc := thirdSectionRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return whitespaceRe.ReplaceAllString(text, "")
}
