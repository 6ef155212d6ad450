// Package compensation handles monetary content of drafts: the
// <calculate> tags emitted by the generator, reference amounts mined from
// stored conclusions and the formatted totals of the conclusion section.
package compensation

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultKey is the identifier of a tag that names no plaintiff.
const DefaultKey = "default"

// SlotPrefix prefixes identifiers assigned on collision.
const SlotPrefix = "原告"

var (
	calculateTagRe = regexp.MustCompile(`(?s)<calculate>(.*?)</calculate>`)
	slotRe         = regexp.MustCompile(`原告(\d+)(?:\s|$)`)
	namedRe        = regexp.MustCompile(`原告([^\s\d<>:：,，、]+)`)
	leadingTokenRe = regexp.MustCompile(`^\s*([^\s\d<>:：,，、]+)`)
	numberRe       = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
)

// Entry is one parsed <calculate> tag.
type Entry struct {
	PlaintiffID string  `json:"plaintiff_id"`
	Amounts     []float64
}

// Sum adds up the entry's amounts.
func (e Entry) Sum() float64 {
	var total float64
	for _, a := range e.Amounts {
		total += a
	}
	return total
}

// Total is the summed amount for one plaintiff.
type Total struct {
	PlaintiffID string  `json:"plaintiff_id"`
	Amount      float64 `json:"amount"`
}

// Totals is an insertion-ordered set of per-plaintiff totals with unique ids.
type Totals []Total

func (t Totals) index(id string) int {
	for i, e := range t {
		if e.PlaintiffID == id {
			return i
		}
	}
	return -1
}

// Get returns the amount for id.
func (t Totals) Get(id string) (float64, bool) {
	if i := t.index(id); i >= 0 {
		return t[i].Amount, true
	}
	return 0, false
}

// Has reports whether id is present.
func (t Totals) Has(id string) bool { return t.index(id) >= 0 }

// Map copies the totals into a map.
func (t Totals) Map() map[string]float64 {
	out := make(map[string]float64, len(t))
	for _, e := range t {
		out[e.PlaintiffID] = e.Amount
	}
	return out
}

// nextSlot returns the first 原告N not yet taken.
func (t Totals) nextSlot() string {
	for n := 1; ; n++ {
		id := SlotPrefix + strconv.Itoa(n)
		if !t.Has(id) {
			return id
		}
	}
}

// ParseTags extracts every <calculate> span without resolving collisions.
// Names stop at the first digit, so an amount written right after a name
// is still summed. A slot identifier such as 原告1 is removed from the span
// before numbers are read and does not contribute 1 to the sum.
func ParseTags(text string) []Entry {
	matches := calculateTagRe.FindAllStringSubmatch(text, -1)
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		id, rest := identify(m[1])
		entries = append(entries, Entry{PlaintiffID: id, Amounts: parseNumbers(rest)})
	}
	return entries
}

func identify(span string) (id, rest string) {
	loc := namedRe.FindStringSubmatchIndex(span)
	if slot := slotRe.FindStringSubmatchIndex(span); slot != nil && (loc == nil || slot[0] < loc[0]) {
		loc = slot
	}
	if loc != nil {
		return span[loc[2]:loc[3]], span[:loc[0]] + " " + span[loc[1]:]
	}
	if loc := leadingTokenRe.FindStringSubmatchIndex(span); loc != nil {
		return span[loc[2]:loc[3]], span[loc[1]:]
	}
	return DefaultKey, span
}

func parseNumbers(s string) []float64 {
	var out []float64
	for _, raw := range numberRe.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Aggregate sums every <calculate> tag of text per plaintiff. Tags without
// any amount are skipped. Colliding identifiers, a repeated "default"
// included, are renamed to the next free 原告N instead of being merged.
// When more than one tag was found, a remaining "default" entry is renamed
// the same way.
func Aggregate(text string) Totals {
	entries := ParseTags(text)
	totals := make(Totals, 0, len(entries))
	for _, e := range entries {
		if len(e.Amounts) == 0 {
			continue
		}
		id := e.PlaintiffID
		if totals.Has(id) {
			id = totals.nextSlot()
		}
		totals = append(totals, Total{PlaintiffID: id, Amount: e.Sum()})
	}

	if len(entries) > 1 {
		if i := totals.index(DefaultKey); i >= 0 {
			totals[i].PlaintiffID = totals.nextSlot()
		}
	}
	return totals
}
