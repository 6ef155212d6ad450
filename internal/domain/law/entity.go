// Package law models civil-code citations: extraction of article numbers
// from free text, parsing of the statute corpus, occurrence aggregation over
// retrieved cases and the templated law section of a draft.
package law

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Citation is one civil-code article. Number is "184" or "191-2".
type Citation struct {
	Number  string `json:"number"`
	Content string `json:"content"`
}

// Body returns the article text after the first full-width or ASCII colon,
// or the whole content when there is none.
func (c Citation) Body() string {
	for _, sep := range []string{"：", ":"} {
		if i := strings.Index(c.Content, sep); i >= 0 {
			return strings.TrimSpace(c.Content[i+len(sep):])
		}
	}
	return strings.TrimSpace(c.Content)
}

var (
	numberRe = regexp.MustCompile(`第(\d+(?:-\d+)?)\s*條`)
	headerRe = regexp.MustCompile(`第(\d+(?:-\d+)?)\s*條[：:]\s*`)
)

// ExtractNumbers reads the article numbers of a comma separated list such as
// "民法第184條第1項前段,第191-2條". Each item contributes at most one number.
func ExtractNumbers(usedLaws string) []string {
	var out []string
	for _, item := range strings.Split(usedLaws, ",") {
		if m := numberRe.FindStringSubmatch(strings.TrimSpace(item)); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// FindNumbers returns every distinct article number cited anywhere in text,
// in order of first appearance. It reads free prose such as a law section.
func FindNumbers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range numberRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}

// ParseCorpus splits statute text into citations. Each "第N條：" header starts
// an article that runs to the next header. Content is normalised to
// "第N條：<text>". A number seen twice keeps its last text.
func ParseCorpus(text string) []Citation {
	locs := headerRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]Citation, 0, len(locs))
	seen := make(map[string]int, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		number := text[loc[2]:loc[3]]
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		c := Citation{Number: number, Content: "第" + number + "條：" + body}
		if j, ok := seen[number]; ok {
			out[j] = c
			continue
		}
		seen[number] = len(out)
		out = append(out, c)
	}
	return out
}

// numericKey turns "191-2" into [191 2]. Non-numeric parts sort as 0.
func numericKey(number string) []int {
	parts := strings.Split(number, "-")
	key := make([]int, len(parts))
	for i, p := range parts {
		key[i], _ = strconv.Atoi(strings.TrimSpace(p))
	}
	return key
}

// CompareNumbers orders article numbers by their numeric components, so
// "184" < "191" < "191-2" < "193".
func CompareNumbers(a, b string) int {
	ka, kb := numericKey(a), numericKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if ka[i] != kb[i] {
			if ka[i] < kb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return strings.Compare(a, b)
}

// SortNumbers sorts numbers in place by CompareNumbers.
func SortNumbers(numbers []string) {
	sort.SliceStable(numbers, func(i, j int) bool { return CompareNumbers(numbers[i], numbers[j]) < 0 })
}

// SortCitations sorts citations in place by article number.
func SortCitations(cs []Citation) {
	sort.SliceStable(cs, func(i, j int) bool { return CompareNumbers(cs[i].Number, cs[j].Number) < 0 })
}
