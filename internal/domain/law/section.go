package law

import "strings"

// NoLaw replaces the citation list when no law passed the threshold.
const NoLaw = "NO LAW"

// BuildSection assembles the second part of an indictment from citations:
//
//	二、按「c1」、「c2」民法第n1條、第n2條分別定有明文。查被告因上開侵權行為，...
//
// Citations are used in the order given.
func BuildSection(citations []Citation) string {
	var b strings.Builder
	b.WriteString("二、按「")
	if len(citations) == 0 {
		b.WriteString(NoLaw)
		return b.String()
	}
	for i, c := range citations {
		if i > 0 {
			b.WriteString("、「")
		}
		b.WriteString(c.Body())
		b.WriteString("」")
	}
	b.WriteString("民法第")
	for i, c := range citations {
		if i > 0 {
			b.WriteString("、第")
		}
		b.WriteString(c.Number)
		b.WriteString("條")
	}
	b.WriteString("分別定有明文。查被告因上開侵權行為，使原告受有下列損害，依前揭規定，被告應負損害賠償責任：")
	return b.String()
}
