package compensation

import (
	"regexp"
	"strconv"
	"strings"
)

// Patterns are tried in order; the first match wins. The amount group takes
// either a comma-grouped or a plain run of digits so 1234元 reads as 1234.
var referenceAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:共計|總計|合計|統計)(?:新臺幣)?\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*元`),
	regexp.MustCompile(`(?:賠償金額)?(?:合計|共計|總計)\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*元`),
	regexp.MustCompile(`賠償(?:金額)?\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*元`),
	regexp.MustCompile(`合計\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*元`),
}

// ExtractAmount returns the total claimed in a conclusion text.
func ExtractAmount(conclusion string) (float64, bool) {
	for _, re := range referenceAmountPatterns {
		m := re.FindStringSubmatch(conclusion)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

// AverageAmount averages the amounts found in conclusions, skipping texts
// with none. It returns 0 when nothing was found.
func AverageAmount(conclusions []string) float64 {
	var sum float64
	var n int
	for _, c := range conclusions {
		if v, ok := ExtractAmount(c); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
