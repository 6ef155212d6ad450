package compensation

import (
	"regexp"
	"strconv"
	"strings"
)

// FormatAmount renders an amount as a whole number without separators.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// groupThousands renders digits with comma separators: 1234567 -> 1,234,567.
func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func plaintiffLabel(id string) string {
	if strings.HasPrefix(id, SlotPrefix) {
		return id
	}
	return SlotPrefix + id
}

// FormatSummary renders the totals line handed to the conclusion stage:
// "總計N元" for the default entry, "應賠償[原告X]之損害，總計N元" otherwise,
// joined with "；".
func FormatSummary(totals Totals) string {
	parts := make([]string, 0, len(totals))
	for _, t := range totals {
		amount := FormatAmount(t.Amount)
		if t.PlaintiffID == DefaultKey {
			parts = append(parts, "總計"+amount+"元")
			continue
		}
		parts = append(parts, "應賠償["+plaintiffLabel(t.PlaintiffID)+"]之損害，總計"+amount+"元")
	}
	return strings.Join(parts, "；")
}

// containsAmount reports whether amount occurs in section as a whole number,
// not as part of a longer one.
func containsAmount(section, amount string) bool {
	re := regexp.MustCompile(`(?:^|[^\d,])` + regexp.QuoteMeta(amount) + `(?:[^\d,]|$)`)
	return re.MatchString(section)
}

// MissingTotals returns the totals whose amount appears in section neither
// as plain digits nor comma grouped.
func MissingTotals(section string, totals Totals) []Total {
	var missing []Total
	for _, t := range totals {
		plain := FormatAmount(t.Amount)
		if containsAmount(section, plain) || containsAmount(section, groupThousands(plain)) {
			continue
		}
		missing = append(missing, t)
	}
	return missing
}
