package drafting

import (
	"regexp"
	"strings"
)

// Verdict is the parsed outcome of a quality-check reply.
type Verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

var (
	resultLineRe = regexp.MustCompile(`(?i)\[?結果\]?\s*[:：]\s*\[?\s*(pass|fail)`)
	reasonRe     = regexp.MustCompile(`(?s)\[?理由\]?\s*[:：]\s*(.*)`)
)

// ParseVerdict reads a checker reply of the form
//
//	[結果]: pass
//	[理由]: ...
//
// The result line wins when present. Otherwise any "fail" in the reply
// fails it, a bare "pass" passes it and a reply with neither fails.
func ParseVerdict(reply string) Verdict {
	text := strings.TrimSpace(stripThinking(reply))
	v := Verdict{Reason: text}
	if m := reasonRe.FindStringSubmatch(text); m != nil {
		if r := strings.TrimSpace(m[1]); r != "" {
			v.Reason = r
		}
	}

	if m := resultLineRe.FindStringSubmatch(text); m != nil {
		v.Passed = strings.EqualFold(m[1], "pass")
		return v
	}
	lower := strings.ToLower(text)
	v.Passed = !strings.Contains(lower, "fail") && strings.Contains(lower, "pass")
	return v
}

func failed(reason string) Verdict { return Verdict{Reason: reason} }
