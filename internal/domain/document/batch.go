package document

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const maxRecordBytes = 1 << 20

// Report is the validation outcome of one record.
type Report struct {
	Line      int       `json:"line"`
	Valid     bool      `json:"valid"`
	Message   string    `json:"message"`
	Marker    string    `json:"marker,omitempty"`
	Violation Violation `json:"violation,omitempty"`
	Position  *int      `json:"position,omitempty"`
}

// Record is one line of a batch file: a JSON string, a JSON object with a
// "text" field, or raw text. Raw lines keep their literal content, so
// section breaks must be spaces rather than newlines.
func Record(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if json.Unmarshal([]byte(trimmed), &s) == nil {
			return s
		}
	case strings.HasPrefix(trimmed, "{"):
		var obj struct {
			Text string `json:"text"`
		}
		if json.Unmarshal([]byte(trimmed), &obj) == nil {
			return obj.Text
		}
	}
	return line
}

// Check validates one text and reports why it fails, if it does.
func (p *Parser) Check(line int, text string) Report {
	if _, err := p.Parse(text); err != nil {
		r := Report{Line: line, Message: err.Error()}
		var fe *FormatError
		if errors.As(err, &fe) {
			r.Marker, r.Violation = fe.Marker, fe.Violation
			if fe.Position >= 0 {
				pos := fe.Position
				r.Position = &pos
			}
		}
		return r
	}
	return Report{Line: line, Valid: true, Message: "格式正確"}
}

// ValidateRecords checks every non-blank line of r. Line numbers are
// 1-based and count blank lines.
func (p *Parser) ValidateRecords(r io.Reader) ([]Report, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRecordBytes)

	var reports []Report
	line := 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		reports = append(reports, p.Check(line, Record(sc.Text())))
	}
	return reports, sc.Err()
}

// Summarize counts valid and invalid reports.
func Summarize(reports []Report) (valid, invalid int) {
	for _, r := range reports {
		if r.Valid {
			valid++
		} else {
			invalid++
		}
	}
	return valid, invalid
}
