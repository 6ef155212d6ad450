package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// ValidationResult is the outcome of checking a batch file.
type ValidationResult struct {
	Path    string            `json:"path"`
	Kind    string            `json:"kind"`
	Valid   int               `json:"valid"`
	Invalid int               `json:"invalid"`
	Reports []document.Report `json:"reports"`
}

func (v ValidationResult) TableHeaders() []string {
	return []string{"LINE", "VALID", "MARKER", "POSITION", "MESSAGE"}
}

func (v ValidationResult) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Reports))
	for _, r := range v.Reports {
		pos := ""
		if r.Position != nil {
			pos = strconv.Itoa(*r.Position)
		}
		rows = append(rows, []string{strconv.Itoa(r.Line), strconv.FormatBool(r.Valid), r.Marker, pos, r.Message})
	}
	return rows
}

// String lists the invalid records followed by the totals.
func (v ValidationResult) String() string {
	out := ""
	for _, r := range v.Reports {
		if !r.Valid {
			out += fmt.Sprintf("line %d: %s\n", r.Line, r.Message)
		}
	}
	return out + fmt.Sprintf("%s: %d valid, %d invalid", v.Path, v.Valid, v.Invalid)
}

// NewValidateCmd creates the validate command. It needs no stores: each
// line of the file is checked against the indictment or lawyer-input
// layout.
func NewValidateCmd() *cobra.Command {
	var kind string
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check the section layout of every record in a file",
		Long: "Each non-blank line is one record: a JSON string, a JSON object with a\n" +
			"\"text\" field, or raw text.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			var p *document.Parser
			switch kind {
			case "indictment":
				p = document.NewIndictmentParser(cliCtx.Config.Parser.IndictmentTolerance())
			case "user_input":
				p = document.NewUserInputParser(cliCtx.Config.Parser.UserInputTolerance())
			default:
				return errors.Newf(errors.ErrCodeBadRequest, "unknown kind %q: use indictment or user_input", kind)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrapf(err, errors.ErrCodeBadRequest, "open %s", args[0])
			}
			defer f.Close()

			reports, err := p.ValidateRecords(f)
			if err != nil {
				return err
			}
			res := ValidationResult{Path: args[0], Kind: kind, Reports: reports}
			res.Valid, res.Invalid = document.Summarize(reports)
			if err := PrintResult(cmd, res); err != nil {
				return err
			}
			if strict && res.Invalid > 0 {
				return errors.Newf(errors.ErrCodeDocumentFormat, "%d of %d records are malformed", res.Invalid, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "indictment", "record layout: indictment or user_input")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any record is malformed")
	return cmd
}
