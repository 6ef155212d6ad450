package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/drafting"
)

type draftOptions struct {
	file             string
	searchType       string
	topK             int
	lawThreshold     int
	referenceCase    int64
	filterByCaseType bool
}

// NewDraftCmd creates the draft command. The query is a lawyer input with
// 一、 (facts) / 二、 (injuries) / 三、 (compensation) sections.
func NewDraftCmd() *cobra.Command {
	opts := &draftOptions{}
	cmd := &cobra.Command{
		Use:   "draft [query]",
		Short: "Draft an indictment from a lawyer input",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readInput(cmd, firstArg(args), opts.file)
			if err != nil {
				return err
			}
			req := drafting.Request{
				Query:            query,
				SearchType:       opts.searchType,
				TopK:             opts.topK,
				LawThreshold:     opts.lawThreshold,
				FilterByCaseType: opts.filterByCaseType,
			}
			if cmd.Flags().Changed("reference-case") {
				ref := opts.referenceCase
				req.ReferenceCaseID = &ref
			}

			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				res, err := svc.Drafter.Draft(ctx, req)
				if res != nil {
					if printErr := PrintResult(cmd, draftOutput{res}); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the query from a file, - for stdin")
	f.StringVar(&opts.searchType, "search-type", "", "chunk type to search: full, fact, law, compensation, injury (default from config)")
	f.IntVarP(&opts.topK, "top-k", "k", 0, "number of similar cases (default from config)")
	f.IntVar(&opts.lawThreshold, "law-threshold", 0, "minimum citations for a law to be used (default from config)")
	f.Int64Var(&opts.referenceCase, "reference-case", 0, "use this case id as the reference indictment")
	f.BoolVar(&opts.filterByCaseType, "same-case-type", false, "only retrieve cases of the same case type")
	return cmd
}

// draftOutput prints the indictment text in text mode and the full result
// as JSON.
type draftOutput struct{ *drafting.Result }

func (d draftOutput) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s: %s\n", d.RunID, d.Status)
	if d.Draft == nil {
		return strings.TrimRight(sb.String(), "\n")
	}
	if len(d.Draft.Degraded) > 0 {
		stages := make([]string, len(d.Draft.Degraded))
		for i, s := range d.Draft.Degraded {
			stages[i] = string(s)
		}
		fmt.Fprintf(&sb, "degraded stages: %s\n", strings.Join(stages, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(d.Draft.Text)
	return sb.String()
}
