package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/retrieval"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
)

type searchOptions struct {
	file         string
	searchType   string
	topK         int
	lawThreshold int
	caseType     string
	retrieve     bool
}

// NewSearchCmd creates the search command. With --retrieve it also
// resolves the laws, compensation amounts and reference case.
func NewSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find cases similar to a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readInput(cmd, firstArg(args), opts.file)
			if err != nil {
				return err
			}
			req := retrieval.Request{
				Query:        query,
				SearchType:   chunk.Type(opts.searchType),
				TopK:         opts.topK,
				LawThreshold: opts.lawThreshold,
				CaseType:     opts.caseType,
			}

			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				if opts.retrieve {
					res, err := svc.Retriever.Retrieve(ctx, req)
					if err != nil {
						return err
					}
					return PrintResult(cmd, res)
				}
				hits, err := svc.Retriever.Search(ctx, req)
				if err != nil {
					return err
				}
				return PrintResult(cmd, hitTable(hits))
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the query from a file, - for stdin")
	f.StringVar(&opts.searchType, "search-type", "", "chunk type to search (default from config)")
	f.IntVarP(&opts.topK, "top-k", "k", 0, "number of neighbours (default from config)")
	f.IntVar(&opts.lawThreshold, "law-threshold", 0, "minimum citations for a law (with --retrieve)")
	f.StringVar(&opts.caseType, "case-type", "", "only cases of this case type")
	f.BoolVar(&opts.retrieve, "retrieve", false, "resolve laws, amounts and the reference case")
	return cmd
}

type hitTable []chunk.SearchHit

func (h hitTable) TableHeaders() []string { return []string{"CASE", "TYPE", "SCORE", "TEXT"} }

func (h hitTable) TableRows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, hit := range h {
		rows = append(rows, []string{
			strconv.FormatInt(hit.CaseID, 10),
			string(hit.Type),
			fmt.Sprintf("%.4f", hit.Score),
			truncate(hit.Text, 40),
		})
	}
	return rows
}

func (h hitTable) String() string {
	if len(h) == 0 {
		return "no similar cases"
	}
	return strings.TrimRight(FormatTable(h.TableHeaders(), h.TableRows()), "\n")
}
