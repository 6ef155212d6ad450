package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
)

// NewRunsCmd creates the run history commands.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect drafting run history",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent drafting runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				runs, err := svc.Drafter.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				return PrintResult(cmd, runTable(runs))
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs")

	get := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one drafting run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				run, err := svc.Drafter.Run(ctx, args[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, run)
			})
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

type runTable []*draft.Run

func (r runTable) TableHeaders() []string {
	return []string{"ID", "STATUS", "STARTED", "DURATION", "CASE TYPE", "DEGRADED"}
}

func (r runTable) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, run := range r {
		rows = append(rows, []string{
			run.ID,
			string(run.Status),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Duration().String(),
			run.CaseType,
			strings.Join(run.DegradedStages, ","),
		})
	}
	return rows
}

func (r runTable) String() string {
	if len(r) == 0 {
		return "no drafting runs"
	}
	return strings.TrimRight(FormatTable(r.TableHeaders(), r.TableRows()), "\n")
}
