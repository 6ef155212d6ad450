package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/ingestion"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// NewIngestCmd creates the ingest command tree.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load lawyer inputs, indictments or the statute corpus",
	}
	cmd.AddCommand(
		newIngestLawyerCmd(),
		newIngestIndictmentCmd(),
		newIngestIndictmentsCmd(),
		newIngestLawsCmd(),
	)
	return cmd
}

func newIngestLawyerCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "lawyer [text]",
		Short: "Index a lawyer input (一、 / 二、 / 三、) as a new case",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, firstArg(args), file)
			if err != nil {
				return err
			}
			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				res, err := svc.Ingester.IngestLawyerInput(ctx, text)
				if err != nil {
					return err
				}
				return PrintResult(cmd, res)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a file, - for stdin")
	return cmd
}

func newIngestIndictmentCmd() *cobra.Command {
	var file, usedLaws string
	cmd := &cobra.Command{
		Use:   "indictment [text]",
		Short: "Store one indictment in the case graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, firstArg(args), file)
			if err != nil {
				return err
			}
			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				res, err := svc.Ingester.IngestIndictment(ctx, ingestion.IndictmentRequest{Text: text, UsedLaws: usedLaws})
				if err != nil {
					return err
				}
				return PrintResult(cmd, res)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a file, - for stdin")
	cmd.Flags().StringVar(&usedLaws, "used-laws", "", "cited statutes, e.g. 民法第184條、第191-2條")
	return cmd
}

func newIngestIndictmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indictments <file.jsonl>",
		Short: `Store a batch of indictments, one {"text","used_laws"} object per line`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readIndictments(args[0])
			if err != nil {
				return err
			}
			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				items, err := svc.Ingester.IngestIndictments(ctx, reqs)
				failed := 0
				for _, it := range items {
					if it.Error != "" {
						failed++
					}
				}
				if cliCtx, ctxErr := GetCLIContext(cmd); ctxErr == nil {
					cliCtx.Logger.Info("Batch ingestion finished",
						logging.Int("requested", len(reqs)),
						logging.Int("processed", len(items)),
						logging.Int("rejected", failed))
				}
				if printErr := PrintResult(cmd, batchTable(items)); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	return cmd
}

func newIngestLawsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "laws",
		Short: "Load the statute corpus (第N條：text entries)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := readInput(cmd, "", file)
			if err != nil {
				return err
			}
			return withServices(cmd, func(ctx context.Context, svc *Services) error {
				n, err := svc.Ingester.IngestLaws(ctx, corpus)
				if err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("%d laws stored", n))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "corpus file, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readIndictments parses a JSON-lines batch. Blank lines are skipped.
func readIndictments(path string) ([]ingestion.IndictmentRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "open %s", path)
	}
	defer f.Close()

	var reqs []ingestion.IndictmentRequest
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var req ingestion.IndictmentRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "%s:%d", path, line)
		}
		reqs = append(reqs, req)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "read %s", path)
	}
	if len(reqs) == 0 {
		return nil, errors.Newf(errors.ErrCodeBadRequest, "%s contains no indictments", path)
	}
	return reqs, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

type batchTable []ingestion.BatchItem

func (b batchTable) TableHeaders() []string { return []string{"#", "CASE", "LAWS", "ERROR"} }

func (b batchTable) TableRows() [][]string {
	rows := make([][]string, 0, len(b))
	for _, it := range b {
		row := []string{strconv.Itoa(it.Index), "", "", truncate(it.Error, 60)}
		if it.Result != nil {
			row[1] = strconv.FormatInt(it.Result.CaseID, 10)
			row[2] = strings.Join(it.Result.LawNumbers, ",")
		}
		rows = append(rows, row)
	}
	return rows
}
