// Package cli implements the tlrag command line: ingestion, drafting,
// search, run history and offline format validation.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/drafting"
	"github.com/turtacn/TrafficLaw-RAG/internal/application/ingestion"
	"github.com/turtacn/TrafficLaw-RAG/internal/application/retrieval"
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// Drafter is the drafting service as the CLI uses it.
type Drafter interface {
	Draft(ctx context.Context, req drafting.Request) (*drafting.Result, error)
	Run(ctx context.Context, id string) (*draft.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]*draft.Run, error)
}

// Ingester is the ingestion service as the CLI uses it.
type Ingester interface {
	IngestLawyerInput(ctx context.Context, text string) (*ingestion.LawyerInputResult, error)
	IngestIndictment(ctx context.Context, req ingestion.IndictmentRequest) (*ingestion.IndictmentResult, error)
	IngestIndictments(ctx context.Context, reqs []ingestion.IndictmentRequest) ([]ingestion.BatchItem, error)
	IngestLaws(ctx context.Context, corpus string) (int, error)
}

// Retriever is the retrieval service as the CLI uses it.
type Retriever interface {
	Search(ctx context.Context, req retrieval.Request) ([]chunk.SearchHit, error)
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// Services are the connected application services. Close releases the
// stores behind them.
type Services struct {
	Drafter   Drafter
	Ingester  Ingester
	Retriever Retriever
	Close     func(ctx context.Context)
}

// ServicesFactory connects the stores for one command invocation.
type ServicesFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Services, error)

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	EnvFiles     []string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
// Services are connected on first use so that validate and version work
// without any store.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration

	factory  ServicesFactory
	once     sync.Once
	services *Services
	err      error
}

// Services connects the application services once per invocation.
func (c *CLIContext) Services(ctx context.Context) (*Services, error) {
	c.once.Do(func() {
		if c.factory == nil {
			c.err = errors.New(errors.ErrCodeNotImplemented, "no service factory configured")
			return
		}
		c.services, c.err = c.factory(ctx, c.Config, c.Logger)
	})
	return c.services, c.err
}

func (c *CLIContext) close() {
	if c.services == nil || c.services.Close == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.services.Close(ctx)
}

// NewRootCommand creates the root command with all global flags and
// subcommands. factory may be nil for commands that need no stores.
func NewRootCommand(factory ServicesFactory) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tlrag",
		Short: "Traffic-accident indictment drafting with retrieval-augmented generation",
		Long: "tlrag ingests past indictments, lawyer inputs and the statute corpus into a\n" +
			"case graph and a vector index, then drafts new indictments from similar cases.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, factory)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: TLRAG_ environment only)")
	pf.StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files loaded before the config (default: .env)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "per-command timeout")

	cmd.AddCommand(
		NewIngestCmd(),
		NewDraftCmd(),
		NewSearchCmd(),
		NewRunsCmd(),
		NewValidateCmd(),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, factory ServicesFactory) error {
	cfg, err := config.LoadWithEnvFiles(opts.ConfigPath, opts.EnvFiles...)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		Timeout:      opts.Timeout,
		factory:      factory,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initLogger writes console logs to stderr so stdout stays parseable.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = strings.ToLower(opts.LogLevel)
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeValidation, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeValidation, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext bounds the command by the --timeout flag.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cliCtx, err := GetCLIContext(cmd); err == nil && cliCtx.Timeout > 0 {
		return context.WithTimeout(ctx, cliCtx.Timeout)
	}
	return context.WithCancel(ctx)
}

// withServices runs fn with connected services under the command timeout
// and releases the stores afterwards.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *Services) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	svc, err := cliCtx.Services(ctx)
	if err != nil {
		return err
	}
	defer cliCtx.close()
	return fn(ctx, svc)
}

// Execute is the main entry point for the CLI application.
func Execute(factory ServicesFactory) error {
	rootCmd := NewRootCommand(factory)
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tlrag %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// readInput returns the text given inline, or the contents of path, where
// "-" means stdin.
func readInput(cmd *cobra.Command, inline, path string) (string, error) {
	if inline != "" && path != "" {
		return "", errors.New(errors.ErrCodeBadRequest, "give either the text or --file, not both")
	}
	if inline != "" {
		return inline, nil
	}
	if path == "" {
		return "", errors.New(errors.ErrCodeBadRequest, "no input: pass the text or --file")
	}

	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrCodeBadRequest, "open %s", path)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeBadRequest, "read %s", path)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", errors.New(errors.ErrCodeBadRequest, "input is empty")
	}
	return string(b), nil
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}

	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// printText prints strings and Stringers as they are and everything else
// as JSON.
func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		return printJSON(cmd, data)
	}
	return nil
}

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// printTable outputs data as a table if it implements tableProvider,
// otherwise falls back to text.
func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned table. Widths count
// runes, so CJK cells are padded by character rather than by byte.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if w := width(row[i]); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padRight(h, colWidths[i]))
	}
	sb.WriteString("\n")

	for i, w := range colWidths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")

	for _, row := range rows {
		for i := 0; i < len(headers); i++ {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			sb.WriteString(padRight(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func width(s string) int { return len([]rune(s)) }

func padRight(s string, w int) string {
	if width(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-width(s))
}

// truncate shortens s to n runes for table cells.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
