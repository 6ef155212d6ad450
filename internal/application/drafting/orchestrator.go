// Package drafting generates a four-part traffic-accident indictment with
// an explicit state machine: each generated part is checked by the model
// and regenerated within a bounded budget, the law section is built from a
// template and the damages totals are computed from <calculate> tags.
package drafting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/compensation"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Generator is the text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Input is everything a run drafts from.
type Input struct {
	Query          document.UserInput
	ReferenceFacts string
	Citations      []law.Citation
	AverageAmount  float64
	CaseType       string
	PlaintiffsLine string
}

// Draft is the outcome of a run. On failure the parts produced before the
// failing stage are kept.
type Draft struct {
	Summary      string              `json:"case_summary"`
	Facts        string              `json:"facts"`
	LawSection   string              `json:"law_section"`
	Compensation string              `json:"compensation"`
	CalcTags     string              `json:"calc_tags"`
	Totals       compensation.Totals `json:"totals"`
	Conclusion   string              `json:"conclusion"`
	Text         string              `json:"text"`
	State        State               `json:"state"`
	Degraded     []Stage             `json:"degraded_stages,omitempty"`
	Trace        *Trace              `json:"trace"`
}

// TotalsMap returns Totals keyed by plaintiff id.
func (d *Draft) TotalsMap() map[string]float64 { return d.Totals.Map() }

// DegradedNames returns the degraded stage names as strings.
func (d *Draft) DegradedNames() []string {
	out := make([]string, len(d.Degraded))
	for i, s := range d.Degraded {
		out[i] = string(s)
	}
	return out
}

// Orchestrator runs the drafting state machine. It is safe for concurrent
// use; each Run owns its own machine.
type Orchestrator struct {
	gen     Generator
	cfg     config.GenerationConfig
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	now     func() time.Time
}

func NewOrchestrator(gen Generator, cfg config.GenerationConfig, logger logging.Logger, metrics *prometheus.AppMetrics) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.FactsMaxAttempts <= 0 {
		cfg.FactsMaxAttempts = config.DefaultFactsMaxAttempts
	}
	if cfg.CompensationMaxAttempts <= 0 {
		cfg.CompensationMaxAttempts = config.DefaultCompensationMaxAttempts
	}
	if cfg.CalcTagsMaxAttempts <= 0 {
		cfg.CalcTagsMaxAttempts = config.DefaultCalcTagsMaxAttempts
	}
	if cfg.SummaryMaxAttempts <= 0 {
		cfg.SummaryMaxAttempts = config.DefaultSummaryMaxAttempts
	}
	return &Orchestrator{gen: gen, cfg: cfg, logger: logger.Named("drafting"), metrics: metrics, now: time.Now}
}

// run is the per-call state.
type run struct {
	o      *Orchestrator
	m      *machine
	draft  *Draft
	logger logging.Logger
}

// attempt produces one candidate and its verdict. An error is a collaborator
// failure and aborts the run.
type attempt func(ctx context.Context, n int) (string, Verdict, error)

// Run drafts an indictment. Exhausted retry budgets degrade the stage and
// keep the last attempt; a generator error fails the run with
// ErrCodeGenerationAborted wrapping the cause, and the partial draft is
// returned alongside the error.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Draft, error) {
	r := &run{o: o, m: newMachine(o.now), logger: o.logger}
	r.draft = &Draft{Trace: r.m.trace}

	err := r.execute(ctx, in)
	r.draft.State = r.m.state
	return r.draft, err
}

func (r *run) execute(ctx context.Context, in Input) error {
	d := r.draft
	q := in.Query

	summary, err := r.generate(ctx, StageSummary, CaseSummaryPrompt(q.AccidentFacts, q.Injuries))
	if err != nil {
		return err
	}
	d.Summary = strings.TrimSpace(stripThinking(summary))

	d.Facts, err = r.loop(ctx, StageFacts, StateFactsPending, StateFactsOK, r.o.cfg.FactsMaxAttempts,
		func(ctx context.Context, _ int) (string, Verdict, error) {
			reply, err := r.generate(ctx, StageFacts, FactsPrompt(q.AccidentFacts, in.ReferenceFacts))
			if err != nil {
				return "", Verdict{}, err
			}
			facts := CleanFacts(reply)
			v, err := r.check(ctx, StageFacts, FactsCheckPrompt(facts, d.Summary))
			return facts, v, err
		})
	if err != nil {
		return err
	}

	d.LawSection = law.BuildSection(in.Citations)
	if err := r.m.move(StateLawSectionBuilt, Event{Stage: StageLawSection, Note: fmt.Sprintf("%d citations", len(in.Citations))}); err != nil {
		return err
	}
	if len(in.Citations) == 0 {
		r.logger.Warn("No law passed the occurrence threshold", logging.Stage(string(StageLawSection)))
	}
	if err := r.m.move(StateCompensationPending, Event{Stage: StageCompensation}); err != nil {
		return err
	}

	comp := CompensationInput{
		Injuries:          q.Injuries,
		CompensationFacts: q.CompensationFacts,
		AverageAmount:     in.AverageAmount,
		CaseType:          in.CaseType,
		PlaintiffsLine:    in.PlaintiffsLine,
	}
	d.Compensation, err = r.loop(ctx, StageCompensation, StateCompensationPending, StateCompensationOK, r.o.cfg.CompensationMaxAttempts,
		func(ctx context.Context, _ int) (string, Verdict, error) {
			reply, err := r.generate(ctx, StageCompensation, CompensationPrompt(comp))
			if err != nil {
				return "", Verdict{}, err
			}
			items := CleanCompensation(reply)
			v, err := r.check(ctx, StageCompensation, CompensationCheckPrompt(items, comp))
			return items, v, err
		})
	if err != nil {
		return err
	}
	if err := r.m.move(StateCalcTagsPending, Event{Stage: StageCalcTags}); err != nil {
		return err
	}

	d.CalcTags, err = r.loop(ctx, StageCalcTags, StateCalcTagsPending, StateCalcTagsOK, r.o.cfg.CalcTagsMaxAttempts,
		func(ctx context.Context, _ int) (string, Verdict, error) {
			reply, err := r.generate(ctx, StageCalcTags, CalcTagsPrompt(d.Compensation, in.PlaintiffsLine))
			if err != nil {
				return "", Verdict{}, err
			}
			tags := strings.TrimSpace(stripThinking(reply))
			if len(compensation.ParseTags(tags)) == 0 {
				return tags, failed("reply contains no <calculate> tag"), nil
			}
			v, err := r.check(ctx, StageCalcTags, CalcTagsCheckPrompt(d.Compensation, tags))
			return tags, v, err
		})
	if err != nil {
		return err
	}
	d.Totals = compensation.Aggregate(d.CalcTags)
	totalsLine := compensation.FormatSummary(d.Totals)
	r.logger.Info("Compensation totals computed", logging.Any("totals", d.Totals.Map()))

	if err := r.m.move(StateSummaryPending, Event{Stage: StageConclusion, Note: totalsLine}); err != nil {
		return err
	}
	d.Conclusion, err = r.loop(ctx, StageConclusion, StateSummaryPending, StateDone, r.o.cfg.SummaryMaxAttempts,
		func(ctx context.Context, _ int) (string, Verdict, error) {
			reply, err := r.generate(ctx, StageConclusion, ConclusionPrompt(d.Compensation, totalsLine, in.PlaintiffsLine))
			if err != nil {
				return "", Verdict{}, err
			}
			conclusion := CleanConclusion(reply)
			if v, ok := totalsVerdict(conclusion, d.Totals); !ok {
				return conclusion, v, nil
			}
			v, err := r.check(ctx, StageConclusion, ConclusionCheckPrompt(d.Compensation, conclusion))
			return conclusion, v, err
		})
	if err != nil {
		return err
	}

	d.Text = Assemble(d.Facts, d.LawSection, d.Compensation, d.Conclusion)
	return nil
}

// totalsVerdict fails a conclusion whose 綜上所陳 section lacks any of the
// computed totals.
func totalsVerdict(conclusion string, totals compensation.Totals) (Verdict, bool) {
	section := document.ConclusionSection(conclusion)
	if section == "" {
		return failed("conclusion lacks 綜上所陳 or 綜上所述"), false
	}
	missing := compensation.MissingTotals(section, totals)
	if len(missing) == 0 {
		return Verdict{Passed: true}, true
	}
	names := make([]string, len(missing))
	for i, t := range missing {
		names[i] = t.PlaintiffID + "=" + compensation.FormatAmount(t.Amount)
	}
	return failed("conclusion is missing totals: " + strings.Join(names, ", ")), false
}

// loop runs fn up to max times from pending. A passing verdict moves to ok;
// an exhausted budget also moves to ok, marks the stage degraded and keeps
// the last output.
func (r *run) loop(ctx context.Context, stage Stage, pending, ok State, max int, fn attempt) (string, error) {
	log := r.logger.With(logging.Stage(string(stage)))
	var (
		out  string
		last Verdict
	)
	for n := 1; n <= max; n++ {
		if err := ctx.Err(); err != nil {
			return out, r.abort(stage, pkgerrors.Wrap(err, pkgerrors.ErrCodeTimeout, "drafting cancelled"))
		}
		var err error
		out, last, err = fn(ctx, n)
		if err != nil {
			r.o.metrics.RecordStageAttempt(string(stage), "error")
			return out, r.abort(stage, err)
		}

		verdict := last
		if err := r.m.move(pending, Event{Stage: stage, Attempt: n, Verdict: &verdict}); err != nil {
			return out, err
		}
		if last.Passed {
			r.o.metrics.RecordStageAttempt(string(stage), "pass")
			r.o.metrics.RecordStageOutcome(string(stage), "passed")
			log.Info("Stage passed", logging.Int("attempt", n))
			return out, r.m.move(ok, Event{Stage: stage, Note: "passed"})
		}
		r.o.metrics.RecordStageAttempt(string(stage), "fail")
		log.Debug("Stage attempt rejected", logging.Int("attempt", n), logging.String("reason", last.Reason))
	}

	r.o.metrics.RecordStageOutcome(string(stage), "exhausted")
	r.draft.Degraded = append(r.draft.Degraded, stage)
	log.Warn("Retry budget exhausted, keeping last attempt",
		logging.Int("attempts", max), logging.String("reason", last.Reason))
	return out, r.m.move(ok, Event{Stage: stage, Note: "degraded"})
}

func (r *run) generate(ctx context.Context, stage Stage, prompt string) (string, error) {
	reply, err := r.o.gen.Generate(ctx, prompt)
	if err != nil {
		if stage == StageSummary {
			return "", r.abort(stage, err)
		}
		return "", err
	}
	return reply, nil
}

func (r *run) check(ctx context.Context, stage Stage, prompt string) (Verdict, error) {
	reply, err := r.o.gen.Generate(ctx, prompt)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply), nil
}

// abort records FAILED and wraps cause.
func (r *run) abort(stage Stage, cause error) error {
	r.m.fail(stage, cause)
	r.logger.Error("Drafting aborted", logging.Stage(string(stage)), logging.Err(cause))
	return pkgerrors.Wrapf(cause, pkgerrors.ErrCodeGenerationAborted, "drafting aborted at %s", stage)
}
