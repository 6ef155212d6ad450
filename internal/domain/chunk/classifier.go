package chunk

import (
	"context"
	"fmt"
	"strings"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

// Generator is the text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackRecorder is notified whenever classification falls back to the
// default category.
type FallbackRecorder interface {
	RecordClassifierFallback(reason string)
}

// ClassifierConfig tunes Classifier.
type ClassifierConfig struct {
	Default  Type
	Priority []Type
}

// DefaultClassifierConfig checks fact, then law, compensation and injury.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Default:  TypeFact,
		Priority: []Type{TypeFact, TypeLaw, TypeCompensation, TypeInjury},
	}
}

var categoryKeywords = map[Type][]string{
	TypeFact:         {"fact"},
	TypeLaw:          {"law"},
	TypeCompensation: {"compensation"},
	TypeInjury:       {"injury", "injuries"},
}

// Classifier labels chunks through the generation collaborator. It never
// fails: ambiguous replies and call failures resolve to the default category.
type Classifier struct {
	gen      Generator
	cfg      ClassifierConfig
	logger   logging.Logger
	recorder FallbackRecorder
}

// NewClassifier builds a Classifier. recorder may be nil.
func NewClassifier(gen Generator, cfg ClassifierConfig, logger logging.Logger, recorder FallbackRecorder) *Classifier {
	if cfg.Default == "" {
		cfg.Default = TypeFact
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = DefaultClassifierConfig().Priority
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Classifier{gen: gen, cfg: cfg, logger: logger, recorder: recorder}
}

// Classify returns the category of text.
func (c *Classifier) Classify(ctx context.Context, text string) Type {
	reply, err := c.gen.Generate(ctx, ClassificationPrompt(text))
	if err != nil {
		c.fallback("call_failed", text, logging.Err(err))
		return c.cfg.Default
	}
	if t, ok := c.match(reply); ok {
		return t
	}
	c.fallback("no_keyword", text, logging.String("reply", reply))
	return c.cfg.Default
}

func (c *Classifier) match(reply string) (Type, bool) {
	lower := strings.ToLower(reply)
	for _, t := range c.cfg.Priority {
		for _, kw := range categoryKeywords[t] {
			if strings.Contains(lower, kw) {
				return t, true
			}
		}
	}
	return "", false
}

func (c *Classifier) fallback(reason, text string, extra logging.Field) {
	c.logger.Warn("chunk classification fell back to default",
		logging.String("reason", reason),
		logging.String("default", string(c.cfg.Default)),
		logging.Int("chunk_len", len([]rune(text))),
		extra)
	if c.recorder != nil {
		c.recorder.RecordClassifierFallback(reason)
	}
}

// ClassificationPrompt renders the category prompt with few-shot examples.
func ClassificationPrompt(text string) string {
	return fmt.Sprintf(`將以下文本分類成4類中的一類:
'fact' (若文本是描述事故經過或事實背景),
'injury' (若文本描述受傷情況或醫療後果),
'law' (若文本引用法條或說明法律依據),
'compensation' (若文本涉及賠償請求、金錢損失或相關事宜).
例子1：「被告騎乘機車沿彰化縣二林鎮○○路由東往西行駛，本應注意車前狀況，竟疏未注意貿然左轉，適有原告騎乘重型機車閃避不及，兩車因而相撞。」是 'fact'
例子2：「原告因本件車禍受有頭部外傷合併腦內血腫之傷害，經緊急實施開顱手術，仍留有言語不清之後遺症。」是 'injury'
例子3：「按因故意或過失，不法侵害他人之權利者，負損害賠償責任，民法第184條第1項前段定有明文。」是 'law'
例子4：「原告因本件車禍受傷住院期間支出醫療費用47,764元，請求7個月不能工作之損失共計21萬元。」是 'compensation'

Text: %s

Respond with only one word - either 'fact', 'injury', 'law', or 'compensation'.

Category:`, text)
}
