// Package advisor asks the model for step guidance and decision summaries.
// Model failures never surface as errors from Suggest; the caller always
// gets something it can show.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/llm"
	"github.com/hyperengineering/verdict/internal/prompt"
	"github.com/hyperengineering/verdict/internal/repair"
	"github.com/hyperengineering/verdict/internal/types"
)

// ErrFutureStep is returned when guidance is requested for a step the
// decision has not reached.
var ErrFutureStep = errors.New("step not reached yet")

// QuickAdviceFallback is returned by QuickAdvice when the model fails.
const QuickAdviceFallback = "Sorry, I couldn't make a decision at this time."

// Options bounds the model calls.
type Options struct {
	StepMaxTokens    int
	SummaryMaxTokens int
	QuickMaxTokens   int
}

// Advisor turns decision state into model prompts and model output into
// suggestions.
type Advisor struct {
	completer llm.Completer
	opts      Options
	logger    *slog.Logger
}

// New creates an Advisor. Zero token limits take defaults.
func New(completer llm.Completer, opts Options, logger *slog.Logger) *Advisor {
	if opts.StepMaxTokens <= 0 {
		opts.StepMaxTokens = 1000
	}
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = 1500
	}
	if opts.QuickMaxTokens <= 0 {
		opts.QuickMaxTokens = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{completer: completer, opts: opts, logger: logger.With("component", "advisor")}
}

// Suggest returns guidance for step index of d. The index must be within
// fw and not past the decision's current step.
func (a *Advisor) Suggest(ctx context.Context, fw *framework.Framework, d *types.Decision, index int) (repair.Suggestion, error) {
	step, err := fw.StepAt(index)
	if err != nil {
		return repair.Suggestion{}, err
	}
	if index > d.StepIndex {
		return repair.Suggestion{}, fmt.Errorf("%w: step %d, current %d", ErrFutureStep, index, d.StepIndex)
	}

	text := prompt.Render(step, BuildContext(fw, d, index))
	raw, err := a.completer.Complete(ctx, text, a.opts.StepMaxTokens)
	if err != nil {
		a.logger.Warn("step suggestion failed",
			"decision_id", d.ID,
			"step_index", index,
			"error", err,
		)
		return repair.Default(), nil
	}

	s := repair.Parse(raw)
	s.PreFilledData = Normalize(step, s.PreFilledData)
	return s, nil
}

// Summarize produces the closing markdown summary for a completed decision.
func (a *Advisor) Summarize(ctx context.Context, fw *framework.Framework, d *types.Decision) (string, error) {
	ctxData := BuildContext(fw, d, fw.Len())
	text := prompt.RenderSummary(d.Question, ctxData.Prior)

	out, err := a.completer.Complete(ctx, text, a.opts.SummaryMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generate summary: %w", llm.ErrEmptyCompletion)
	}
	return out, nil
}

// QuickAdvice answers a free-form question in one call.
func (a *Advisor) QuickAdvice(ctx context.Context, question string) string {
	out, err := a.completer.Complete(ctx, prompt.RenderQuickAdvice(question), a.opts.QuickMaxTokens)
	if err != nil || strings.TrimSpace(out) == "" {
		a.logger.Warn("quick advice failed", "error", err)
		return QuickAdviceFallback
	}
	return strings.TrimSpace(out)
}

// BuildContext collects the question and the stored data of every step
// before upTo, in framework order. Steps without data are skipped.
func BuildContext(fw *framework.Framework, d *types.Decision, upTo int) prompt.Context {
	ctx := prompt.Context{Question: d.Question}
	for i := 0; i < upTo && i < fw.Len(); i++ {
		title := fw.Steps[i].Title
		raw, ok := d.Data[title]
		if !ok {
			continue
		}
		ctx.Prior = append(ctx.Prior, prompt.PriorStep{Title: title, Data: raw})
	}
	return ctx
}

// Normalize keeps only the pre-filled values that decode against a field
// of step, re-encoded in canonical form. Lone scalars for list fields
// become one-item lists.
func Normalize(step framework.Step, data map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(data))
	for name, raw := range data {
		field, ok := step.Field(name)
		if !ok {
			continue
		}
		v, err := framework.DecodeValue(field, raw)
		if err != nil {
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[name] = enc
	}
	return out
}
