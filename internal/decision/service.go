// Package decision sequences a decision through its framework: it owns the
// rules for which step may be submitted, what gets stored, and when the
// closing summary is generated.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/verdict/internal/archive"
	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/repair"
	"github.com/hyperengineering/verdict/internal/store"
	"github.com/hyperengineering/verdict/internal/types"
	"github.com/hyperengineering/verdict/internal/validation"
)

var (
	// ErrForbidden is returned when a decision belongs to another owner.
	ErrForbidden = errors.New("decision belongs to another owner")

	// ErrStepMismatch is returned when a step other than the current one is
	// submitted, or guidance is requested for a step not yet reached.
	ErrStepMismatch = errors.New("step does not match the decision's progress")

	// ErrCompleted is returned when a step is submitted to a completed decision.
	ErrCompleted = errors.New("decision already completed")
)

// InvalidStepDataError carries field-level validation failures.
type InvalidStepDataError struct {
	Errors []validation.ValidationError
}

func (e *InvalidStepDataError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.Field + " " + ve.Message
	}
	return "invalid step data: " + strings.Join(parts, "; ")
}

// Advisor produces model output for a decision.
type Advisor interface {
	Suggest(ctx context.Context, fw *framework.Framework, d *types.Decision, index int) (repair.Suggestion, error)
	Summarize(ctx context.Context, fw *framework.Framework, d *types.Decision) (string, error)
}

// DefaultSummaryLease is how long a completing request holds the summary
// before the retry worker may take it over.
const DefaultSummaryLease = 5 * time.Minute

// Service implements the decision lifecycle over a Store.
type Service struct {
	store        store.Store
	advisor      Advisor
	archiver     archive.Archiver
	logger       *slog.Logger
	summaryLease time.Duration
}

// NewService creates a Service. A nil archiver disables archiving.
// summaryLease is how long the request that completes a decision owns its
// summary and should outlast the slowest summary call; zero selects
// DefaultSummaryLease.
func NewService(s store.Store, a Advisor, arc archive.Archiver, summaryLease time.Duration, logger *slog.Logger) *Service {
	if arc == nil {
		arc = archive.NoopArchiver{}
	}
	if summaryLease <= 0 {
		summaryLease = DefaultSummaryLease
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        s,
		advisor:      a,
		archiver:     arc,
		logger:       logger.With("component", "decision"),
		summaryLease: summaryLease,
	}
}

// Start creates a decision at step 0 of the requested framework.
func (s *Service) Start(ctx context.Context, owner string, req types.StartDecisionRequest) (*types.Decision, error) {
	fw, err := framework.Lookup(req.FrameworkID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.CreateDecision(ctx, types.NewDecision{
		OwnerID:     owner,
		Question:    strings.TrimSpace(req.Question),
		FrameworkID: fw.ID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("decision started", "decision_id", d.ID, "framework_id", fw.ID)
	return d, nil
}

// Get returns a decision owned by owner.
func (s *Service) Get(ctx context.Context, owner, id string) (*types.Decision, error) {
	d, err := s.store.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != owner {
		return nil, ErrForbidden
	}
	return d, nil
}

// List returns owner's decisions, newest first.
func (s *Service) List(ctx context.Context, owner string) ([]types.Decision, error) {
	return s.store.ListDecisions(ctx, owner)
}

// Delete removes a decision and its feedback.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	return s.store.DeleteDecision(ctx, id)
}

// Suggest returns guidance for step index. Completed steps may be
// revisited; steps ahead of the decision may not.
func (s *Service) Suggest(ctx context.Context, owner, id string, index int) (*types.SuggestionResponse, error) {
	d, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	fw, err := framework.Lookup(d.FrameworkID)
	if err != nil {
		return nil, err
	}
	step, err := fw.StepAt(index)
	if err != nil {
		return nil, err
	}
	if index > d.StepIndex {
		return nil, fmt.Errorf("%w: step %d requested, decision is at %d", ErrStepMismatch, index, d.StepIndex)
	}

	sg, err := s.advisor.Suggest(ctx, fw, d, index)
	if err != nil {
		return nil, err
	}
	return &types.SuggestionResponse{
		StepIndex:     index,
		StepTitle:     step.Title,
		Suggestion:    sg.Suggestion,
		PreFilledData: sg.PreFilledData,
	}, nil
}

// Advance validates and stores the data for the current step, moves the
// decision forward, and on the last step generates the summary.
func (s *Service) Advance(ctx context.Context, owner, id string, index int, req types.SubmitStepRequest) (*types.AdvanceResponse, error) {
	d, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if d.Status == types.StatusCompleted {
		return nil, ErrCompleted
	}
	fw, err := framework.Lookup(d.FrameworkID)
	if err != nil {
		return nil, err
	}
	step, err := fw.StepAt(index)
	if err != nil {
		return nil, err
	}
	if index != d.StepIndex {
		return nil, fmt.Errorf("%w: step %d submitted, decision is at %d", ErrStepMismatch, index, d.StepIndex)
	}

	values, verrs := validation.ValidateStepData(fw, step, req.StepData, d.Data)
	if len(verrs) > 0 {
		return nil, &InvalidStepDataError{Errors: verrs}
	}

	data, err := withStep(d.Data, step.Title, values, req.AISuggestion)
	if err != nil {
		return nil, err
	}

	next := index + 1
	u := types.ProgressUpdate{
		ID:              d.ID,
		ExpectedVersion: d.Version,
		Data:            data,
		StepIndex:       next,
		Status:          types.StatusInProgress,
		SummaryStatus:   d.SummaryStatus,
	}
	completed := next == fw.Len()
	if completed {
		u.Status = types.StatusCompleted
		u.SummaryStatus = types.SummaryPending
		// The retry worker must not summarize while this request does.
		u.SummaryLeaseUntil = time.Now().Add(s.summaryLease)
	}

	updated, err := s.store.UpdateProgress(ctx, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("step submitted",
		"decision_id", d.ID,
		"step_index", index,
		"completed", completed,
	)

	resp := &types.AdvanceResponse{Completed: completed, Version: updated.Version}
	if !completed {
		resp.NextStep = &next
		resp.NextStepTitle = fw.Steps[next].Title
		return resp, nil
	}

	summary, err := s.GenerateSummary(ctx, updated)
	if err != nil {
		s.logger.Warn("summary generation failed, left for retry",
			"decision_id", d.ID,
			"error", err,
		)
		// A request context that is already done would fail the release.
		if err := s.store.ReleaseSummary(context.WithoutCancel(ctx), d.ID); err != nil {
			s.logger.Error("release summary lease failed", "decision_id", d.ID, "error", err)
		}
		resp.SummaryStatus = types.SummaryPending
		return resp, nil
	}
	resp.Summary = summary
	resp.SummaryStatus = types.SummaryComplete
	return resp, nil
}

// GenerateSummary asks the advisor for d's summary, stores it and archives
// it. Archive failures are logged, not returned.
func (s *Service) GenerateSummary(ctx context.Context, d *types.Decision) (string, error) {
	fw, err := framework.Lookup(d.FrameworkID)
	if err != nil {
		return "", err
	}
	summary, err := s.advisor.Summarize(ctx, fw, d)
	if err != nil {
		return "", err
	}
	if err := s.store.SetSummary(ctx, d.ID, summary); err != nil {
		return "", fmt.Errorf("store summary: %w", err)
	}
	if err := s.archiver.Upload(ctx, d.ID, summary); err != nil {
		s.logger.Error("summary archive failed", "decision_id", d.ID, "error", err)
	}
	return summary, nil
}

// GetSummary reports the summary state of a decision, with a download
// link when the summary is archived.
func (s *Service) GetSummary(ctx context.Context, owner, id string) (*types.SummaryResponse, error) {
	d, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	resp := &types.SummaryResponse{DecisionID: d.ID, Status: d.SummaryStatus, Summary: d.Summary}
	if d.SummaryStatus == types.SummaryComplete && s.archiver.Enabled() {
		link, _, err := s.archiver.PresignedURL(ctx, d.ID)
		if err != nil {
			s.logger.Warn("presign summary failed", "decision_id", d.ID, "error", err)
		} else {
			resp.ArchiveURL = link
		}
	}
	return resp, nil
}

// AddFeedback records the owner's rating of a decision.
func (s *Service) AddFeedback(ctx context.Context, owner, id string, req types.FeedbackRequest) (*types.Feedback, error) {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.CreateFeedback(ctx, types.NewFeedback{
		DecisionID: id,
		OwnerID:    owner,
		Rating:     req.Rating,
		Comment:    strings.TrimSpace(req.Comment),
	})
}

// ListFeedback returns a decision's feedback.
func (s *Service) ListFeedback(ctx context.Context, owner, id string) ([]types.Feedback, error) {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.ListFeedback(ctx, id)
}

// withStep returns a copy of data with the step's values and the shown
// suggestion stored under the step's keys.
func withStep(data map[string]json.RawMessage, title string, values map[string]framework.Value, suggestion string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	stepJSON, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode step data: %w", err)
	}
	sugJSON, err := json.Marshal(suggestion)
	if err != nil {
		return nil, fmt.Errorf("encode suggestion: %w", err)
	}
	out[title] = stepJSON
	out[title+framework.SuggestionSuffix] = sugJSON
	return out, nil
}
