package types

import (
	"encoding/json"
	"time"
)

// DecisionStatus is the lifecycle state of a decision.
type DecisionStatus string

const (
	StatusInProgress DecisionStatus = "in_progress"
	StatusCompleted  DecisionStatus = "completed"
)

// SummaryStatus tracks generation of the closing summary.
type SummaryStatus string

const (
	SummaryNone     SummaryStatus = "none"
	SummaryPending  SummaryStatus = "pending"
	SummaryComplete SummaryStatus = "complete"
	SummaryFailed   SummaryStatus = "failed"
)

// --- Domain types ---

// Decision is one user's walk through a framework.
type Decision struct {
	ID            string                     `json:"id"`
	OwnerID       string                     `json:"owner_id"`
	Question      string                     `json:"question"`
	FrameworkID   string                     `json:"framework_id"`
	Data          map[string]json.RawMessage `json:"data"`
	StepIndex     int                        `json:"step_index"`
	Status        DecisionStatus             `json:"status"`
	Version       int64                      `json:"version"`
	Summary       string                     `json:"summary,omitempty"`
	SummaryStatus SummaryStatus              `json:"summary_status"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	CompletedAt   *time.Time                 `json:"completed_at,omitempty"`
}

// MarshalJSON ensures a nil Data map marshals as {} not null.
func (d Decision) MarshalJSON() ([]byte, error) {
	if d.Data == nil {
		d.Data = map[string]json.RawMessage{}
	}
	type Alias Decision
	return json.Marshal(Alias(d))
}

// NewDecision holds the fields needed to start a decision.
type NewDecision struct {
	OwnerID     string
	Question    string
	FrameworkID string
}

// ProgressUpdate is a conditional write of a decision's step state.
// It applies only while the stored version equals ExpectedVersion.
type ProgressUpdate struct {
	ID              string
	ExpectedVersion int64
	Data            map[string]json.RawMessage
	StepIndex       int
	Status          DecisionStatus
	SummaryStatus   SummaryStatus

	// SummaryLeaseUntil, when set, hides a pending summary from the retry
	// worker until that time.
	SummaryLeaseUntil time.Time
}

// Feedback is a rating left on a decision by its owner.
type Feedback struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	OwnerID    string    `json:"owner_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewFeedback holds the fields needed to record feedback.
type NewFeedback struct {
	DecisionID string
	OwnerID    string
	Rating     int
	Comment    string
}

// StoreStats contains aggregate store statistics.
type StoreStats struct {
	DecisionCount    int64 `json:"decision_count"`
	CompletedCount   int64 `json:"completed_count"`
	PendingSummaries int64 `json:"pending_summaries"`
	FeedbackCount    int64 `json:"feedback_count"`
}

// --- API request/response types ---

// StartDecisionRequest is the body of POST /decisions.
type StartDecisionRequest struct {
	Question    string `json:"question"`
	FrameworkID string `json:"framework_id,omitempty"`
}

// SubmitStepRequest is the body of POST /decisions/{id}/steps/{index}.
type SubmitStepRequest struct {
	StepData     map[string]json.RawMessage `json:"step_data"`
	AISuggestion string                     `json:"ai_suggestion"`
}

// SuggestionResponse carries the guidance for one step.
type SuggestionResponse struct {
	StepIndex     int                        `json:"step_index"`
	StepTitle     string                     `json:"step_title"`
	Suggestion    string                     `json:"suggestion"`
	PreFilledData map[string]json.RawMessage `json:"pre_filled_data"`
}

// MarshalJSON ensures a nil PreFilledData map marshals as {} not null.
func (s SuggestionResponse) MarshalJSON() ([]byte, error) {
	if s.PreFilledData == nil {
		s.PreFilledData = map[string]json.RawMessage{}
	}
	type Alias SuggestionResponse
	return json.Marshal(Alias(s))
}

// AdvanceResponse reports the state after a step submission.
type AdvanceResponse struct {
	Completed     bool          `json:"completed"`
	NextStep      *int          `json:"next_step,omitempty"`
	NextStepTitle string        `json:"next_step_title,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	SummaryStatus SummaryStatus `json:"summary_status,omitempty"`
	Version       int64         `json:"version"`
}

// SummaryResponse is the body of GET /decisions/{id}/summary.
type SummaryResponse struct {
	DecisionID string        `json:"decision_id"`
	Status     SummaryStatus `json:"status"`
	Summary    string        `json:"summary,omitempty"`
	ArchiveURL string        `json:"archive_url,omitempty"`
}

// FeedbackRequest is the body of POST /decisions/{id}/feedback.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// QuickAdviceRequest is the body of POST /advice.
type QuickAdviceRequest struct {
	Question string `json:"question"`
}

// QuickAdviceResponse carries a one-shot answer.
type QuickAdviceResponse struct {
	Decision string `json:"decision"`
}

// DecisionList wraps a page of decisions.
type DecisionList struct {
	Decisions []Decision `json:"decisions"`
}

// MarshalJSON ensures nil slices marshal as [] not null.
func (l DecisionList) MarshalJSON() ([]byte, error) {
	if l.Decisions == nil {
		l.Decisions = []Decision{}
	}
	type Alias DecisionList
	return json.Marshal(Alias(l))
}

// FeedbackList wraps a decision's feedback.
type FeedbackList struct {
	Feedback []Feedback `json:"feedback"`
}

// MarshalJSON ensures nil slices marshal as [] not null.
func (l FeedbackList) MarshalJSON() ([]byte, error) {
	if l.Feedback == nil {
		l.Feedback = []Feedback{}
	}
	type Alias FeedbackList
	return json.Marshal(Alias(l))
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Model         string `json:"model"`
	DecisionCount int64  `json:"decision_count"`
	Archive       bool   `json:"archive"`
}
