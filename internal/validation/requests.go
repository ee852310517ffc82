package validation

import (
	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/types"
)

const (
	MaxQuestionLength     = 2000
	MaxCommentLength      = 2000
	MaxSuggestionLength   = 20000
	MaxTextValueLength    = 10000
	MinRating, MaxRating  = 1, 5
	maxStepDataFieldCount = 64
)

// ValidateStartDecision validates the body of a start-decision request.
func ValidateStartDecision(req types.StartDecisionRequest) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("question", req.Question))
	c.Text("question", req.Question, MaxQuestionLength)
	if req.FrameworkID != "" {
		c.Add(ValidateEnum("framework_id", req.FrameworkID, framework.IDs()))
	}
	return c.Errors()
}

// ValidateDecisionID checks a decision ID taken from the request path.
func ValidateDecisionID(id string) []ValidationError {
	c := &Collector{}
	c.Add(ValidateULID("id", id))
	return c.Errors()
}

// ValidateQuickAdvice validates the body of a one-shot advice request.
func ValidateQuickAdvice(req types.QuickAdviceRequest) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("question", req.Question))
	c.Text("question", req.Question, MaxQuestionLength)
	return c.Errors()
}

// ValidateSubmitStep validates the envelope of a step submission. Field
// values are checked against the step with ValidateStepData.
func ValidateSubmitStep(req types.SubmitStepRequest) []ValidationError {
	c := &Collector{}
	if req.StepData == nil {
		c.Add(&ValidationError{Field: "step_data", Message: "is required"})
	}
	if len(req.StepData) > maxStepDataFieldCount {
		c.Add(&ValidationError{Field: "step_data", Message: "has too many fields"})
	}
	c.Text("ai_suggestion", req.AISuggestion, MaxSuggestionLength)
	return c.Errors()
}

// ValidateFeedback validates the body of a feedback request.
func ValidateFeedback(req types.FeedbackRequest) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRange("rating", float64(req.Rating), MinRating, MaxRating))
	c.Text("comment", req.Comment, MaxCommentLength)
	return c.Errors()
}
