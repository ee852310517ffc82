package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/verdict/internal/decision"
	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/store"
	"github.com/hyperengineering/verdict/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusBadRequest:            {"https://verdict.dev/errors/bad-request", "Bad Request"},
	http.StatusUnauthorized:          {"https://verdict.dev/errors/unauthorized", "Unauthorized"},
	http.StatusForbidden:             {"https://verdict.dev/errors/forbidden", "Forbidden"},
	http.StatusNotFound:              {"https://verdict.dev/errors/not-found", "Not Found"},
	http.StatusConflict:              {"https://verdict.dev/errors/conflict", "Conflict"},
	http.StatusRequestEntityTooLarge: {"https://verdict.dev/errors/too-large", "Request Entity Too Large"},
	http.StatusUnprocessableEntity:   {"https://verdict.dev/errors/validation-error", "Validation Error"},
	http.StatusTooManyRequests:       {"https://verdict.dev/errors/rate-limit", "Too Many Requests"},
	http.StatusInternalServerError:   {"https://verdict.dev/errors/internal-error", "Internal Server Error"},
}

func problemFor(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: "https://verdict.dev/errors/unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := problemFor(status)
	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemFor(http.StatusUnprocessableEntity)
	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses.
// Unrecognised errors become a generic 500 and are logged.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *decision.InvalidStepDataError
	switch {
	case errors.As(err, &invalid):
		WriteProblemWithErrors(w, r, "Step data contains invalid fields", invalid.Errors)
	case errors.Is(err, framework.ErrUnknownFramework):
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "framework_id", Message: "is not a known framework"},
		})
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Decision not found")
	case errors.Is(err, decision.ErrForbidden):
		WriteProblem(w, r, http.StatusForbidden, "Decision belongs to another user")
	case errors.Is(err, decision.ErrCompleted):
		WriteProblem(w, r, http.StatusConflict, "Decision is already completed")
	case errors.Is(err, store.ErrConflict):
		WriteProblem(w, r, http.StatusConflict, "Decision was modified by another request, reload and retry")
	case errors.Is(err, decision.ErrStepMismatch), errors.Is(err, framework.ErrStepOutOfRange):
		WriteProblem(w, r, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed",
			"request_id", GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
