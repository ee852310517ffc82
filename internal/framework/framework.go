// Package framework defines the static decision frameworks a decision walks
// through: ordered steps, the typed fields each step collects, and the
// validation rules attached to those fields.
package framework

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStepOutOfRange is returned when a step offset is outside the framework.
	ErrStepOutOfRange = errors.New("step index out of range")

	// ErrUnknownStep is returned when no step has the requested title.
	ErrUnknownStep = errors.New("unknown step")

	// ErrUnknownFramework is returned by Lookup for unregistered framework IDs.
	ErrUnknownFramework = errors.New("unknown framework")
)

// SuggestionSuffix is appended to a step title to form the key under which
// the AI suggestion shown for that step is stored.
const SuggestionSuffix = "_ai_suggestion"

// FieldType tags the shape of the value a field collects.
type FieldType string

const (
	TypeText          FieldType = "text"
	TypeTextarea      FieldType = "textarea"
	TypeList          FieldType = "list"
	TypeListOfObjects FieldType = "list_of_objects"
	TypeMatrix        FieldType = "matrix"
	TypeSelect        FieldType = "select"
)

// NumberFormat bounds a numeric input.
type NumberFormat struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// ObjectKey is one key of a list_of_objects item. Number is set for numeric keys.
type ObjectKey struct {
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Number *NumberFormat `json:"number,omitempty"`
}

// Source points at a field of an earlier step whose entries label matrix rows or columns.
type Source struct {
	Source string `json:"source"`
	Step   string `json:"step"`
	Field  string `json:"field"`
	Use    string `json:"use,omitempty"`
}

// MatrixSpec declares where a matrix field takes its rows and columns from.
type MatrixSpec struct {
	Rows    Source `json:"rows"`
	Columns Source `json:"columns"`
}

// Dependency links a key of this field to the entries of an earlier step's field.
type Dependency struct {
	Key   string `json:"key"`
	Step  string `json:"step"`
	Field string `json:"field"`
}

// Rule is a CEL expression over the field's value (bound as `value`) that
// must evaluate to true.
type Rule struct {
	Name    string `json:"name"`
	Expr    string `json:"expr"`
	Message string `json:"message"`
}

// FieldSpec declares one input of a step.
type FieldSpec struct {
	Name         string        `json:"name"`
	Type         FieldType     `json:"type"`
	Label        string        `json:"label"`
	Description  string        `json:"description"`
	Placeholder  string        `json:"placeholder,omitempty"`
	Object       []ObjectKey   `json:"object_structure,omitempty"`
	Matrix       *MatrixSpec   `json:"matrix_structure,omitempty"`
	Cell         *NumberFormat `json:"cell_format,omitempty"`
	Dependencies []Dependency  `json:"dependencies,omitempty"`
	Rules        []Rule        `json:"validation,omitempty"`
}

// Step is one stage of a framework.
type Step struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Fields         []FieldSpec `json:"fields"`
	AIInstructions string      `json:"ai_instructions"`
}

// Field returns the field with the given name.
func (s Step) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Framework is an ordered, immutable catalog of steps.
type Framework struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`

	rules *RuleSet
}

// Len returns the number of steps. It doubles as the completion sentinel
// for a decision's step index.
func (f *Framework) Len() int {
	return len(f.Steps)
}

// StepAt returns the step at offset i. Offsets are never clamped.
func (f *Framework) StepAt(i int) (Step, error) {
	if i < 0 || i >= len(f.Steps) {
		return Step{}, fmt.Errorf("%w: %d not in [0, %d)", ErrStepOutOfRange, i, len(f.Steps))
	}
	return f.Steps[i], nil
}

// StepByTitle returns the step with the given title and its offset.
func (f *Framework) StepByTitle(title string) (Step, int, error) {
	for i, s := range f.Steps {
		if s.Title == title {
			return s, i, nil
		}
	}
	return Step{}, -1, fmt.Errorf("%w: %q", ErrUnknownStep, title)
}

// IsStepKey reports whether key is a step title or a step title's
// suggestion key.
func (f *Framework) IsStepKey(key string) bool {
	title := strings.TrimSuffix(key, SuggestionSuffix)
	_, _, err := f.StepByTitle(title)
	return err == nil
}

// Check evaluates the field's rules against v and returns the messages of
// the rules that failed.
func (f *Framework) Check(field FieldSpec, v Value) []string {
	if f.rules == nil || len(field.Rules) == 0 {
		return nil
	}
	return f.rules.Check(field, v)
}

// IDs lists the registered framework IDs.
func IDs() []string {
	return []string{PersonalID}
}

// Lookup returns the registered framework with the given ID. An empty ID
// selects the default framework.
func Lookup(id string) (*Framework, error) {
	if id == "" || id == PersonalID {
		return Personal(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFramework, id)
}
