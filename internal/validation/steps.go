package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperengineering/verdict/internal/framework"
)

// ValidateStepData decodes each submitted value against its field in step
// and runs the field's rules. Keys the step does not declare are errors;
// declared fields may be omitted. prior holds the decision's stored step
// data, used to check select fields against their source entries.
//
// The decoded values are returned for storage even when errors are reported.
func ValidateStepData(fw *framework.Framework, step framework.Step, data map[string]json.RawMessage, prior map[string]json.RawMessage) (map[string]framework.Value, []ValidationError) {
	c := &Collector{}
	values := make(map[string]framework.Value, len(data))

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		path := "step_data." + name
		field, ok := step.Field(name)
		if !ok {
			c.Add(&ValidationError{Field: path, Message: fmt.Sprintf("is not a field of step %q", step.Title)})
			continue
		}

		v, err := framework.DecodeValue(field, data[name])
		if err != nil {
			c.Add(&ValidationError{Field: path, Message: strings.TrimPrefix(err.Error(), framework.ErrInvalidValue.Error()+": ")})
			continue
		}
		c.AddAll(textChecks(path, v))
		for _, msg := range fw.Check(field, v) {
			c.Add(&ValidationError{Field: path, Message: msg})
		}
		if field.Type == framework.TypeSelect && v.Text != "" {
			c.Add(checkSelect(fw, path, field, v.Text, prior))
		}
		values[name] = v
	}
	return values, c.Errors()
}

func textChecks(path string, v framework.Value) []ValidationError {
	c := &Collector{}
	switch v.Kind {
	case framework.TypeList:
		for i, s := range v.Items {
			c.Text(fmt.Sprintf("%s[%d]", path, i), s, MaxTextValueLength)
		}
	case framework.TypeListOfObjects:
		for i, o := range v.Objects {
			for k, val := range o {
				if s, ok := val.(string); ok {
					c.Text(fmt.Sprintf("%s[%d].%s", path, i, k), s, MaxTextValueLength)
				}
			}
		}
	case framework.TypeMatrix:
	default:
		c.Text(path, v.Text, MaxTextValueLength)
	}
	return c.Errors()
}

// checkSelect requires choice to be one of the entries named by the field's
// dependency. It passes when the source step has no entries yet.
func checkSelect(fw *framework.Framework, path string, field framework.FieldSpec, choice string, prior map[string]json.RawMessage) *ValidationError {
	for _, dep := range field.Dependencies {
		srcStep, _, err := fw.StepByTitle(dep.Step)
		if err != nil {
			continue
		}
		srcField, ok := srcStep.Field(dep.Field)
		if !ok {
			continue
		}
		var stepData map[string]json.RawMessage
		if err := json.Unmarshal(prior[dep.Step], &stepData); err != nil {
			continue
		}
		v, err := framework.DecodeValue(srcField, stepData[dep.Field])
		if err != nil {
			continue
		}
		names := framework.EntryNames(srcField, v, "")
		if len(names) == 0 {
			continue
		}
		for _, n := range names {
			if n == choice {
				return nil
			}
		}
		return &ValidationError{Field: path, Message: fmt.Sprintf("must be one of the options from %s", dep.Step)}
	}
	return nil
}
