// Package prompt renders the model prompts for step guidance and for the
// final decision summary. Output depends only on its inputs.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/verdict/internal/framework"
)

// PriorStep is the submitted data of an earlier step.
type PriorStep struct {
	Title string
	Data  json.RawMessage
}

// Context is the accumulated decision state a prompt is built from. Prior is
// ordered by framework position.
type Context struct {
	Question string
	Prior    []PriorStep
}

// Render builds the guidance prompt for step.
func Render(step framework.Step, ctx Context) string {
	var b strings.Builder

	b.WriteString("\nStep: ")
	b.WriteString(step.Title)
	b.WriteString("\n\n")
	b.WriteString(step.Description)
	b.WriteString("\n\n")
	if step.AIInstructions != "" {
		b.WriteString("Guidance for this step:\n")
		b.WriteString(step.AIInstructions)
		b.WriteString("\n\n")
	}
	b.WriteString("Current Decision Context:\n")
	b.WriteString(RenderContext(ctx))
	b.WriteString("\n\n")
	b.WriteString("Please provide guidance for the user on this step of their decision-making process.\n")
	b.WriteString("Consider the following fields that the user needs to complete:\n\n")
	b.WriteString(fieldsSection(step.Fields))
	b.WriteString("\n\n")
	b.WriteString("Based on the user's input so far and the requirements of this step, provide:\n")
	b.WriteString("1. A brief explanation and suggestions for this step (in markdown format)\n")
	b.WriteString("2. Pre-filled data for the user input fields, based on your best guess of what user would write\n\n")
	b.WriteString("Please structure your response in the following JSON format:\n\n")
	b.WriteString(Template(step, ctx))
	b.WriteString("\n")
	return b.String()
}

// RenderContext renders the question followed by each prior step's title
// and indented JSON data.
func RenderContext(ctx Context) string {
	var parts []string
	if ctx.Question != "" {
		parts = append(parts, "Decision Question:\n"+ctx.Question)
	}
	for _, p := range ctx.Prior {
		parts = append(parts, p.Title+":\n"+indentJSON(p.Data))
	}
	return strings.Join(parts, "\n")
}

func indentJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON; quote it so the block stays a JSON value.
		q, _ := json.Marshal(string(raw))
		return string(q)
	}
	return buf.String()
}

func fieldsSection(fields []framework.FieldSpec) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		fmt.Fprintf(&b, "- %s (%s): %s", f.Label, f.Type, f.Description)
		for _, detail := range fieldDetails(f) {
			b.WriteString("\n  ")
			b.WriteString(detail)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func fieldDetails(f framework.FieldSpec) []string {
	var out []string
	if len(f.Object) > 0 {
		keys := make([]string, len(f.Object))
		for i, k := range f.Object {
			if k.Number != nil {
				keys[i] = fmt.Sprintf("%s (%s, %s to %s)", k.Name, k.Type, num(k.Number.Min), num(k.Number.Max))
			} else {
				keys[i] = fmt.Sprintf("%s (%s)", k.Name, k.Type)
			}
		}
		out = append(out, "Keys: "+strings.Join(keys, ", "))
	}
	if f.Matrix != nil {
		out = append(out, fmt.Sprintf("Rows: each entry of %q from %s", f.Matrix.Rows.Field, f.Matrix.Rows.Step))
		col := fmt.Sprintf("Columns: each entry of %q from %s", f.Matrix.Columns.Field, f.Matrix.Columns.Step)
		if f.Matrix.Columns.Use != "" {
			col += fmt.Sprintf(", labelled by %q", f.Matrix.Columns.Use)
		}
		out = append(out, col)
	}
	if f.Cell != nil {
		out = append(out, fmt.Sprintf("Ratings: numbers from %s to %s", num(f.Cell.Min), num(f.Cell.Max)))
	}
	for _, d := range f.Dependencies {
		out = append(out, fmt.Sprintf("Depends on: %q from %s", d.Field, d.Step))
	}
	for _, r := range f.Rules {
		out = append(out, "Rule: "+r.Message)
	}
	return out
}

// Template renders the JSON answer shape the model is asked to follow.
func Template(step framework.Step, ctx Context) string {
	if len(step.Fields) == 0 {
		return "{\n    \"suggestion\": \"Your brief markdown-formatted suggestion here\",\n    \"pre_filled_data\": {}\n}"
	}
	formats := make([]string, len(step.Fields))
	for i, f := range step.Fields {
		formats[i] = fieldExample(f, ctx)
	}
	return "{\n    \"suggestion\": \"Your brief markdown-formatted suggestion here\",\n    \"pre_filled_data\": {\n        " +
		strings.Join(formats, ",\n        ") +
		"\n    }\n}"
}

func fieldExample(f framework.FieldSpec, ctx Context) string {
	name := strconv.Quote(f.Name)
	switch f.Type {
	case framework.TypeList:
		return name + `: ["Example 1", "Example 2", "Example 3"]`
	case framework.TypeListOfObjects:
		obj := objectExample(f.Object)
		return fmt.Sprintf("%s: [%s, %s]", name, obj, obj)
	case framework.TypeMatrix:
		return name + ": " + matrixExample(f, ctx)
	default:
		return fmt.Sprintf("%s: %s", name, strconv.Quote("Example "+f.Name))
	}
}

func objectExample(keys []framework.ObjectKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k.Number != nil {
			parts[i] = fmt.Sprintf("%s: %s", strconv.Quote(k.Name), num(k.Number.Min))
			continue
		}
		parts[i] = fmt.Sprintf("%s: %s", strconv.Quote(k.Name), strconv.Quote("Example "+k.Name))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func matrixExample(f framework.FieldSpec, ctx Context) string {
	var rows, cols []string
	if f.Matrix != nil {
		rows = entryNames(ctx, f.Matrix.Rows)
		cols = entryNames(ctx, f.Matrix.Columns)
	}
	if len(rows) == 0 {
		rows = []string{"Option 1", "Option 2"}
	}
	if len(cols) == 0 {
		cols = []string{"Criterion 1", "Criterion 2"}
	}

	rating := "3"
	if f.Cell != nil {
		rating = num(float64(int((f.Cell.Min + f.Cell.Max) / 2)))
	}

	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = fmt.Sprintf("%s: %s", strconv.Quote(c), rating)
	}
	row := "{" + strings.Join(cells, ", ") + "}"

	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("%s: %s", strconv.Quote(r), row)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// entryNames resolves the labels of a matrix source from the prior step data.
func entryNames(ctx Context, src framework.Source) []string {
	for _, p := range ctx.Prior {
		if p.Title != src.Step {
			continue
		}
		var data map[string]json.RawMessage
		if err := json.Unmarshal(p.Data, &data); err != nil {
			return nil
		}
		var entries []any
		if err := json.Unmarshal(data[src.Field], &entries); err != nil {
			return nil
		}
		keys := []string{src.Use, "name"}
		var names []string
		for _, e := range entries {
			switch t := e.(type) {
			case string:
				if t != "" {
					names = append(names, t)
				}
			case map[string]any:
				for _, k := range keys {
					if s, ok := t[k].(string); ok && k != "" && s != "" {
						names = append(names, s)
						break
					}
				}
			}
		}
		return names
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
