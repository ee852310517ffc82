package framework

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when a raw value does not fit its field's type.
var ErrInvalidValue = errors.New("invalid field value")

// Value is a decoded field value. Kind selects which member is populated:
// Text for text, textarea and select; Items for list; Objects for
// list_of_objects; Matrix for matrix.
type Value struct {
	Kind    FieldType
	Text    string
	Items   []string
	Objects []map[string]any
	Matrix  map[string]map[string]float64
}

// Raw returns the value in its JSON-compatible form.
func (v Value) Raw() any {
	switch v.Kind {
	case TypeList:
		items := v.Items
		if items == nil {
			items = []string{}
		}
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	case TypeListOfObjects:
		out := make([]any, len(v.Objects))
		for i, o := range v.Objects {
			out[i] = o
		}
		return out
	case TypeMatrix:
		out := make(map[string]any, len(v.Matrix))
		for row, cols := range v.Matrix {
			m := make(map[string]any, len(cols))
			for col, n := range cols {
				m[col] = n
			}
			out[row] = m
		}
		return out
	default:
		return v.Text
	}
}

// MarshalJSON encodes the value in its raw form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

// DecodeValue decodes raw into the tagged value for field. Scalars are
// coerced to text and a lone string is accepted as a one-item list. A JSON
// null decodes to the empty value of the field's kind.
func DecodeValue(field FieldSpec, raw json.RawMessage) (Value, error) {
	v := Value{Kind: field.Type}

	var x any
	if len(strings.TrimSpace(string(raw))) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		if err := dec.Decode(&x); err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field.Name, err)
		}
	}
	if x == nil {
		return v, nil
	}

	switch field.Type {
	case TypeText, TypeTextarea, TypeSelect:
		s, ok := scalarText(x)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s: expected a string", ErrInvalidValue, field.Name)
		}
		v.Text = s

	case TypeList:
		items, err := decodeList(x)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field.Name, err)
		}
		v.Items = items

	case TypeListOfObjects:
		if s, ok := x.(string); ok {
			// A single string is read as the first key of a one-item list.
			if len(field.Object) == 0 {
				return Value{}, fmt.Errorf("%w: %s: expected a list of objects", ErrInvalidValue, field.Name)
			}
			x = []any{map[string]any{field.Object[0].Name: s}}
		}
		objs, err := decodeObjects(field, x)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field.Name, err)
		}
		v.Objects = objs

	case TypeMatrix:
		m, err := decodeMatrix(x)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field.Name, err)
		}
		v.Matrix = m

	default:
		return Value{}, fmt.Errorf("%w: %s: unsupported field type %q", ErrInvalidValue, field.Name, field.Type)
	}
	return v, nil
}

func scalarText(x any) (string, bool) {
	switch t := x.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func decodeList(x any) ([]string, error) {
	if s, ok := scalarText(x); ok {
		return []string{s}, nil
	}
	arr, ok := x.([]any)
	if !ok {
		return nil, errors.New("expected a list of strings")
	}
	items := make([]string, 0, len(arr))
	for i, e := range arr {
		s, ok := scalarText(e)
		if !ok {
			return nil, fmt.Errorf("item %d: expected a string", i)
		}
		items = append(items, s)
	}
	return items, nil
}

func decodeObjects(field FieldSpec, x any) ([]map[string]any, error) {
	arr, ok := x.([]any)
	if !ok {
		return nil, errors.New("expected a list of objects")
	}
	keys := make(map[string]ObjectKey, len(field.Object))
	for _, k := range field.Object {
		keys[k.Name] = k
	}

	objs := make([]map[string]any, 0, len(arr))
	for i, e := range arr {
		in, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: expected an object", i)
		}
		out := make(map[string]any, len(in))
		for name, val := range in {
			key, declared := keys[name]
			if !declared {
				continue
			}
			if val == nil {
				continue
			}
			if key.Type == "number" {
				n, err := toNumber(val)
				if err != nil {
					return nil, fmt.Errorf("item %d: %s: %v", i, name, err)
				}
				out[name] = n
				continue
			}
			s, ok := scalarText(val)
			if !ok {
				return nil, fmt.Errorf("item %d: %s: expected a string", i, name)
			}
			out[name] = s
		}
		objs = append(objs, out)
	}
	return objs, nil
}

func decodeMatrix(x any) (map[string]map[string]float64, error) {
	rows, ok := x.(map[string]any)
	if !ok {
		return nil, errors.New("expected an object of rows")
	}
	m := make(map[string]map[string]float64, len(rows))
	for row, rv := range rows {
		cols, ok := rv.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %q: expected an object of ratings", row)
		}
		cells := make(map[string]float64, len(cols))
		for col, cv := range cols {
			n, err := toNumber(cv)
			if err != nil {
				return nil, fmt.Errorf("row %q column %q: %v", row, col, err)
			}
			cells[col] = n
		}
		m[row] = cells
	}
	return m, nil
}

func toNumber(x any) (float64, error) {
	switch t := x.(type) {
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", t)
		}
		return n, nil
	}
	return 0, errors.New("expected a number")
}

// EntryNames returns the labels of a list or list_of_objects value,
// preferring the object key use, then "name", then the first declared key.
// It is used to resolve matrix rows and columns and select options.
func EntryNames(field FieldSpec, v Value, use string) []string {
	switch v.Kind {
	case TypeList:
		return append([]string(nil), v.Items...)
	case TypeListOfObjects:
		candidates := []string{use, "name"}
		if len(field.Object) > 0 {
			candidates = append(candidates, field.Object[0].Name)
		}
		var names []string
		for _, o := range v.Objects {
			for _, key := range candidates {
				if key == "" {
					continue
				}
				if s, ok := o[key].(string); ok && s != "" {
					names = append(names, s)
					break
				}
			}
		}
		return names
	case TypeMatrix:
		names := make([]string, 0, len(v.Matrix))
		for row := range v.Matrix {
			names = append(names, row)
		}
		sort.Strings(names)
		return names
	}
	if v.Text != "" {
		return []string{v.Text}
	}
	return nil
}
