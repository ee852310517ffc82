package repair

import "encoding/json"

type frame struct {
	closer    byte
	object    bool
	expectKey bool
}

// Balance closes an open string and any unclosed objects and arrays at the
// end of text, innermost first. If plain closing does not give valid JSON,
// text is cut back to its last complete value and closed from there. A
// closer that does not match the innermost opener aborts the repair. The
// result is reported ok only when it is valid JSON.
func Balance(text string) (string, bool) {
	var (
		stack    []frame
		inString bool
		escaped  bool
		isKey    bool

		safe      = -1
		safeStack []frame
	)
	mark := func(at int) {
		safe = at
		safeStack = append(safeStack[:0], stack...)
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if !isKey {
					mark(i + 1)
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			isKey = len(stack) > 0 && stack[len(stack)-1].object && stack[len(stack)-1].expectKey
		case '{':
			stack = append(stack, frame{closer: '}', object: true, expectKey: true})
			mark(i + 1)
		case '[':
			stack = append(stack, frame{closer: ']'})
			mark(i + 1)
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1].closer != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			mark(i + 1)
		case ':':
			if len(stack) > 0 && stack[len(stack)-1].object {
				stack[len(stack)-1].expectKey = false
			}
		case ',':
			mark(i)
			if len(stack) > 0 && stack[len(stack)-1].object {
				stack[len(stack)-1].expectKey = true
			}
		}
	}

	repaired := text
	if inString {
		if escaped {
			repaired = repaired[:len(repaired)-1]
		}
		repaired += `"`
	}
	repaired = closeAll(repaired, stack)
	if json.Valid([]byte(repaired)) {
		return repaired, true
	}

	if safe < 0 {
		return repaired, false
	}
	cut := closeAll(text[:safe], safeStack)
	if json.Valid([]byte(cut)) {
		return cut, true
	}
	return repaired, false
}

func closeAll(text string, stack []frame) string {
	if len(stack) == 0 {
		return text
	}
	b := make([]byte, 0, len(text)+len(stack))
	b = append(b, text...)
	for i := len(stack) - 1; i >= 0; i-- {
		b = append(b, stack[i].closer)
	}
	return string(b)
}
