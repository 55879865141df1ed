package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON indicates no parseable JSON span was found in a completion.
var ErrNoJSON = errors.New("no JSON found in completion")

// ExtractJSON locates the first balanced {...} or [...] span in a
// completion and unmarshals it into v. Models routinely wrap JSON in
// prose or code fences; everything outside the span is ignored.
func ExtractJSON(content string, v any) error {
	span, err := jsonSpan(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}

func jsonSpan(content string) (string, error) {
	start := -1
	var open, closer byte
	for i := 0; i < len(content); i++ {
		if content[i] == '{' || content[i] == '[' {
			start = i
			open = content[i]
			closer = '}'
			if open == '[' {
				closer = ']'
			}
			break
		}
	}
	if start == -1 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	// Truncated output: take the widest prefix ending at the last
	// closing bracket and let json.Unmarshal decide.
	if idx := strings.LastIndexByte(content, closer); idx > start {
		return content[start : idx+1], nil
	}
	return "", ErrNoJSON
}
