package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ExtractJSONObject pulls the first JSON object out of an LLM response,
// tolerating markdown code fences and prose around it. Malformed JSON
// is passed through repair before giving up.
func ExtractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Strip a markdown fence if the whole payload is fenced.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	candidate := balancedObject(s[start:])
	if candidate == "" {
		// Unbalanced braces — hand the tail to the repairer.
		candidate = s[start:]
	}

	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}
	repaired, err := jsonrepair.RepairJSON(candidate)
	if err != nil {
		return "", fmt.Errorf("repair JSON: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(repaired), "{") {
		return "", fmt.Errorf("repaired payload is not an object")
	}
	return repaired, nil
}

// DecodeJSON extracts and unmarshals the first JSON object in raw.
func DecodeJSON(raw string, v any) error {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

// balancedObject returns the shortest prefix of s (which must start at
// '{') forming a balanced object, or "" if the braces never close.
// String literals are skipped so braces inside them don't count.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// FlexString unmarshals from either a JSON string or a JSON number.
// LLMs routinely return numeric fields unquoted despite the schema.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", string(data))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
