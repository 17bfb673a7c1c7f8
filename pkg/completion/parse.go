package completion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeLooseJSON parses a JSON object from model output. Models occasionally
// wrap the object in prose or code fences, so after a strict parse fails we
// retry on the outermost brace-delimited span.
func DecodeLooseJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON object from response: %w", err)
	}
	return out, nil
}
