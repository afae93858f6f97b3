package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON strips a markdown code fence from a model response. Models
// asked for "ONLY JSON" still frequently wrap the payload in ```json fences.
func ExtractJSON(resp string) string {
	resp = strings.TrimSpace(resp)
	if !strings.Contains(resp, "```") {
		return resp
	}
	parts := strings.Split(resp, "```")
	if len(parts) < 2 {
		return resp
	}
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}

// DecodeJSON unmarshals a possibly fenced model response into v.
func DecodeJSON(resp string, v any) error {
	return json.Unmarshal([]byte(ExtractJSON(resp)), v)
}
