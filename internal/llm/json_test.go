package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"intent": "HELP"}`, `{"intent": "HELP"}`},
		{"fenced", "```json\n{\"intent\": \"HELP\"}\n```", `{"intent": "HELP"}`},
		{"fenced no lang", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", "Here you go:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractJSON(tc.in)
			if got != tc.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Intent string `json:"intent"`
		Data   string `json:"data"`
	}
	resp := "```json\n{\"intent\": \"ANALYZE_VULN\", \"data\": \"241573\"}\n```"
	if err := DecodeJSON(resp, &out); err != nil {
		t.Fatal(err)
	}
	if out.Intent != "ANALYZE_VULN" || out.Data != "241573" {
		t.Errorf("unexpected decode result: %+v", out)
	}
}

func TestDecodeJSON_Malformed(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("not json at all", &out); err == nil {
		t.Error("expected error for malformed response")
	}
}
