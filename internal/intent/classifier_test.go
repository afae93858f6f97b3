package intent

import (
	"context"
	"errors"
	"testing"
)

// fakeCompleter returns canned responses for classifier tests.
type fakeCompleter struct {
	resp string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.resp, f.err
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		resp       string
		err        error
		wantIntent Intent
		wantData   string
	}{
		{
			name:       "plain json",
			resp:       `{"intent": "ANALYZE_VULN", "data": "241573"}`,
			wantIntent: AnalyzeVuln,
			wantData:   "241573",
		},
		{
			name:       "fenced json",
			resp:       "```json\n{\"intent\": \"LIST_VULNS\", \"data\": \"\"}\n```",
			wantIntent: ListVulns,
		},
		{
			name:       "lowercase label normalized",
			resp:       `{"intent": "help", "data": ""}`,
			wantIntent: Help,
		},
		{
			name:       "unknown label falls back",
			resp:       `{"intent": "DO_SOMETHING", "data": "x"}`,
			wantIntent: Other,
			wantData:   "",
		},
		{
			name:       "malformed output falls back",
			resp:       "I think the user wants to list vulnerabilities.",
			wantIntent: Other,
		},
		{
			name:       "transport error falls back",
			err:        errors.New("connection refused"),
			wantIntent: Other,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClassifier(&fakeCompleter{resp: tc.resp, err: tc.err})
			got := c.Classify(context.Background(), "whatever")
			if got.Intent != tc.wantIntent {
				t.Errorf("intent = %s, want %s", got.Intent, tc.wantIntent)
			}
			if got.Data != tc.wantData {
				t.Errorf("data = %q, want %q", got.Data, tc.wantData)
			}
		})
	}
}
