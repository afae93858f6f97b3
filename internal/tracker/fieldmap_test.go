package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeCompleter struct {
	resp string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.resp, f.err
}

func testMeta(t *testing.T) map[string]FieldMeta {
	t.Helper()
	meta := map[string]FieldMeta{}
	if err := json.Unmarshal([]byte(`{
		"customfield_10002": {"name": "APP_CODE", "schema": {"type": "string", "custom": "c"}},
		"customfield_10004": {"name": "DUE_DATE", "schema": {"type": "date", "custom": "c"}},
		"customfield_10005": {"name": "SEVERITY", "schema": {"type": "option", "custom": "c"}}
	}`), &meta); err != nil {
		t.Fatal(err)
	}
	return meta
}

func TestMapCSVToFields_ModelMapping(t *testing.T) {
	completer := &fakeCompleter{
		resp: `{"App Code": "APP_CODE", "Made Up": "NOT_A_FIELD"}`,
	}
	mapping := MapCSVToFields(context.Background(), completer,
		[]string{"App Code", "Made Up"}, []string{"APP_CODE", "SEVERITY"})

	if mapping["App Code"] != "APP_CODE" {
		t.Errorf("mapping = %v", mapping)
	}
	if _, ok := mapping["Made Up"]; ok {
		t.Error("mapping to a nonexistent field should be dropped")
	}
}

func TestMapCSVToFields_FallbackHeuristic(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model down")}
	mapping := MapCSVToFields(context.Background(), completer,
		[]string{"App Code", "Severity", "Unmappable Column"},
		[]string{"APP_CODE", "SEVERITY"})

	if mapping["App Code"] != "APP_CODE" || mapping["Severity"] != "SEVERITY" {
		t.Errorf("mapping = %v", mapping)
	}
	if _, ok := mapping["Unmappable Column"]; ok {
		t.Error("columns without a matching field should be skipped")
	}
}

func TestPrepareCustomFields_Types(t *testing.T) {
	completer := &fakeCompleter{
		resp: `{"App Code": "APP_CODE", "Due Date": "DUE_DATE", "Severity": "SEVERITY"}`,
	}
	vulnData := map[string]string{
		"App Code": "PAY",
		"Due Date": "7/4/2026",
		"Severity": "Critical",
		"Empty":    "",
	}

	fields := PrepareCustomFields(context.Background(), completer, vulnData, testMeta(t))

	if fields["customfield_10002"] != "PAY" {
		t.Errorf("APP_CODE field = %v", fields["customfield_10002"])
	}
	if fields["customfield_10004"] != "2026-07-04" {
		t.Errorf("date field = %v, want ISO date", fields["customfield_10004"])
	}
	opt, ok := fields["customfield_10005"].(map[string]any)
	if !ok || opt["value"] != "Critical" {
		t.Errorf("option field = %v", fields["customfield_10005"])
	}
}

func TestPrepareCustomFields_SkipsEmptyValues(t *testing.T) {
	completer := &fakeCompleter{resp: `{"App Code": "APP_CODE"}`}
	fields := PrepareCustomFields(context.Background(), completer,
		map[string]string{"App Code": "nan"}, testMeta(t))
	if len(fields) != 0 {
		t.Errorf("fields = %v, want empty", fields)
	}
}
