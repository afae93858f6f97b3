package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/advisory"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
)

const testCSV = `Vuln ID,Vuln Name,App Code,App Name,RHSA ID
241573,OpenSSL Buffer Overflow,PAY,Payments,RHSA-2025:11036
241574,Kernel Privilege Escalation,INV,Inventory,
`

func writeTestCSV(t *testing.T) *vulndb.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vuln_data.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}
	return vulndb.NewTable(path)
}

// fakeCompleter routes replies on a prompt substring, so one fake can
// serve multi-prompt handlers.
type fakeCompleter struct {
	replies map[string]string
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for marker, reply := range f.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", fmt.Errorf("no scripted reply for prompt: %.60s", prompt)
}

func TestListVulns(t *testing.T) {
	h := &ListVulns{Table: writeTestCSV(t)}
	st := &conversation.State{}

	out, err := h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "241573 — OpenSSL Buffer Overflow") {
		t.Errorf("output missing vulnerability line:\n%s", out)
	}
	if !strings.Contains(out, "Which Vuln ID shall we resolve.?") {
		t.Errorf("output missing prompt line:\n%s", out)
	}
	if st.CurrentStep != conversation.StepListVulns {
		t.Errorf("current step = %d", st.CurrentStep)
	}
}

func TestAnalyze_NoID(t *testing.T) {
	h := &Analyze{Table: writeTestCSV(t)}
	out, err := h.Handle(context.Background(), &conversation.State{UserInput: "analyze something"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Please provide a Vuln ID") {
		t.Errorf("output = %s", out)
	}
}

func TestAnalyze_UnknownID(t *testing.T) {
	h := &Analyze{Table: writeTestCSV(t)}
	st := &conversation.State{IntentData: "999999"}
	out, err := h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No vulnerability found with ID 999999") {
		t.Errorf("output = %s", out)
	}
}

func TestAnalyze_FetchesAdvisoryAndSummarizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cve.json":
			fmt.Fprintf(w, `[{"CVE": "CVE-2022-3602", "resource_url": "http://%s/cve/CVE-2022-3602.json"}]`, r.Host)
		case strings.HasPrefix(r.URL.Path, "/cve/"):
			fmt.Fprint(w, `{"name": "CVE-2022-3602", "severity": "important"}`)
		case strings.HasPrefix(r.URL.Path, "/csaf/"):
			fmt.Fprint(w, `{"document": {"title": "RHSA-2025:11036"}}`)
		default:
			http.Error(w, "", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	completer := &fakeCompleter{replies: map[string]string{
		"Summarize the CVE data":  "OpenSSL 3.0.x buffer overflow, fixed in 3.0.7.",
		"Summarize the CSAF data": "Advisory covers openssl packages for RHEL 9.",
	}}
	h := &Analyze{
		Table:    writeTestCSV(t),
		Advisory: advisory.NewClient(srv.URL, t.TempDir()),
		Planner:  remedy.NewPlanner(completer),
	}

	st := &conversation.State{IntentData: "Vuln ID 241573"}
	out, err := h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}

	if st.RHSAID != "RHSA-2025:11036" {
		t.Errorf("rhsa id = %q", st.RHSAID)
	}
	if len(st.CVEIDs) != 1 || st.CVEIDs[0] != "CVE-2022-3602" {
		t.Errorf("cve ids = %v", st.CVEIDs)
	}
	if len(st.CVEData) != 1 || len(st.CSAFData) == 0 {
		t.Errorf("cve records = %d, csaf bytes = %d", len(st.CVEData), len(st.CSAFData))
	}
	if st.CVESummary == "" || st.CSAFSummary == "" {
		t.Errorf("summaries not stored: %q / %q", st.CVESummary, st.CSAFSummary)
	}
	if st.CurrentStep != conversation.StepAnalyze {
		t.Errorf("current step = %d", st.CurrentStep)
	}
	if !strings.Contains(out, "RHSA-2025:11036") || !strings.Contains(out, "CVE Summary") {
		t.Errorf("output missing analysis sections:\n%s", out)
	}
}

func TestGeneratePlan_Preconditions(t *testing.T) {
	h := &GeneratePlan{Planner: remedy.NewPlanner(&fakeCompleter{}), PlanPath: filepath.Join(t.TempDir(), "plan.json")}

	out, err := h.Handle(context.Background(), &conversation.State{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Please analyze the vulnerability first") {
		t.Errorf("output = %s", out)
	}

	st := &conversation.State{VulnData: map[string]string{"Vuln ID": "241573"}}
	out, err = h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No CVE or CSAF data available") {
		t.Errorf("output = %s", out)
	}
}

func TestGeneratePlan_SavesPlanAndState(t *testing.T) {
	planJSON := `{"check_packages": {"command": "rpm -q openssl", "description": "check version"},` +
		`"apply_remediation": {"command": "dnf update -y openssl", "type": "update", "description": "update"},` +
		`"verify_fix": {"command": "rpm -q openssl", "expected_result": "openssl-3.0.7"}}`
	completer := &fakeCompleter{replies: map[string]string{
		"remediation plan in JSON format": "```json\n" + planJSON + "\n```",
	}}

	planPath := filepath.Join(t.TempDir(), "plan.json")
	h := &GeneratePlan{Planner: remedy.NewPlanner(completer), PlanPath: planPath}
	st := &conversation.State{
		VulnData:   map[string]string{"Vuln ID": "241573", "Vuln Name": "OpenSSL Buffer Overflow"},
		CVEData:    []json.RawMessage{json.RawMessage(`{"name": "CVE-2022-3602"}`)},
		CVESummary: "already summarized",
	}

	out, err := h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.RemediationPlan) != 3 {
		t.Errorf("plan stages = %d", len(st.RemediationPlan))
	}
	if st.CurrentStep != conversation.StepPlan {
		t.Errorf("current step = %d", st.CurrentStep)
	}
	if _, err := os.Stat(planPath); err != nil {
		t.Errorf("plan file not written: %v", err)
	}
	if !strings.Contains(out, "Vulnerability Remediation Plan") {
		t.Errorf("output = %s", out)
	}
}

func TestGeneratePlan_LogsPlanEvent(t *testing.T) {
	completer := &fakeCompleter{replies: map[string]string{
		"remediation plan in JSON format": `{"check_packages": {"command": "rpm -q openssl"}}`,
	}}
	h := &GeneratePlan{
		Planner:  remedy.NewPlanner(completer),
		PlanPath: filepath.Join(t.TempDir(), "plan.json"),
		Logger:   observability.NewLogger(),
	}
	st := &conversation.State{
		VulnData:   map[string]string{"Vuln ID": "241573", "Vuln Name": "OpenSSL Buffer Overflow"},
		CVEData:    []json.RawMessage{json.RawMessage(`{"name": "CVE-2022-3602"}`)},
		CVESummary: "already summarized",
	}

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	_, herr := h.Handle(context.Background(), st)
	w.Close()
	os.Stdout = old
	if herr != nil {
		t.Fatal(herr)
	}

	logged, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logged), `"type":"plan"`) || !strings.Contains(string(logged), "241573") {
		t.Errorf("plan event not logged: %s", logged)
	}
}

func TestAddDetails_ModelUpdate(t *testing.T) {
	completer := &fakeCompleter{replies: map[string]string{
		"determine which state variables": `{
			"update_cve_ids": true, "cve_ids": ["CVE-2025-47273"],
			"update_additional_info": true, "additional_info": "app path is /opt/payments",
			"update_remediation_plan": false, "remediation_plan_changes": null
		}`,
	}}
	h := &AddDetails{LLM: completer}
	st := &conversation.State{
		UserInput:      "CVE-2025-47273 affects us, app path is /opt/payments",
		CVEIDs:         []string{"CVE-2022-3602"},
		AdditionalInfo: "RHEL 9 host",
	}

	out, err := h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.CVEIDs) != 2 || st.CVEIDs[0] != "CVE-2022-3602" {
		t.Errorf("cve ids = %v", st.CVEIDs)
	}
	if !strings.Contains(st.AdditionalInfo, "---") || !strings.Contains(st.AdditionalInfo, "/opt/payments") {
		t.Errorf("additional info = %q", st.AdditionalInfo)
	}
	if !strings.Contains(out, "Details added successfully") {
		t.Errorf("output = %s", out)
	}
}

func TestAddDetails_RegexFallback(t *testing.T) {
	h := &AddDetails{LLM: &fakeCompleter{err: errors.New("model down")}}
	st := &conversation.State{UserInput: "please track cve-2025-47273 and CVE-2025-47222"}

	out, err := h.Handle(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.CVEIDs) != 2 || st.CVEIDs[0] != "CVE-2025-47222" {
		t.Errorf("cve ids = %v, want sorted upper-cased pair", st.CVEIDs)
	}
	if !strings.Contains(out, "CVE IDs") {
		t.Errorf("output = %s", out)
	}
}

func TestAddDetails_FreeTextFallback(t *testing.T) {
	h := &AddDetails{LLM: &fakeCompleter{err: errors.New("model down")}}
	st := &conversation.State{UserInput: "the app lives under /srv/payments"}

	if _, err := h.Handle(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if st.AdditionalInfo != "the app lives under /srv/payments" {
		t.Errorf("additional info = %q", st.AdditionalInfo)
	}
}

func TestExtractCVEIDs(t *testing.T) {
	ids := ExtractCVEIDs("cve-2025-47273, CVE-2025-47273 and CVE-2022-3602")
	if len(ids) != 2 || ids[0] != "CVE-2022-3602" || ids[1] != "CVE-2025-47273" {
		t.Errorf("ids = %v", ids)
	}
}

func TestHelp(t *testing.T) {
	h := &Help{}
	out, err := h.Handle(context.Background(), &conversation.State{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "list vulnerabilities") || !strings.Contains(out, "Patch the vulnerability") {
		t.Errorf("help output incomplete:\n%s", out)
	}
}
