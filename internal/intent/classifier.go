package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	ListVulns       Intent = "LIST_VULNS"
	AnalyzeVuln     Intent = "ANALYZE_VULN"
	CreateJiraStory Intent = "CREATE_JIRA_STORY"
	FetchJiraStory  Intent = "FETCH_JIRA_STORY"
	UpdateJiraStory Intent = "UPDATE_JIRA_STORY"
	QueryGraph      Intent = "QUERY_GRAPH"
	GeneratePlan    Intent = "GENERATE_PLAN"
	AddDetails      Intent = "ADD_DETAILS"
	PatchVuln       Intent = "PATCH_VULN"
	Help            Intent = "HELP"
	Other           Intent = "OTHER"
)

// known is the closed set of labels the classifier may return.
var known = map[Intent]bool{
	ListVulns:       true,
	AnalyzeVuln:     true,
	CreateJiraStory: true,
	FetchJiraStory:  true,
	UpdateJiraStory: true,
	QueryGraph:      true,
	GeneratePlan:    true,
	AddDetails:      true,
	PatchVuln:       true,
	Help:            true,
	Other:           true,
}

// Result is a classified message: the intent plus any extracted payload
// (a Vuln ID, CVE IDs, free text for the graph query, ...).
type Result struct {
	Intent Intent `json:"intent"`
	Data   string `json:"data"`
}

// Classifier sends free text to the model and parses the constrained
// JSON reply.
type Classifier struct {
	LLM llm.Completer
}

func NewClassifier(completer llm.Completer) *Classifier {
	return &Classifier{LLM: completer}
}

const classifyPromptFmt = `Analyze the user's message and classify their intent.
Possible intents:
LIST_VULNS (user wants to see vulnerabilities),
ANALYZE_VULN (user wants to analyze/resolve a specific vulnerability; put the Vuln ID in 'data'),
CREATE_JIRA_STORY (user wants a tracker story created for the vulnerability),
FETCH_JIRA_STORY (user wants story/sub-task status or progress),
UPDATE_JIRA_STORY (user wants the story updated with vulnerability details),
QUERY_GRAPH (user asks about impact, blast radius or responsible teams),
GENERATE_PLAN (user wants a remediation plan generated),
ADD_DETAILS (user is supplying CVE IDs, paths, system details or plan edits; put the relevant text in 'data'),
PATCH_VULN (user wants the remediation plan executed / vulnerability patched),
HELP (user asks what this assistant can do),
OTHER (anything else).
Reply with ONLY a valid JSON object in this exact format:
{"intent": "<intent>", "data": "<data>"}
If no data applies, set 'data' to empty string.
Message: '''%s'''`

// Classify never fails to the caller: malformed or unknown model output
// resolves to OTHER with empty data.
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	resp, err := c.LLM.Complete(ctx, fmt.Sprintf(classifyPromptFmt, message))
	if err != nil {
		return Result{Intent: Other, Data: ""}
	}

	var parsed struct {
		Intent string `json:"intent"`
		Data   string `json:"data"`
	}
	if err := llm.DecodeJSON(resp, &parsed); err != nil {
		return Result{Intent: Other, Data: ""}
	}

	label := Intent(strings.ToUpper(strings.TrimSpace(parsed.Intent)))
	if !known[label] {
		return Result{Intent: Other, Data: ""}
	}
	return Result{Intent: label, Data: parsed.Data}
}
