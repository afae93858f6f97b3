package conversation

import (
	"encoding/json"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
)

// Workflow step indices, used to drive the progress stepper in the UI.
const (
	StepStart     = 0
	StepListVulns = 1
	StepAnalyze   = 2
	StepTracker   = 3
	StepPlan      = 4
	StepPreChecks = 5
	StepPatch     = 6
	StepVerify    = 7
	StepReport    = 8
	StepDone      = 9
)

// State holds everything a session accumulates across turns. It is
// checkpointed as a JSON blob after every turn and reloaded on the next.
// Exactly one handler mutates it per turn; fields are never deleted
// within a session.
type State struct {
	UserInput  string `json:"user_input,omitempty"`
	Intent     string `json:"intent,omitempty"`
	IntentData string `json:"intent_data,omitempty"`
	Output     string `json:"output,omitempty"`

	VulnData       map[string]string `json:"vuln_data,omitempty"`
	CVEIDs         []string          `json:"cve_ids,omitempty"`
	RHSAID         string            `json:"rhsa_id,omitempty"`
	CVEData        []json.RawMessage `json:"cve_data,omitempty"`
	CSAFData       json.RawMessage   `json:"csaf_data,omitempty"`
	CVESummary     string            `json:"cve_summary,omitempty"`
	CSAFSummary    string            `json:"csaf_summary,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty"`

	RemediationPlan remedy.Plan `json:"remediation_plan,omitempty"`

	EpicKey  string `json:"epic_key,omitempty"`
	StoryKey string `json:"story_key,omitempty"`

	PatcherLogs   []remedy.StepLog   `json:"patcher_logs,omitempty"`
	PatcherErrors []remedy.StepError `json:"patcher_errors,omitempty"`

	GraphResult map[string]any `json:"graph_result,omitempty"`

	CurrentStep int `json:"current_step,omitempty"`
}

// DecodeState restores a checkpointed state blob. A nil or empty blob
// yields a fresh state.
func DecodeState(blob []byte) (*State, error) {
	st := &State{}
	if len(blob) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(blob, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Encode serializes the state for checkpointing.
func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}
