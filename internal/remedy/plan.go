package remedy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Canonical stage names, in execution order.
const (
	StagePreChecks        = "pre_checks"
	StageCheckPackages    = "check_packages"
	StageApplyRemediation = "apply_remediation"
	StageVerifyFix        = "verify_fix"
	StageRollbackPlan     = "rollback_plan"
	StageProductionReport = "production_report"
)

// MainStages are the stages the patcher runs through the step executor,
// in order. Pre-checks run before these; rollback and report are not
// executed automatically.
var MainStages = []string{StageCheckPackages, StageApplyRemediation, StageVerifyFix}

// Stage is one section of a remediation plan. Kept schemaless because the
// model and the operator both edit it as free-form JSON.
type Stage map[string]any

// Plan maps stage name to stage body. Produced once by the planner,
// merged with user edits, consumed by the patcher.
type Plan map[string]Stage

func (s Stage) str(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Command returns the shell command for this stage, if any.
func (s Stage) Command() string { return s.str("command") }

// Description returns the human description for this stage.
func (s Stage) Description() string { return s.str("description") }

// Expected returns the expected result, accepting both field spellings
// the planner has produced over time.
func (s Stage) Expected() string {
	if v := s.str("expected"); v != "" {
		return v
	}
	return s.str("expected_result")
}

// SubSteps interprets the stage body as a set of named sub-steps
// (the pre_checks shape). Non-object values are skipped. Names are
// returned sorted for deterministic execution order.
func (s Stage) SubSteps() ([]string, map[string]Stage) {
	subs := make(map[string]Stage)
	for name, v := range s {
		if body, ok := v.(map[string]any); ok {
			subs[name] = Stage(body)
		}
	}
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, subs
}

// StageNames returns the plan's stage names, canonical order first, then
// any extra stages sorted.
func (p Plan) StageNames() []string {
	canonical := []string{
		StagePreChecks, StageCheckPackages, StageApplyRemediation,
		StageVerifyFix, StageRollbackPlan, StageProductionReport,
	}
	seen := make(map[string]bool)
	var names []string
	for _, name := range canonical {
		if _, ok := p[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range p {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// SavePlan writes the plan to disk so a later session can pick it up.
func SavePlan(path string, p Plan) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadPlan reads a previously saved plan. Returns an error if the file
// does not exist or does not parse.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return p, nil
}
