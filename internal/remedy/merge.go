package remedy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
)

const mergePromptFmt = `You need to merge changes to a remediation plan. The user may have provided:
1. A complete new plan (replace everything)
2. Partial changes (only update specific sections)
3. Textual instructions about what to change

Existing remediation plan:
%s

User-provided changes/instructions:
%s

User's original message: '''%s'''

Merge the changes into the existing plan:
- Update only the sections that were changed
- Add new sections if provided
- Remove sections only if explicitly requested
- Preserve all other existing sections unchanged

Return ONLY a valid JSON object - the COMPLETE merged remediation plan with
keys like pre_checks, check_packages, apply_remediation, verify_fix,
rollback_plan, production_report.`

// MergePlans merges user-supplied changes into an existing plan. The model
// does the interpretation; on an unparseable reply the mechanical deep
// merge takes over.
func MergePlans(ctx context.Context, completer llm.Completer, existing, changes Plan, userInput string) Plan {
	if len(existing) == 0 {
		if len(changes) == 0 {
			return Plan{}
		}
		return changes
	}
	if len(changes) == 0 {
		return existing
	}

	existingJSON, _ := json.MarshalIndent(existing, "", "  ")
	changesJSON, _ := json.MarshalIndent(changes, "", "  ")
	prompt := fmt.Sprintf(mergePromptFmt, existingJSON, changesJSON, userInput)

	resp, err := completer.Complete(ctx, prompt)
	if err != nil {
		return MergeMechanical(existing, changes)
	}
	var merged Plan
	if err := llm.DecodeJSON(resp, &merged); err != nil || len(merged) == 0 {
		return MergeMechanical(existing, changes)
	}
	return merged
}

// MergeMechanical deep-merges changes over existing: changed stages are
// merged key-wise, untouched stages are preserved unchanged.
func MergeMechanical(existing, changes Plan) Plan {
	merged := make(Plan, len(existing))
	for name, stage := range existing {
		merged[name] = stage
	}
	for name, change := range changes {
		base, ok := merged[name]
		if !ok {
			merged[name] = change
			continue
		}
		merged[name] = Stage(mergeMaps(map[string]any(base), map[string]any(change)))
	}
	return merged
}

func mergeMaps(base, change map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range change {
		if cm, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(bm, cm)
				continue
			}
		}
		out[k] = v
	}
	return out
}
