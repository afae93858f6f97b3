package remedy

import (
	"context"
	"fmt"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
)

// Planner generates remediation plans from advisory data.
type Planner struct {
	LLM llm.Completer
}

func NewPlanner(completer llm.Completer) *Planner {
	return &Planner{LLM: completer}
}

// Summarize condenses raw advisory data for use inside later prompts.
func (p *Planner) Summarize(ctx context.Context, kind string, data any) (string, error) {
	if data == nil {
		return "Not available", nil
	}
	prompt := fmt.Sprintf("Summarize the %s data and do not miss any important details: %v", kind, data)
	return p.LLM.Complete(ctx, prompt)
}

const planPromptFmt = `Generate a SHORT, CONCISE remediation plan in JSON format for agents to fix:
Vulnerability ID: %s
Vulnerability Name: %s
RHSA ID: %s

Key CVE/CSAF details (full data available in state):
%s
%s

Return ONLY valid JSON with this exact structure:
{
  "pre_checks": {
    "connectivity": {"command": "<command>", "description": "<brief description>"},
    "disk_space": {"command": "<command>", "description": "<brief description>"}
  },
  "check_packages": {
    "command": "<command to check installed package versions>",
    "description": "<brief description>"
  },
  "apply_remediation": {
    "command": "<specific patch/update command or config change>",
    "type": "<patch|update|config>",
    "description": "<brief description - refer to CVE/CSAF data for details>"
  },
  "verify_fix": {
    "command": "<command to verify vulnerability is resolved>",
    "expected_result": "<what to expect if fixed>"
  },
  "rollback_plan": {
    "command": "<command to undo the remediation>",
    "description": "<brief description>"
  },
  "production_report": {
    "template_fields": ["vuln_id", "patch_applied", "verification_status", "notes"],
    "description": "<brief template description>"
  }
}

Keep it SHORT - only essential commands. Reference CVE/CSAF data instead of repeating details.
Reply with ONLY the JSON object, no markdown, no explanations.`

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Generate asks the model for a plan. A response that does not parse as
// JSON is an error the caller surfaces to the user.
func (p *Planner) Generate(ctx context.Context, vulnID, vulnName, rhsaID, cveSummary, csafSummary string) (Plan, error) {
	if rhsaID == "" {
		rhsaID = "Not available"
	}
	prompt := fmt.Sprintf(planPromptFmt, vulnID, vulnName, rhsaID,
		truncate(cveSummary, 1000), truncate(csafSummary, 1000))

	resp, err := p.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating remediation plan: %w", err)
	}

	var plan Plan
	if err := llm.DecodeJSON(resp, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse remediation plan as JSON: %w", err)
	}
	return plan, nil
}
