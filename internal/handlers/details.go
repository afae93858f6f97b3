package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
)

var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,}`)

// ExtractCVEIDs returns the deduplicated, sorted CVE IDs mentioned in
// free text.
func ExtractCVEIDs(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range cvePattern.FindAllString(text, -1) {
		id := strings.ToUpper(m)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

const detailsPromptFmt = `Analyze the user's message and determine which state variables should be updated.

Available state variables:
1. cve_ids: A list of CVE ID strings (e.g., ["CVE-2025-47273", "CVE-2025-47222"])
2. additional_info: A string containing additional information like application paths, package paths, system details, etc.
3. remediation_plan: A JSON object containing a remediation plan with keys like pre_checks, check_packages, apply_remediation, verify_fix, rollback_plan, production_report

Current state:
- cve_ids: %s
- additional_info: %s
- remediation_plan: %s

User message: '''%s'''

Your task:
1. Extract ONLY the NEW CVE IDs from the user's message (format CVE-YYYY-NNNNN).
2. Extract ONLY the NEW additional information (paths, system details, configuration, etc.).
3. Extract the remediation plan changes: a complete plan, partial sections, or what the user wants to change.

Return ONLY a valid JSON object in this exact format:
{
    "update_cve_ids": <true or false>,
    "cve_ids": <list of NEW CVE ID strings found in the message, or null>,
    "update_additional_info": <true or false>,
    "additional_info": <string with NEW additional info, or null>,
    "update_remediation_plan": <true or false>,
    "remediation_plan_changes": <the plan changes as a JSON object, or null>
}`

type detailsUpdate struct {
	UpdateCVEIDs           bool        `json:"update_cve_ids"`
	CVEIDs                 []string    `json:"cve_ids"`
	UpdateAdditionalInfo   bool        `json:"update_additional_info"`
	AdditionalInfo         string      `json:"additional_info"`
	UpdateRemediationPlan  bool        `json:"update_remediation_plan"`
	RemediationPlanChanges remedy.Plan `json:"remediation_plan_changes"`
}

// AddDetails folds operator-supplied facts into the session state: CVE
// IDs, free-form context and remediation plan edits.
type AddDetails struct {
	LLM llm.Completer
}

func (h *AddDetails) Name() string { return "add_details" }

func appendInfo(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "\n\n---\n\n" + added
}

func mergeCVEIDs(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string(nil), existing...)
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range added {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	sort.Strings(merged)
	return merged
}

// parse asks the model which state fields the message updates. On an
// unreadable reply, the CVE regex and raw-text fallbacks still apply.
func (h *AddDetails) parse(ctx context.Context, st *conversation.State) (detailsUpdate, error) {
	currentIDs := "None"
	if len(st.CVEIDs) > 0 {
		currentIDs = strings.Join(st.CVEIDs, ", ")
	}
	currentInfo := "None"
	if st.AdditionalInfo != "" {
		currentInfo = truncateText(st.AdditionalInfo, 200)
	}
	currentPlan := "None"
	if len(st.RemediationPlan) > 0 {
		if data, err := json.MarshalIndent(st.RemediationPlan, "", "  "); err == nil {
			currentPlan = truncateText(string(data), 500)
		}
	}

	prompt := fmt.Sprintf(detailsPromptFmt, currentIDs, currentInfo, currentPlan, st.UserInput)
	resp, err := h.LLM.Complete(ctx, prompt)
	if err != nil {
		return detailsUpdate{}, err
	}
	var upd detailsUpdate
	if err := llm.DecodeJSON(resp, &upd); err != nil {
		return detailsUpdate{}, err
	}
	return upd, nil
}

func (h *AddDetails) Handle(ctx context.Context, st *conversation.State) (string, error) {
	if strings.TrimSpace(st.UserInput) == "" {
		return "No input provided to add details.", nil
	}

	var parts []string

	upd, err := h.parse(ctx, st)
	if err != nil {
		// Model unavailable or reply unreadable: extract what we can.
		if ids := ExtractCVEIDs(st.UserInput); len(ids) > 0 {
			st.CVEIDs = mergeCVEIDs(st.CVEIDs, ids)
			return fmt.Sprintf("Details added successfully:\n\n✓ CVE IDs: %s", strings.Join(st.CVEIDs, ", ")), nil
		}
		st.AdditionalInfo = appendInfo(st.AdditionalInfo, st.UserInput)
		return fmt.Sprintf("Details added successfully:\n\n✓ Additional Information: %s",
			truncateText(st.AdditionalInfo, 200)), nil
	}

	if upd.UpdateCVEIDs && len(upd.CVEIDs) > 0 {
		st.CVEIDs = mergeCVEIDs(st.CVEIDs, upd.CVEIDs)
		parts = append(parts, fmt.Sprintf("✓ CVE IDs: %s", strings.Join(st.CVEIDs, ", ")))
	}

	if upd.UpdateAdditionalInfo && upd.AdditionalInfo != "" {
		st.AdditionalInfo = appendInfo(st.AdditionalInfo, upd.AdditionalInfo)
		parts = append(parts, fmt.Sprintf("✓ Additional Information: %s", truncateText(upd.AdditionalInfo, 200)))
	}

	if upd.UpdateRemediationPlan && len(upd.RemediationPlanChanges) > 0 {
		merged := remedy.MergePlans(ctx, h.LLM, st.RemediationPlan, upd.RemediationPlanChanges, st.UserInput)
		st.RemediationPlan = merged
		parts = append(parts, fmt.Sprintf("✓ Remediation Plan: %d section(s): %s",
			len(merged), strings.Join(merged.StageNames(), ", ")))
	}

	if len(parts) == 0 {
		return "I couldn't identify any details to add from your input. Please provide CVE IDs " +
			"(format: CVE-YYYY-NNNNN), additional information like paths or system details, " +
			"or a remediation plan (JSON format).", nil
	}
	return "Details added successfully:\n\n" + strings.Join(parts, "\n"), nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
