package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
)

// GeneratePlan asks the model for a remediation plan built on the
// advisory summaries from the analyze step.
type GeneratePlan struct {
	Planner  *remedy.Planner
	PlanPath string
	Logger   *observability.Logger
}

func (h *GeneratePlan) Name() string { return "planner" }

func (h *GeneratePlan) Handle(ctx context.Context, st *conversation.State) (string, error) {
	if len(st.VulnData) == 0 {
		return "No vulnerability data found. Please analyze the vulnerability first.\nExample: `Analyze Vuln ID 241573`", nil
	}
	if len(st.CVEData) == 0 && len(st.CSAFData) == 0 {
		return "No CVE or CSAF data available. Please analyze the vulnerability first to fetch CVE/CSAF data.", nil
	}

	vulnID := st.VulnData[vulndb.ColVulnID]
	vulnName := st.VulnData[vulndb.ColVulnName]

	if st.CVESummary == "" && len(st.CVEData) > 0 {
		if summary, err := h.Planner.Summarize(ctx, "CVE", st.CVEData); err == nil {
			st.CVESummary = summary
		}
	}
	if st.CSAFSummary == "" && len(st.CSAFData) > 0 {
		if summary, err := h.Planner.Summarize(ctx, "CSAF", st.CSAFData); err == nil {
			st.CSAFSummary = summary
		}
	}

	plan, err := h.Planner.Generate(ctx, vulnID, vulnName, st.RHSAID, st.CVESummary, st.CSAFSummary)
	if err != nil {
		return "", err
	}

	st.RemediationPlan = plan
	st.CurrentStep = conversation.StepPlan

	if err := remedy.SavePlan(h.PlanPath, plan); err != nil {
		log.Printf("Warning: failed to save plan to %s: %v", h.PlanPath, err)
	}
	if h.Logger != nil {
		h.Logger.LogPlan("", vulnID, len(plan), h.PlanPath)
	}

	pretty, _ := json.MarshalIndent(plan, "", "  ")
	var b strings.Builder
	b.WriteString("# Vulnerability Remediation Plan\n\n")
	fmt.Fprintf(&b, "**Vulnerability ID:** %s\n", vulnID)
	fmt.Fprintf(&b, "**Vulnerability Name:** %s\n", vulnName)
	if st.RHSAID != "" {
		fmt.Fprintf(&b, "**RHSA ID:** %s\n", st.RHSAID)
	}
	fmt.Fprintf(&b, "\n---\n\n```json\n%s\n```\n", pretty)
	fmt.Fprintf(&b, "\nPlan saved to: `%s`\n", h.PlanPath)
	return b.String(), nil
}
