package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/advisory"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
)

var vulnIDPattern = regexp.MustCompile(`\d+`)

// extractVulnID pulls the first numeric id out of the classifier payload,
// falling back to the raw message.
func extractVulnID(intentData, userInput string) string {
	if m := vulnIDPattern.FindString(intentData); m != "" {
		return m
	}
	return vulnIDPattern.FindString(userInput)
}

// Analyze looks up a vulnerability row, fetches its advisory data and
// stores model summaries for the planner and patcher to build on.
type Analyze struct {
	Table    *vulndb.Table
	Advisory *advisory.Client
	Planner  *remedy.Planner
}

func (h *Analyze) Name() string { return "analyze_vuln" }

func (h *Analyze) Handle(ctx context.Context, st *conversation.State) (string, error) {
	vulnID := extractVulnID(st.IntentData, st.UserInput)
	if vulnID == "" {
		return "Please provide a Vuln ID to analyze.\nExample: `Analyze Vuln ID 241573`", nil
	}

	row, err := h.Table.GetByID(vulnID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return fmt.Sprintf("No vulnerability found with ID %s. Try `list vulnerabilities` to see what is available.", vulnID), nil
	}
	st.VulnData = row
	st.CurrentStep = conversation.StepAnalyze

	var fetched string
	switch {
	case row[vulndb.ColRHSAID] != "":
		rhsaID := row[vulndb.ColRHSAID]
		st.RHSAID = rhsaID

		cveData, cveIDs, err := h.Advisory.CVEByAdvisory(ctx, rhsaID)
		if err != nil {
			return "", fmt.Errorf("fetching CVE data for RHSA ID %s: %w", rhsaID, err)
		}
		csafData, err := h.Advisory.CSAFByAdvisory(ctx, rhsaID)
		if err != nil {
			return "", fmt.Errorf("fetching CSAF data for RHSA ID %s: %w", rhsaID, err)
		}
		st.CVEData = cveData
		st.CSAFData = csafData
		if len(cveIDs) > 0 {
			st.CVEIDs = cveIDs
		}
		fetched = fmt.Sprintf("Fetched CVE and CSAF data for RHSA ID: %s", rhsaID)

	case len(st.CVEIDs) > 0:
		cveData, err := h.Advisory.LocalCVEs(st.CVEIDs)
		if err != nil {
			return "", err
		}
		if len(cveData) == 0 {
			return fmt.Sprintf("No CVE data found in local database for CVE IDs: %v", st.CVEIDs), nil
		}
		st.CVEData = cveData
		fetched = fmt.Sprintf("Loaded %d CVE record(s) from local database", len(cveData))

	default:
		return "Cannot fetch CVE data: no RHSA ID in the vulnerability row and no CVE IDs in state.\n" +
			"You can add CVE IDs directly, e.g. `add CVE-2022-3602 to this vulnerability`.", nil
	}

	if len(st.CVEData) > 0 {
		if summary, err := h.Planner.Summarize(ctx, "CVE", st.CVEData); err == nil {
			st.CVESummary = summary
		}
	}
	if len(st.CSAFData) > 0 {
		if summary, err := h.Planner.Summarize(ctx, "CSAF", st.CSAFData); err == nil {
			st.CSAFSummary = summary
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Vulnerability Analysis: %s\n\n", vulnID)
	fmt.Fprintf(&b, "**Name:** %s\n", row[vulndb.ColVulnName])
	if appCode := row[vulndb.ColAppCode]; appCode != "" {
		fmt.Fprintf(&b, "**Application:** %s (%s)\n", row[vulndb.ColAppName], appCode)
	}
	if st.RHSAID != "" {
		fmt.Fprintf(&b, "**RHSA ID:** %s\n", st.RHSAID)
	}
	if len(st.CVEIDs) > 0 {
		fmt.Fprintf(&b, "**CVE IDs:** %s\n", strings.Join(st.CVEIDs, ", "))
	}
	fmt.Fprintf(&b, "\n%s\n", fetched)
	if st.CVESummary != "" {
		fmt.Fprintf(&b, "\n## CVE Summary\n\n%s\n", st.CVESummary)
	}
	if st.CSAFSummary != "" {
		fmt.Fprintf(&b, "\n## CSAF Summary\n\n%s\n", st.CSAFSummary)
	}
	b.WriteString("\nNext: `Generate plan` or `Create JIRA story for this vulnerability.`\n")
	return b.String(), nil
}
