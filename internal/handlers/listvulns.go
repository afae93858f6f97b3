package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
)

// ListVulns shows a sample of the vulnerability table so the operator can
// pick one to work on.
type ListVulns struct {
	Table *vulndb.Table
}

func (h *ListVulns) Name() string { return "list_vulns" }

func (h *ListVulns) Handle(ctx context.Context, st *conversation.State) (string, error) {
	lines, err := h.Table.Sample(5)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		lines = []string{"No vulnerabilities found in data."}
	}

	st.CurrentStep = conversation.StepListVulns
	return fmt.Sprintf(
		"Vuln ID — Vuln Name\n%s\nWhich Vuln ID shall we resolve.?\nsample input: `Analyze Vuln ID 241573`",
		strings.Join(lines, "\n")), nil
}
